package bridge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNextDeviceEnumStartsAt10(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	assert.Equal(t, "10", r.NextDeviceEnum())
}

func TestNextDeviceEnumIsMaxPlusOne(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.RegisterAll([]RegisteredDevice{
		{ID: "AAAAAA", Enum: "10"},
		{ID: "BBBBBB", Enum: "1A"},
		{ID: "CCCCCC", Enum: "12"},
	})
	assert.Equal(t, "1B", r.NextDeviceEnum())
}

func TestNextDeviceEnumIgnoresInvalidValues(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register("AAAAAA", "10")
	r.Register("BBBBBB", "zz") // kaputter Eintrag aus altem Bestand
	assert.Equal(t, "11", r.NextDeviceEnum())
}

func TestNextDeviceEnumWrapsPastFF(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register("AAAAAA", "FF")
	assert.Equal(t, "10", r.NextDeviceEnum())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register("AAAAAA", "10")
	assert.True(t, r.Known("AAAAAA"))

	r.Remove("AAAAAA")
	assert.False(t, r.Known("AAAAAA"))
	_, ok := r.Enum("AAAAAA")
	assert.False(t, ok)
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	for i := 0; i < 5; i++ {
		r.Register(fmt.Sprintf("DEV%03d", i), fmt.Sprintf("%02X", 0x10+i))
	}
	assert.Len(t, r.List(), 5)
}
