package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherDeviceSubscription(t *testing.T) {
	d := NewDispatcher()

	var got []string
	unsubscribe := d.SubscribeDevice("1A2B3C", func(command string) {
		got = append(got, command)
	})

	d.emitDeviceEvent("1A2B3C", "01")
	d.emitDeviceEvent("FFFFFF", "02") // anderes Gerät, darf nicht ankommen
	assert.Equal(t, []string{"01"}, got)

	unsubscribe()
	d.emitDeviceEvent("1A2B3C", "00")
	assert.Equal(t, []string{"01"}, got)
}

func TestDispatcherWildcardSeesAllDevices(t *testing.T) {
	d := NewDispatcher()

	type event struct{ deviceID, command string }
	var got []event
	unsubscribe := d.SubscribeAllDevices(func(deviceID, command string) {
		got = append(got, event{deviceID, command})
	})

	d.emitDeviceEvent("1A2B3C", "01")
	d.emitDeviceEvent("FFFFFF", "02")
	assert.Equal(t, []event{{"1A2B3C", "01"}, {"FFFFFF", "02"}}, got)

	unsubscribe()
	d.emitDeviceEvent("1A2B3C", "00")
	assert.Len(t, got, 2)
}

func TestDispatcherStatusSubscription(t *testing.T) {
	d := NewDispatcher()

	calls := 0
	unsubscribe := d.SubscribeStatus(func() { calls++ })

	d.emitStatus()
	d.emitStatus()
	assert.Equal(t, 2, calls)

	unsubscribe()
	d.emitStatus()
	assert.Equal(t, 2, calls)
}
