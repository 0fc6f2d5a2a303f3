package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlindCommand(t *testing.T) {
	cmd, err := BlindCommand("10", CmdUp)
	require.NoError(t, err)
	assert.Equal(t, "ss109010000", cmd)

	cmd, err = BlindCommand("1A", CmdStop)
	require.NoError(t, err)
	assert.Equal(t, "ss1A9000000", cmd)
}

func TestBlindCommandRejectsInvalidAction(t *testing.T) {
	_, err := BlindCommand("10", CmdPair)
	assert.Error(t, err)

	_, err = BlindCommand("10", "zz")
	assert.Error(t, err)
}

func TestDeviceCommandRejectsInvalidEnum(t *testing.T) {
	for _, enum := range []string{"", "1", "100", "GG"} {
		_, err := DeviceCommand(enum, CmdUp)
		assert.Error(t, err, "enum %q", enum)
	}
}

func TestPairCommand(t *testing.T) {
	cmd, err := PairCommand("10")
	require.NoError(t, err)
	assert.Equal(t, "ss106000000", cmd)
}

func TestLEDBlinkCommand(t *testing.T) {
	for count := 1; count <= 9; count++ {
		cmd, err := LEDBlinkCommand(count)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("so%d", count), cmd)
	}

	_, err := LEDBlinkCommand(0)
	assert.Error(t, err)
	_, err = LEDBlinkCommand(10)
	assert.Error(t, err)
}
