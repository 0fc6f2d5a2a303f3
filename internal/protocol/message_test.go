package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVerification(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		version string
		mode    DeviceMode
	}{
		{"initial mode", "RFTU_V20 F:20180510_DFBD B:1", "RFTU_V20", ModeInitial},
		{"bootloader mode", "RFTU_V20 F:20180510_DFBD B:0", "RFTU_V20", ModeBootloader},
		{"unknown boot flag", "RFTU_V20 F:20180510_DFBD B:7", "RFTU_V20", ModeUnknown},
		{"missing boot flag defaults to initial", "RFTU_V20 F:20180510_DFBD", "RFTU_V20", ModeInitial},
		{"bare version", "RFTU_V21", "RFTU_V21", ModeInitial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := Decode(tt.line).(DeviceVerification)
			require.True(t, ok)
			assert.Equal(t, tt.version, msg.Version)
			assert.Equal(t, tt.mode, msg.Mode)
		})
	}
}

func TestDecodeAcks(t *testing.T) {
	_, ok := Decode("t1").(TransmitAck)
	assert.True(t, ok)
	_, ok = Decode("t0").(TransmitAck)
	assert.True(t, ok)
	_, ok = Decode("tE").(TransmitBusy)
	assert.True(t, ok)
}

func TestDecodeDeviceID(t *testing.T) {
	msg, ok := Decode("sr5D3E7C").(DeviceIDResponse)
	require.True(t, ok)
	assert.Equal(t, "5D3E7C", msg.DeviceID)

	// Too short for an ID, must not be classified as a response.
	_, ok = Decode("sr5D3").(Unrecognized)
	assert.True(t, ok)
}

func TestDecodePairingList(t *testing.T) {
	msg, ok := Decode("sl00BEDEV789").(PairingListResponse)
	require.True(t, ok)
	assert.Equal(t, "DEV789", msg.DeviceID)

	// Longer lines carry trailing data that is ignored.
	msg, ok = Decode("sl00BEDEV789FFFF").(PairingListResponse)
	require.True(t, ok)
	assert.Equal(t, "DEV789", msg.DeviceID)
}

func TestDecodeDeviceEvent(t *testing.T) {
	msg, ok := Decode("ss10ABC123ZZZZ01PP00").(DeviceEvent)
	require.True(t, ok)
	assert.Equal(t, "10", msg.DeviceEnum)
	assert.Equal(t, "ABC123", msg.DeviceID)
	assert.Equal(t, "01", msg.Command)
}

func TestDecodeShortDeviceEventIsUnrecognized(t *testing.T) {
	// Ein zu kurzes ss-Telegramm darf nicht knallen.
	_, ok := Decode("ss10ABC1").(Unrecognized)
	assert.True(t, ok)
}

func TestDecodeGarbage(t *testing.T) {
	for _, line := range []string{"", "x", "hello world", "t2", "!?"} {
		_, ok := Decode(line).(Unrecognized)
		assert.True(t, ok, "line %q", line)
	}
}
