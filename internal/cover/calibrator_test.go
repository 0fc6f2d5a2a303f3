package cover

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/protocol"
)

type calibrationRecorder struct {
	mu           sync.Mutex
	deviceID     string
	openSeconds  float64
	closeSeconds float64
	calls        int
}

func (r *calibrationRecorder) UpdateCalibration(_ context.Context, deviceID string, openSeconds, closeSeconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceID = deviceID
	r.openSeconds = openSeconds
	r.closeSeconds = closeSeconds
	r.calls++
	return nil
}

func TestCalibrationRunMeasuresBothLegs(t *testing.T) {
	bridge := newFakeBridge()
	m := NewManager(bridge, testCoversConfig(), zap.NewNop())
	defer m.Shutdown()
	require.NoError(t, m.AddCover(AddCoverParams{DeviceID: "5D3E7C", DeviceEnum: "10"}))

	// Jede Fahrt endet nach kurzer Zeit mit einem Stop-Event vom Motor.
	bridge.onControl = func(_, action string) {
		if action == protocol.CmdStop {
			return
		}
		go func() {
			time.Sleep(30 * time.Millisecond)
			bridge.pushEvent("5D3E7C", protocol.EventStopped)
		}()
	}

	store := &calibrationRecorder{}
	c := NewCalibrator(bridge, m, store, time.Second, zap.NewNop())
	c.legPause = 5 * time.Millisecond

	result, err := c.Run(context.Background(), "5D3E7C", "10")
	require.NoError(t, err)
	assert.Equal(t, "5D3E7C", result.DeviceID)
	assert.Greater(t, result.OpenSeconds, 0.0)
	assert.Greater(t, result.CloseSeconds, 0.0)

	store.mu.Lock()
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, "5D3E7C", store.deviceID)
	store.mu.Unlock()

	// Drei Fahrbefehle: zu, auf, zu.
	commands := bridge.recorded()
	require.Len(t, commands, 3)
	assert.Equal(t, "10:"+protocol.CmdDown, commands[0])
	assert.Equal(t, "10:"+protocol.CmdUp, commands[1])
	assert.Equal(t, "10:"+protocol.CmdDown, commands[2])

	// Gemessene Zeiten landen im Estimator, Position am unteren Anschlag.
	info, err := m.Get("5D3E7C")
	require.NoError(t, err)
	assert.Equal(t, 0, info.Position)
	assert.True(t, info.Known)
}

func TestCalibrationTimesOutWithoutStopEvent(t *testing.T) {
	bridge := newFakeBridge()
	m := NewManager(bridge, testCoversConfig(), zap.NewNop())
	defer m.Shutdown()
	require.NoError(t, m.AddCover(AddCoverParams{DeviceID: "5D3E7C", DeviceEnum: "10"}))

	store := &calibrationRecorder{}
	c := NewCalibrator(bridge, m, store, 40*time.Millisecond, zap.NewNop())
	c.legPause = time.Millisecond

	_, err := c.Run(context.Background(), "5D3E7C", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stop event")

	store.mu.Lock()
	assert.Equal(t, 0, store.calls)
	store.mu.Unlock()
}

func TestCalibrationHonorsContextCancellation(t *testing.T) {
	bridge := newFakeBridge()
	m := NewManager(bridge, testCoversConfig(), zap.NewNop())
	defer m.Shutdown()
	require.NoError(t, m.AddCover(AddCoverParams{DeviceID: "5D3E7C", DeviceEnum: "10"}))

	c := NewCalibrator(bridge, m, nil, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Run(ctx, "5D3E7C", "10")
	require.ErrorIs(t, err, context.Canceled)
}
