package cover

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/protocol"
)

// fakeClock drives the estimator deterministically; the tick interval is
// set absurdly high so the loop never fires on its own and the tests call
// recompute directly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type controlRecorder struct {
	mu      sync.Mutex
	actions []string
}

func (r *controlRecorder) control(_, action string) {
	r.mu.Lock()
	r.actions = append(r.actions, action)
	r.mu.Unlock()
}

func (r *controlRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.actions...)
}

func newTestEstimator(t *testing.T) (*Estimator, *fakeClock, *controlRecorder) {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	rec := &controlRecorder{}

	e := NewEstimator(EstimatorConfig{
		DeviceID:   "ABC123",
		DeviceEnum: "10",
		OpenTime:   20 * time.Second,
		CloseTime:  20 * time.Second,
		Tick:       time.Hour,
		Control:    rec.control,
	}, zap.NewNop())
	e.now = clock.Now
	t.Cleanup(e.Shutdown)

	return e, clock, rec
}

func TestExtrapolationWhileOpening(t *testing.T) {
	e, clock, _ := newTestEstimator(t)
	e.RestorePosition(0)

	e.HandleEvent(protocol.EventStartedMovingUp)
	clock.Advance(10 * time.Second)
	e.recompute()

	state := e.State()
	assert.InDelta(t, 50, state.Position, 5)
	assert.Equal(t, DirectionOpening, state.Direction)
}

func TestExtrapolationWhileClosing(t *testing.T) {
	e, clock, _ := newTestEstimator(t)
	e.RestorePosition(80)

	e.HandleEvent(protocol.EventStartedMovingDown)
	clock.Advance(4 * time.Second) // 20% von 20s Laufzeit
	e.recompute()

	assert.InDelta(t, 60, e.State().Position, 5)
}

func TestStopFinalizesAtExtrapolatedPosition(t *testing.T) {
	e, clock, _ := newTestEstimator(t)
	e.RestorePosition(0)

	e.HandleEvent(protocol.EventStartedMovingUp)
	clock.Advance(5 * time.Second)
	e.HandleEvent(protocol.EventStopped)

	state := e.State()
	assert.InDelta(t, 25, state.Position, 5)
	assert.Equal(t, DirectionIdle, state.Direction)
	assert.True(t, e.moveStart.IsZero())
	assert.Equal(t, noTarget, e.target)
}

func TestTargetReachedIssuesStop(t *testing.T) {
	e, clock, rec := newTestEstimator(t)
	e.RestorePosition(0)

	e.SetPosition(40)
	require.Equal(t, []string{protocol.CmdUp}, rec.recorded())

	e.HandleEvent(protocol.EventStartedMovingUp)
	clock.Advance(8 * time.Second) // 40% Fahrweg
	done := e.recompute()

	assert.True(t, done)
	state := e.State()
	assert.Equal(t, 40, state.Position)
	assert.Equal(t, DirectionIdle, state.Direction)
	assert.Equal(t, []string{protocol.CmdUp, protocol.CmdStop}, rec.recorded())
}

func TestTargetExtremeLetsHardwareStop(t *testing.T) {
	e, clock, rec := newTestEstimator(t)
	e.RestorePosition(20)

	e.SetPosition(100)
	e.HandleEvent(protocol.EventStartedMovingUp)
	clock.Advance(30 * time.Second)
	e.recompute()

	assert.Equal(t, 100, e.State().Position)
	// Kein Stop-Befehl: der Motor läuft in den mechanischen Endanschlag.
	assert.Equal(t, []string{protocol.CmdUp}, rec.recorded())
}

func TestExtremeWithoutTargetFinalizes(t *testing.T) {
	e, clock, rec := newTestEstimator(t)
	e.RestorePosition(50)

	e.HandleEvent(protocol.EventStartedMovingDown)
	clock.Advance(15 * time.Second)
	done := e.recompute()

	assert.True(t, done)
	state := e.State()
	assert.Equal(t, 0, state.Position)
	assert.Equal(t, DirectionIdle, state.Direction)
	assert.Empty(t, rec.recorded())
}

func TestStopPrefersPendingTarget(t *testing.T) {
	e, clock, _ := newTestEstimator(t)
	e.RestorePosition(0)

	e.SetPosition(70)
	e.HandleEvent(protocol.EventStartedMovingUp)
	clock.Advance(13 * time.Second)
	e.HandleEvent(protocol.EventStopped)

	assert.Equal(t, 70, e.State().Position)
}

func TestSetPositionNoopWhenAlreadyThere(t *testing.T) {
	e, _, rec := newTestEstimator(t)
	e.RestorePosition(40)

	e.SetPosition(40)
	assert.Empty(t, rec.recorded())
}

func TestFirstObservationSeedsMidPosition(t *testing.T) {
	e, _, _ := newTestEstimator(t)

	assert.False(t, e.State().Known)
	e.HandleEvent(protocol.EventStartedMovingUp)

	state := e.State()
	assert.True(t, state.Known)
	assert.Equal(t, 50, state.Position)
}

func TestSetTravelTimesResetsToClosedLimit(t *testing.T) {
	e, _, _ := newTestEstimator(t)
	e.RestorePosition(75)

	e.SetTravelTimes(12*time.Second, 14*time.Second)

	state := e.State()
	assert.Equal(t, 0, state.Position)
	assert.True(t, state.Known)
	assert.Equal(t, 12*time.Second, e.openTime)
	assert.Equal(t, 14*time.Second, e.closeTime)
}

func TestPositionIsClamped(t *testing.T) {
	e, clock, _ := newTestEstimator(t)
	e.RestorePosition(90)

	e.HandleEvent(protocol.EventStartedMovingUp)
	clock.Advance(time.Minute)
	e.HandleEvent(protocol.EventStopped)

	assert.Equal(t, 100, e.State().Position)
}
