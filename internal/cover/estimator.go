package cover

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/protocol"
)

// Direction is the current motion state of a cover.
type Direction string

const (
	DirectionIdle    Direction = "idle"
	DirectionOpening Direction = "opening"
	DirectionClosing Direction = "closing"
)

const noTarget = -1

// State is a snapshot of one cover's estimated state.
type State struct {
	DeviceID   string    `json:"device_id"`
	DeviceEnum string    `json:"device_enum"`
	Position   int       `json:"position"`
	Known      bool      `json:"position_known"`
	Direction  Direction `json:"direction"`
}

// Estimator tracks the 0-100 position of one blind purely from elapsed
// time between started-moving and stopped events; the radio link has no
// absolute position feedback. Positions are estimates: drift is expected
// and corrected opportunistically at the travel extremes and on
// calibration.
//
// The estimator reacts to motor events (01/02/00), runs a periodic
// recompute while moving, and issues a stop command itself when a
// requested target position is reached.
type Estimator struct {
	logger     *zap.Logger
	deviceID   string
	deviceEnum string

	control  func(deviceEnum, action string)
	onChange func(State)

	now  func() time.Time
	tick time.Duration

	mu            sync.Mutex
	openTime      time.Duration
	closeTime     time.Duration
	position      int
	positionKnown bool
	direction     Direction
	moveStart     time.Time
	startPosition int
	target        int
	stopTick      chan struct{}
}

// EstimatorConfig carries the per-device constants.
type EstimatorConfig struct {
	DeviceID   string
	DeviceEnum string
	OpenTime   time.Duration // calibrated full-travel time upwards
	CloseTime  time.Duration // calibrated full-travel time downwards
	Tick       time.Duration // recompute interval while moving

	// Control sends stop/up/down for this device. Required.
	Control func(deviceEnum, action string)

	// OnChange is notified with every state snapshot worth reporting.
	// Optional. Runs on the estimator's tick goroutine.
	OnChange func(State)
}

func NewEstimator(cfg EstimatorConfig, logger *zap.Logger) *Estimator {
	e := &Estimator{
		logger:     logger,
		deviceID:   cfg.DeviceID,
		deviceEnum: cfg.DeviceEnum,
		control:    cfg.Control,
		onChange:   cfg.OnChange,
		now:        time.Now,
		tick:       cfg.Tick,
		openTime:   cfg.OpenTime,
		closeTime:  cfg.CloseTime,
		direction:  DirectionIdle,
		target:     noTarget,
	}
	if e.onChange == nil {
		e.onChange = func(State) {}
	}
	return e
}

// RestorePosition seeds the estimate from persisted state.
func (e *Estimator) RestorePosition(position int) {
	e.mu.Lock()
	e.position = clamp(position)
	e.positionKnown = true
	e.mu.Unlock()
}

// SetTravelTimes replaces the calibrated travel durations and pins the
// position to the closed limit: after a calibration run the blind is
// physically at its lower endpoint.
func (e *Estimator) SetTravelTimes(openTime, closeTime time.Duration) {
	e.mu.Lock()
	e.openTime = openTime
	e.closeTime = closeTime
	e.position = 0
	e.positionKnown = true
	state := e.stateLocked()
	e.mu.Unlock()

	e.logger.Info("Travel times updated",
		zap.String("device_id", e.deviceID),
		zap.Duration("open_time", openTime),
		zap.Duration("close_time", closeTime))
	e.onChange(state)
}

// State returns the current snapshot.
func (e *Estimator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Estimator) stateLocked() State {
	return State{
		DeviceID:   e.deviceID,
		DeviceEnum: e.deviceEnum,
		Position:   e.position,
		Known:      e.positionKnown,
		Direction:  e.direction,
	}
}

// HandleEvent consumes one motor event for this device.
func (e *Estimator) HandleEvent(command string) {
	switch command {
	case protocol.EventStartedMovingUp:
		e.startMove(DirectionOpening)
	case protocol.EventStartedMovingDown:
		e.startMove(DirectionClosing)
	case protocol.EventStopped:
		e.handleStopped()
	default:
		e.logger.Debug("Unhandled motor event",
			zap.String("device_id", e.deviceID),
			zap.String("command", command))
	}
}

func (e *Estimator) startMove(direction Direction) {
	e.mu.Lock()
	e.stopTickingLocked()

	if !e.positionKnown {
		// Erste Beobachtung ohne Wiederherstellung: von der Mitte aus
		// schätzen, die Extreme korrigieren das später.
		e.position = 50
		e.positionKnown = true
	}

	e.direction = direction
	e.moveStart = e.now()
	e.startPosition = e.position

	stop := make(chan struct{})
	e.stopTick = stop
	state := e.stateLocked()
	e.mu.Unlock()

	e.logger.Info("Cover started moving",
		zap.String("device_id", e.deviceID),
		zap.String("direction", string(direction)))

	e.onChange(state)
	go e.tickLoop(stop)
}

func (e *Estimator) handleStopped() {
	e.mu.Lock()
	e.stopTickingLocked()

	// Beim Stop zählt ein gesetztes Ziel mehr als die Extrapolation.
	if e.target != noTarget {
		e.position = clamp(e.target)
	} else {
		e.position = e.extrapolateLocked()
	}
	e.clearMoveLocked()
	state := e.stateLocked()
	e.mu.Unlock()

	e.logger.Info("Cover stopped",
		zap.String("device_id", e.deviceID),
		zap.Int("position", state.Position))
	e.onChange(state)
}

// clearMoveLocked resets direction and move bookkeeping together.
func (e *Estimator) clearMoveLocked() {
	e.direction = DirectionIdle
	e.moveStart = time.Time{}
	e.startPosition = 0
	e.target = noTarget
}

func (e *Estimator) stopTickingLocked() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func (e *Estimator) tickLoop(stop chan struct{}) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := e.recompute(); done {
				return
			}
		}
	}
}

// recompute advances the estimate one tick: extrapolate, snap to a reached
// target (stopping the motor unless the target is an extreme), or finalize
// at an extreme. Returns true when tracking ended.
func (e *Estimator) recompute() bool {
	e.mu.Lock()

	if e.direction == DirectionIdle {
		e.mu.Unlock()
		return true
	}

	e.position = e.extrapolateLocked()

	// Zielposition erreicht oder überfahren?
	if e.target != noTarget {
		reached := (e.direction == DirectionOpening && e.position >= e.target) ||
			(e.direction == DirectionClosing && e.position <= e.target)
		if reached {
			target := e.target
			e.position = clamp(target)
			e.stopTickingLocked()
			e.clearMoveLocked()
			state := e.stateLocked()
			e.mu.Unlock()

			e.logger.Info("Cover reached target position",
				zap.String("device_id", e.deviceID),
				zap.Int("position", target))

			// An den Extremen stoppt die Mechanik selbst, dazwischen
			// muss der Stop-Befehl raus.
			if target > 0 && target < 100 {
				e.control(e.deviceEnum, protocol.CmdStop)
			}
			e.onChange(state)
			return true
		}
	} else if e.position <= 0 || e.position >= 100 {
		e.stopTickingLocked()
		e.clearMoveLocked()
		state := e.stateLocked()
		e.mu.Unlock()

		e.logger.Info("Cover reached travel extreme",
			zap.String("device_id", e.deviceID),
			zap.Int("position", state.Position))
		e.onChange(state)
		return true
	}

	state := e.stateLocked()
	e.mu.Unlock()
	e.onChange(state)
	return false
}

// extrapolateLocked computes the current estimate from elapsed time and
// the calibrated travel duration of the active direction.
func (e *Estimator) extrapolateLocked() int {
	if e.direction == DirectionIdle || e.moveStart.IsZero() {
		return e.position
	}

	travelTime := e.closeTime
	if e.direction == DirectionOpening {
		travelTime = e.openTime
	}
	if travelTime <= 0 {
		return e.position
	}

	elapsed := e.now().Sub(e.moveStart)
	change := int(float64(elapsed) / float64(travelTime) * 100)

	if e.direction == DirectionOpening {
		return clamp(e.startPosition + change)
	}
	return clamp(e.startPosition - change)
}

// Open fährt die Jalousie ganz auf.
func (e *Estimator) Open() {
	e.control(e.deviceEnum, protocol.CmdUp)
}

// Close fährt die Jalousie ganz zu.
func (e *Estimator) Close() {
	e.control(e.deviceEnum, protocol.CmdDown)
}

// Stop hält die Jalousie an.
func (e *Estimator) Stop() {
	e.control(e.deviceEnum, protocol.CmdStop)
}

// SetPosition moves towards a target position. The periodic recompute
// snaps to the target and issues the stop command; moving to 0 or 100 lets
// the hardware run into its mechanical limit instead.
func (e *Estimator) SetPosition(target int) {
	target = clamp(target)

	e.mu.Lock()
	current := e.position
	if target == current {
		e.mu.Unlock()
		e.logger.Debug("Target equals current position, nothing to do",
			zap.String("device_id", e.deviceID))
		return
	}
	e.target = target
	e.mu.Unlock()

	e.logger.Info("Moving cover to position",
		zap.String("device_id", e.deviceID),
		zap.Int("from", current),
		zap.Int("to", target))

	if target > current {
		e.control(e.deviceEnum, protocol.CmdUp)
	} else {
		e.control(e.deviceEnum, protocol.CmdDown)
	}
}

// Shutdown cancels a running tracking loop, e.g. when the owning entity
// goes away.
func (e *Estimator) Shutdown() {
	e.mu.Lock()
	e.stopTickingLocked()
	e.clearMoveLocked()
	e.mu.Unlock()
}

func clamp(position int) int {
	if position < 0 {
		return 0
	}
	if position > 100 {
		return 100
	}
	return position
}
