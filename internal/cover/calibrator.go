package cover

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/protocol"
)

// CalibrationStore persists measured travel times, in seconds.
type CalibrationStore interface {
	UpdateCalibration(ctx context.Context, deviceID string, openSeconds, closeSeconds float64) error
}

// CalibrationResult is reported to API clients after a successful run.
type CalibrationResult struct {
	DeviceID     string  `json:"device_id"`
	OpenSeconds  float64 `json:"open_time_seconds"`
	CloseSeconds float64 `json:"close_time_seconds"`
}

// Calibrator measures the full travel times of a cover by driving it
// through a complete cycle and timing the legs between stop events:
// close to the lower limit first, then time a full opening run, then a
// full closing run. Each leg waits for the motor's stop event, bounded
// by the configured timeout.
type Calibrator struct {
	logger  *zap.Logger
	bridge  Bridge
	manager *Manager
	store   CalibrationStore
	timeout time.Duration
	// Pause zwischen den Fahrten, damit der Motor zur Ruhe kommt.
	legPause time.Duration
	now      func() time.Time
}

func NewCalibrator(bridge Bridge, manager *Manager, store CalibrationStore, timeout time.Duration, logger *zap.Logger) *Calibrator {
	return &Calibrator{
		logger:   logger,
		bridge:   bridge,
		manager:  manager,
		store:    store,
		timeout:  timeout,
		legPause: time.Second,
		now:      time.Now,
	}
}

// Run executes the calibration cycle for one cover. It blocks until the
// cycle finished, the timeout expired on a leg, or ctx was cancelled.
// On success the measured times are persisted and applied to the running
// estimator.
func (c *Calibrator) Run(ctx context.Context, deviceID, deviceEnum string) (CalibrationResult, error) {
	stops := make(chan struct{}, 1)
	unsubscribe := c.bridge.SubscribeDevice(deviceID, func(command string) {
		if command != protocol.EventStopped {
			return
		}
		select {
		case stops <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	c.logger.Info("Calibration started", zap.String("device_id", deviceID))

	// Startlage: ganz schließen, Referenzpunkt ist der untere Anschlag.
	c.bridge.ControlBlind(deviceEnum, protocol.CmdDown)
	if err := c.waitForStop(ctx, stops); err != nil {
		return CalibrationResult{}, fmt.Errorf("closing to lower limit: %w", err)
	}
	if err := c.pause(ctx); err != nil {
		return CalibrationResult{}, err
	}

	// Volle Öffnungsfahrt messen.
	openStart := c.now()
	c.bridge.ControlBlind(deviceEnum, protocol.CmdUp)
	if err := c.waitForStop(ctx, stops); err != nil {
		return CalibrationResult{}, fmt.Errorf("timing opening run: %w", err)
	}
	openTime := c.now().Sub(openStart)
	if err := c.pause(ctx); err != nil {
		return CalibrationResult{}, err
	}

	// Volle Schließfahrt messen.
	closeStart := c.now()
	c.bridge.ControlBlind(deviceEnum, protocol.CmdDown)
	if err := c.waitForStop(ctx, stops); err != nil {
		return CalibrationResult{}, fmt.Errorf("timing closing run: %w", err)
	}
	closeTime := c.now().Sub(closeStart)

	result := CalibrationResult{
		DeviceID:     deviceID,
		OpenSeconds:  roundSeconds(openTime),
		CloseSeconds: roundSeconds(closeTime),
	}

	if c.store != nil {
		if err := c.store.UpdateCalibration(ctx, deviceID, result.OpenSeconds, result.CloseSeconds); err != nil {
			return CalibrationResult{}, fmt.Errorf("persisting calibration: %w", err)
		}
	}
	if err := c.manager.ApplyCalibration(deviceID, openTime, closeTime); err != nil {
		return CalibrationResult{}, err
	}

	c.logger.Info("Calibration completed",
		zap.String("device_id", deviceID),
		zap.Float64("open_seconds", result.OpenSeconds),
		zap.Float64("close_seconds", result.CloseSeconds))
	return result, nil
}

func (c *Calibrator) waitForStop(ctx context.Context, stops <-chan struct{}) error {
	select {
	case <-stops:
		return nil
	case <-time.After(c.timeout):
		return fmt.Errorf("no stop event within %s", c.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Calibrator) pause(ctx context.Context) error {
	select {
	case <-time.After(c.legPause):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
