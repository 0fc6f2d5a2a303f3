package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/protocol"
)

// PairedDevice is the result of a successful pairing handshake.
type PairedDevice struct {
	DeviceID   string `json:"device_id"`
	DeviceEnum string `json:"device_enum"`
}

// PairDeviceAndWait runs the two-phase pairing handshake: allocate the next
// enumerator, wait for a device to announce itself (pairing list response,
// or an event from an unregistered device), then transmit the actual pair
// command addressed to that enumerator. The deferred stop-pairing command
// is scheduled by the dispatch side and does not block this call.
//
// Returns ok=false on timeout, on context cancellation, and when another
// pairing wait is already outstanding (which is left undisturbed).
func (s *Session) PairDeviceAndWait(ctx context.Context) (PairedDevice, bool) {
	s.mu.Lock()
	if s.pairingWait != nil {
		s.mu.Unlock()
		s.logger.Warn("Pairing already in progress")
		return PairedDevice{}, false
	}
	wait := make(chan string, 1)
	s.pairingWait = wait
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.pairingWait == wait {
			s.pairingWait = nil
		}
		s.mu.Unlock()
	}()

	deviceEnum := s.registry.NextDeviceEnum()
	pairCommand, err := protocol.PairCommand(deviceEnum)
	if err != nil {
		s.logger.Error("Failed to build pair command", zap.Error(err))
		return PairedDevice{}, false
	}

	s.logger.Info("Pairing started, waiting for a device",
		zap.String("device_enum", deviceEnum),
		zap.Duration("timeout", s.cfg.PairingTimeout))

	select {
	case deviceID := <-wait:
		// Erst wenn sich der Motor gemeldet hat, bekommt er das
		// Pairing-Telegramm mit seinem Enumerator.
		s.Send(pairCommand)
		s.logger.Info("Pairing completed",
			zap.String("device_id", deviceID),
			zap.String("device_enum", deviceEnum))
		return PairedDevice{DeviceID: deviceID, DeviceEnum: deviceEnum}, true

	case <-time.After(s.cfg.PairingTimeout):
		s.logger.Warn("Pairing timeout - no device responded")
		return PairedDevice{}, false

	case <-ctx.Done():
		s.logger.Info("Pairing cancelled")
		return PairedDevice{}, false
	}
}
