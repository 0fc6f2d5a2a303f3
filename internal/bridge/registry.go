package bridge

import (
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/protocol"
)

// RegisteredDevice is one known pairing: the wire-assigned 6-hex device ID
// and the host-assigned 1-byte enumerator used to address it.
type RegisteredDevice struct {
	ID   string
	Enum string
}

// Registry maps device IDs to their enumerators. It is the session's view
// of which devices belong to this hub; persistence lives elsewhere.
type Registry struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	devices map[string]string
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger,
		devices: make(map[string]string),
	}
}

// Register adds or overwrites a single device mapping.
func (r *Registry) Register(deviceID, deviceEnum string) {
	if deviceID == "" || deviceEnum == "" {
		return
	}

	r.mu.Lock()
	r.devices[deviceID] = deviceEnum
	r.mu.Unlock()

	r.logger.Debug("Registered device",
		zap.String("device_id", deviceID),
		zap.String("device_enum", deviceEnum))
}

// RegisterAll loads a batch of persisted devices into the registry.
func (r *Registry) RegisterAll(devices []RegisteredDevice) {
	for _, d := range devices {
		r.Register(d.ID, d.Enum)
	}
}

// Remove forgets a device. Messages from it are treated as unknown again.
func (r *Registry) Remove(deviceID string) {
	r.mu.Lock()
	delete(r.devices, deviceID)
	r.mu.Unlock()

	r.logger.Debug("Removed device from registry", zap.String("device_id", deviceID))
}

// Known reports whether the device ID belongs to a registered device.
func (r *Registry) Known(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[deviceID]
	return ok
}

// Enum returns the enumerator for a registered device ID.
func (r *Registry) Enum(deviceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.devices[deviceID]
	return e, ok
}

// List returns a snapshot of all registered devices.
func (r *Registry) List() []RegisteredDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RegisteredDevice, 0, len(r.devices))
	for id, enum := range r.devices {
		out = append(out, RegisteredDevice{ID: id, Enum: enum})
	}
	return out
}

// NextDeviceEnum computes the enumerator for the next pairing: one above the
// highest registered enumerator, starting at 0x10 on an empty registry and
// wrapping back to 0x10 past 0xFF. Unparseable stored enumerators are
// skipped, not fatal.
func (r *Registry) NextDeviceEnum() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.devices) == 0 {
		return fmt.Sprintf("%02X", protocol.PairingDeviceEnumStart)
	}

	maxEnum := int64(protocol.PairingDeviceEnumStart - 1)
	for _, deviceEnum := range r.devices {
		value, err := strconv.ParseInt(deviceEnum, 16, 32)
		if err != nil {
			r.logger.Warn("Invalid enum value in registry",
				zap.String("device_enum", deviceEnum), zap.Error(err))
			continue
		}
		if value > maxEnum {
			maxEnum = value
		}
	}

	next := maxEnum + 1
	if next > 0xFF {
		next = protocol.PairingDeviceEnumStart
		r.logger.Warn("Device enum exceeded 0xFF, wrapping back",
			zap.String("next", fmt.Sprintf("%02X", next)))
	}

	return fmt.Sprintf("%02X", next)
}
