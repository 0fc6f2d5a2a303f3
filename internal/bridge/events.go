package bridge

import (
	"sync"

	"github.com/google/uuid"
)

// DeviceEventFunc receives the two-hex command code of a device event.
// Callbacks run on the session's read goroutine and must not block.
type DeviceEventFunc func(command string)

// StatusFunc is notified when connection status, version or mode changed.
// It carries no payload; subscribers pull the current status themselves.
type StatusFunc func()

// Dispatcher is the observer table for device events (keyed by device ID)
// and stick status changes. Subscribe returns a disposable unsubscribe
// handle, so entities can deterministically detach.
type Dispatcher struct {
	mu         sync.RWMutex
	deviceSubs map[string]map[uuid.UUID]DeviceEventFunc
	allSubs    map[uuid.UUID]func(deviceID, command string)
	statusSubs map[uuid.UUID]StatusFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		deviceSubs: make(map[string]map[uuid.UUID]DeviceEventFunc),
		allSubs:    make(map[uuid.UUID]func(deviceID, command string)),
		statusSubs: make(map[uuid.UUID]StatusFunc),
	}
}

// SubscribeDevice registers a callback for events of one device ID.
func (d *Dispatcher) SubscribeDevice(deviceID string, fn DeviceEventFunc) (unsubscribe func()) {
	id := uuid.New()

	d.mu.Lock()
	subs, ok := d.deviceSubs[deviceID]
	if !ok {
		subs = make(map[uuid.UUID]DeviceEventFunc)
		d.deviceSubs[deviceID] = subs
	}
	subs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if subs, ok := d.deviceSubs[deviceID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(d.deviceSubs, deviceID)
			}
		}
	}
}

// SubscribeAllDevices registers a callback for events of every device,
// known or not. Used by the broadcast surfaces.
func (d *Dispatcher) SubscribeAllDevices(fn func(deviceID, command string)) (unsubscribe func()) {
	id := uuid.New()

	d.mu.Lock()
	d.allSubs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.allSubs, id)
	}
}

// SubscribeStatus registers a callback for status-changed notifications.
func (d *Dispatcher) SubscribeStatus(fn StatusFunc) (unsubscribe func()) {
	id := uuid.New()

	d.mu.Lock()
	d.statusSubs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.statusSubs, id)
	}
}

func (d *Dispatcher) emitDeviceEvent(deviceID, command string) {
	d.mu.RLock()
	fns := make([]DeviceEventFunc, 0, len(d.deviceSubs[deviceID]))
	for _, fn := range d.deviceSubs[deviceID] {
		fns = append(fns, fn)
	}
	all := make([]func(string, string), 0, len(d.allSubs))
	for _, fn := range d.allSubs {
		all = append(all, fn)
	}
	d.mu.RUnlock()

	for _, fn := range fns {
		fn(command)
	}
	for _, fn := range all {
		fn(deviceID, command)
	}
}

func (d *Dispatcher) emitStatus() {
	d.mu.RLock()
	fns := make([]StatusFunc, 0, len(d.statusSubs))
	for _, fn := range d.statusSubs {
		fns = append(fns, fn)
	}
	d.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
