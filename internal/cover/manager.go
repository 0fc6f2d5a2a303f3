package cover

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/config"
)

// Bridge is the slice of the radio session the cover layer depends on.
type Bridge interface {
	ControlBlind(deviceEnum, action string)
	SubscribeDevice(deviceID string, fn func(command string)) (unsubscribe func())
}

// Info is the externally visible snapshot of one managed cover.
type Info struct {
	State
	Name      string  `json:"name"`
	OpenTime  float64 `json:"open_time_seconds"`
	CloseTime float64 `json:"close_time_seconds"`
}

type entry struct {
	estimator   *Estimator
	name        string
	openTime    time.Duration
	closeTime   time.Duration
	unsubscribe func()
}

// Manager owns one position estimator per paired cover and wires radio
// events into them. State changes fan out through a single listener so
// API layers can subscribe once instead of per device.
type Manager struct {
	logger *zap.Logger
	bridge Bridge
	cfg    config.CoversConfig

	mu      sync.RWMutex
	covers  map[string]*entry
	onState func(Info)
}

func NewManager(bridge Bridge, cfg config.CoversConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger,
		bridge: bridge,
		cfg:    cfg,
		covers: make(map[string]*entry),
	}
}

// SetStateListener installs the fanout callback. Must be called before
// covers start moving; later changes would race the estimators.
func (m *Manager) SetStateListener(fn func(Info)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

// AddCoverParams carries everything needed to bring one cover under
// management, typically loaded from storage at startup or produced by a
// completed pairing.
type AddCoverParams struct {
	DeviceID   string
	DeviceEnum string
	Name       string
	OpenTime   time.Duration // zero means uncalibrated, default applies
	CloseTime  time.Duration
	Position   *int // nil when no stored position exists
}

func (m *Manager) AddCover(p AddCoverParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.covers[p.DeviceID]; exists {
		return fmt.Errorf("cover %s already managed", p.DeviceID)
	}

	openTime := p.OpenTime
	if openTime <= 0 {
		openTime = m.cfg.DefaultTravelTime
	}
	closeTime := p.CloseTime
	if closeTime <= 0 {
		closeTime = m.cfg.DefaultTravelTime
	}

	est := NewEstimator(EstimatorConfig{
		DeviceID:   p.DeviceID,
		DeviceEnum: p.DeviceEnum,
		OpenTime:   openTime,
		CloseTime:  closeTime,
		Tick:       m.cfg.PositionTick,
		Control:    m.bridge.ControlBlind,
		OnChange:   m.fanout,
	}, m.logger.With(zap.String("device_id", p.DeviceID)))

	if p.Position != nil {
		est.RestorePosition(*p.Position)
	}

	e := &entry{
		estimator: est,
		name:      p.Name,
		openTime:  openTime,
		closeTime: closeTime,
	}
	e.unsubscribe = m.bridge.SubscribeDevice(p.DeviceID, est.HandleEvent)
	m.covers[p.DeviceID] = e

	m.logger.Info("Cover unter Verwaltung",
		zap.String("device_id", p.DeviceID),
		zap.String("device_enum", p.DeviceEnum),
		zap.String("name", p.Name))
	return nil
}

// RemoveCover detaches the estimator and its event subscription. The
// caller is responsible for removing the device from radio registry and
// storage.
func (m *Manager) RemoveCover(deviceID string) error {
	m.mu.Lock()
	e, ok := m.covers[deviceID]
	if ok {
		delete(m.covers, deviceID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("cover %s not managed", deviceID)
	}
	e.unsubscribe()
	e.estimator.Shutdown()
	return nil
}

// Rename updates the display name only.
func (m *Manager) Rename(deviceID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.covers[deviceID]
	if !ok {
		return fmt.Errorf("cover %s not managed", deviceID)
	}
	e.name = name
	return nil
}

// ApplyCalibration installs measured travel times on a running cover.
func (m *Manager) ApplyCalibration(deviceID string, openTime, closeTime time.Duration) error {
	m.mu.Lock()
	e, ok := m.covers[deviceID]
	if ok {
		e.openTime = openTime
		e.closeTime = closeTime
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("cover %s not managed", deviceID)
	}
	e.estimator.SetTravelTimes(openTime, closeTime)
	return nil
}

func (m *Manager) Get(deviceID string) (Info, error) {
	m.mu.RLock()
	e, ok := m.covers[deviceID]
	m.mu.RUnlock()
	if !ok {
		return Info{}, fmt.Errorf("cover %s not managed", deviceID)
	}
	return m.infoFor(e), nil
}

// List returns snapshots of all managed covers, sorted by device ID for
// stable API output.
func (m *Manager) List() []Info {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.covers))
	for _, e := range m.covers {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, m.infoFor(e))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].DeviceID < infos[j].DeviceID })
	return infos
}

func (m *Manager) infoFor(e *entry) Info {
	m.mu.RLock()
	name := e.name
	openTime := e.openTime
	closeTime := e.closeTime
	m.mu.RUnlock()

	return Info{
		State:     e.estimator.State(),
		Name:      name,
		OpenTime:  openTime.Seconds(),
		CloseTime: closeTime.Seconds(),
	}
}

func (m *Manager) Open(deviceID string) error {
	return m.withEstimator(deviceID, (*Estimator).Open)
}

func (m *Manager) Close(deviceID string) error {
	return m.withEstimator(deviceID, (*Estimator).Close)
}

func (m *Manager) Stop(deviceID string) error {
	return m.withEstimator(deviceID, (*Estimator).Stop)
}

func (m *Manager) SetPosition(deviceID string, target int) error {
	return m.withEstimator(deviceID, func(e *Estimator) { e.SetPosition(target) })
}

func (m *Manager) withEstimator(deviceID string, op func(*Estimator)) error {
	m.mu.RLock()
	e, ok := m.covers[deviceID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("cover %s not managed", deviceID)
	}
	op(e.estimator)
	return nil
}

// Shutdown stops all estimator tickers. Subscriptions stay registered,
// the session is torn down right after anyway.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.covers))
	for _, e := range m.covers {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		e.estimator.Shutdown()
	}
}

func (m *Manager) fanout(state State) {
	m.mu.RLock()
	fn := m.onState
	e := m.covers[state.DeviceID]
	var info Info
	if e != nil {
		info = Info{
			State:     state,
			Name:      e.name,
			OpenTime:  e.openTime.Seconds(),
			CloseTime: e.closeTime.Seconds(),
		}
	}
	m.mu.RUnlock()
	if fn == nil || e == nil {
		return
	}
	fn(info)
}
