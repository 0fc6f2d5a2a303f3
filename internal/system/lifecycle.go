package system

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/api/rest"
	"github.com/KevinKickass/OpenShutterCore/internal/api/websocket"
	"github.com/KevinKickass/OpenShutterCore/internal/auth"
	"github.com/KevinKickass/OpenShutterCore/internal/bridge"
	"github.com/KevinKickass/OpenShutterCore/internal/config"
	"github.com/KevinKickass/OpenShutterCore/internal/cover"
	"github.com/KevinKickass/OpenShutterCore/internal/interfaces"
	"github.com/KevinKickass/OpenShutterCore/internal/mqtt"
	"github.com/KevinKickass/OpenShutterCore/internal/profiles"
	"github.com/KevinKickass/OpenShutterCore/internal/storage"
)

// LifecycleManager wires the whole bridge together: radio session, cover
// manager, calibrator, persistence, and the REST / WebSocket / MQTT
// surfaces. It owns startup order and graceful shutdown.
type LifecycleManager struct {
	config          *config.Config
	storage         *storage.PostgresClient
	session         *bridge.Session
	coverManager    *cover.Manager
	calibrator      *cover.Calibrator
	profileLoader   *profiles.ProfileLoader
	importValidator *profiles.Validator
	authService     *auth.AuthService
	logger          *zap.Logger

	restServer    *rest.Server
	wsHub         *websocket.Hub
	mqttPublisher *mqtt.Publisher

	stateMu      sync.RWMutex
	currentState SystemState

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(store *storage.PostgresClient, cfg *config.Config, logger *zap.Logger) *LifecycleManager {
	session := bridge.NewSession(cfg.Serial, logger)
	coverManager := cover.NewManager(session, cfg.Covers, logger)
	calibrator := cover.NewCalibrator(session, coverManager, store,
		cfg.Covers.CalibrationTimeout, logger)

	profileLoader, err := profiles.NewProfileLoader(cfg.Profiles.SearchPaths)
	if err != nil {
		logger.Fatal("Failed to create profile loader", zap.Error(err))
	}
	importValidator, err := profiles.NewValidator()
	if err != nil {
		logger.Fatal("Failed to create import validator", zap.Error(err))
	}

	authService := auth.NewAuthService(store, cfg.Auth)
	wsHub := websocket.NewHub(logger, authService)

	lm := &LifecycleManager{
		config:          cfg,
		storage:         store,
		session:         session,
		coverManager:    coverManager,
		calibrator:      calibrator,
		profileLoader:   profileLoader,
		importValidator: importValidator,
		authService:     authService,
		logger:          logger,
		wsHub:           wsHub,
		currentState:    StateInitializing,
		shutdownChan:    make(chan struct{}),
	}

	if cfg.MQTT.Enabled {
		lm.mqttPublisher = mqtt.NewPublisher(cfg.MQTT, coverManager, logger)
	}

	return lm
}

// Start starts the entire system
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting OpenShutterCore")
	lm.setState(StateInitializing)

	ctx := context.Background()

	// Initialer Admin-Account, nur wenn das Passwort gesetzt ist.
	if password := os.Getenv("OSC_ADMIN_PASSWORD"); password != "" {
		if err := lm.authService.EnsureUser(ctx, "admin", password, "admin"); err != nil {
			lm.logger.Warn("Failed to bootstrap admin user", zap.Error(err))
		}
	}

	if err := lm.loadCoversFromDB(ctx); err != nil {
		lm.logger.Warn("Failed to load covers from database", zap.Error(err))
		// Continue anyway, not critical
	}

	lm.wireEventFanout()

	go lm.wsHub.Run()

	// Session verbindet asynchron und versucht es bei Fehlern selbst
	// weiter, der Rest des Systems startet unabhängig davon. Connect
	// blockiert für Verify und Settle, deshalb die eigene Goroutine.
	go lm.session.Connect()

	if lm.mqttPublisher != nil {
		if err := lm.mqttPublisher.Connect(); err != nil {
			lm.logger.Warn("MQTT connect failed, continuing without broker",
				zap.Error(err))
		}
	}

	if err := lm.startRESTServer(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.setState(StateRunning)
	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.String("serial_port", lm.config.Serial.Port),
		zap.Bool("mqtt_enabled", lm.config.MQTT.Enabled))

	return nil
}

func (lm *LifecycleManager) loadCoversFromDB(ctx context.Context) error {
	devices, err := lm.storage.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}

	lm.logger.Info("Loading covers from database", zap.Int("count", len(devices)))

	registered := make([]bridge.RegisteredDevice, 0, len(devices))
	for _, device := range devices {
		registered = append(registered, bridge.RegisteredDevice{
			ID:   device.DeviceID,
			Enum: device.DeviceEnum,
		})
	}
	lm.session.Registry().RegisterAll(registered)

	for _, device := range devices {
		err := lm.coverManager.AddCover(cover.AddCoverParams{
			DeviceID:   device.DeviceID,
			DeviceEnum: device.DeviceEnum,
			Name:       device.Name,
			OpenTime:   secondsToDuration(device.OpenTime),
			CloseTime:  secondsToDuration(device.CloseTime),
			Position:   device.Position,
		})
		if err != nil {
			lm.logger.Error("Failed to add cover",
				zap.String("device_id", device.DeviceID),
				zap.Error(err))
		}
	}

	return nil
}

// wireEventFanout connects estimator and session callbacks to the
// outward-facing surfaces and to position persistence.
func (lm *LifecycleManager) wireEventFanout() {
	lm.coverManager.SetStateListener(func(info cover.Info) {
		lm.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeCoverPosition, info))
		if lm.mqttPublisher != nil {
			lm.mqttPublisher.PublishCoverState(info)
		}

		// Ruhelagen persistieren, Zwischenstände während der Fahrt nicht.
		if info.Direction == cover.DirectionIdle && info.Known {
			go lm.persistPosition(info.DeviceID, info.Position)
		}
	})

	lm.session.SubscribeAllDevices(func(deviceID, command string) {
		lm.wsHub.Broadcast(websocket.NewDeviceEventMessage(deviceID, command))
	})

	lm.session.SubscribeStatus(func() {
		status := lm.session.Status()
		lm.wsHub.Broadcast(websocket.NewStickStatusMessage(
			status.Connected, status.Version, string(status.Mode), status.HubID))
		if lm.mqttPublisher != nil {
			lm.mqttPublisher.PublishStickStatus(
				status.Connected, status.Version, string(status.Mode))
		}
	})
}

func (lm *LifecycleManager) persistPosition(deviceID string, position int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := lm.storage.UpdatePosition(ctx, deviceID, position); err != nil {
		lm.logger.Warn("Failed to persist position",
			zap.String("device_id", deviceID),
			zap.Error(err))
	}
}

// PairDevice runs the pairing handshake and, on success, persists and
// manages the new cover. An optional motor profile seeds the travel times
// with the catalog values for the model. Returns ok=false when no device
// answered within the pairing window.
func (lm *LifecycleManager) PairDevice(ctx context.Context, name, profileName string) (cover.Info, bool, error) {
	paired, ok := lm.session.PairDeviceAndWait(ctx)
	if !ok {
		return cover.Info{}, false, nil
	}

	lm.session.Registry().Register(paired.DeviceID, paired.DeviceEnum)

	if name == "" {
		name = "Cover " + paired.DeviceID
	}
	_, err := lm.storage.SaveDevice(ctx, storage.Device{
		DeviceID:   paired.DeviceID,
		DeviceEnum: paired.DeviceEnum,
		Name:       name,
	})
	if err != nil {
		return cover.Info{}, true, fmt.Errorf("failed to persist paired device: %w", err)
	}

	err = lm.coverManager.AddCover(cover.AddCoverParams{
		DeviceID:   paired.DeviceID,
		DeviceEnum: paired.DeviceEnum,
		Name:       name,
	})
	if err != nil {
		return cover.Info{}, true, err
	}

	if profileName != "" {
		if err := lm.applyProfile(ctx, paired.DeviceID, profileName); err != nil {
			lm.logger.Warn("Failed to apply motor profile",
				zap.String("device_id", paired.DeviceID),
				zap.String("profile", profileName),
				zap.Error(err))
		}
	}

	lm.wsHub.Broadcast(websocket.NewDevicePairedMessage(paired.DeviceID, paired.DeviceEnum))

	info, err := lm.coverManager.Get(paired.DeviceID)
	if err != nil {
		return cover.Info{}, true, err
	}
	return info, true, nil
}

// applyProfile seeds a cover with the catalog travel times of its motor
// model. Like a calibration run this pins the position to fully closed.
func (lm *LifecycleManager) applyProfile(ctx context.Context, deviceID, profileName string) error {
	profile, err := lm.profileLoader.Load(profileName)
	if err != nil {
		return err
	}
	if profile.Travel.OpenTimeSeconds <= 0 || profile.Travel.CloseTimeSeconds <= 0 {
		return fmt.Errorf("profile %q carries no travel times", profileName)
	}

	err = lm.coverManager.ApplyCalibration(deviceID,
		secondsToDuration(profile.Travel.OpenTimeSeconds),
		secondsToDuration(profile.Travel.CloseTimeSeconds))
	if err != nil {
		return err
	}
	return lm.storage.UpdateCalibration(ctx, deviceID,
		profile.Travel.OpenTimeSeconds, profile.Travel.CloseTimeSeconds)
}

// RemoveDevice forgets a paired cover everywhere: manager, radio
// registry, and database.
func (lm *LifecycleManager) RemoveDevice(ctx context.Context, deviceID string) error {
	if err := lm.coverManager.RemoveCover(deviceID); err != nil {
		return err
	}
	lm.session.Registry().Remove(deviceID)
	return lm.storage.DeleteDevice(ctx, deviceID)
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
		close(lm.shutdownChan)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// 1. REST API Server graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	// 2. MQTT sauber abmelden (LWT nicht auslösen)
	if lm.mqttPublisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lm.mqttPublisher.Disconnect()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		return fmt.Errorf("shutdown timeout exceeded")
	case err := <-errChan:
		return err
	}

	// Estimatoren und Session zuletzt, damit laufende Requests noch an
	// den Stick rauskonnten.
	lm.coverManager.Shutdown()
	lm.session.Disconnect()

	lm.logger.Info("Graceful shutdown completed")
	return nil
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.wsHub, lm.authService)
	return lm.restServer.Start()
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if state == lm.currentState {
		return
	}
	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("State transition rejected", zap.Error(err))
		return
	}
	lm.currentState = state
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	state := lm.currentState
	lm.stateMu.RUnlock()

	stick := lm.session.Status()
	return interfaces.SystemStatus{
		State:          state.String(),
		StickConnected: stick.Connected,
		StickVersion:   stick.Version,
		StickMode:      string(stick.Mode),
		CoverCount:     len(lm.coverManager.List()),
	}
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

// Storage returns the storage client
func (lm *LifecycleManager) Storage() *storage.PostgresClient {
	return lm.storage
}

// Session returns the radio stick session
func (lm *LifecycleManager) Session() *bridge.Session {
	return lm.session
}

// CoverManager returns the cover manager
func (lm *LifecycleManager) CoverManager() *cover.Manager {
	return lm.coverManager
}

// Calibrator returns the travel-time calibrator
func (lm *LifecycleManager) Calibrator() *cover.Calibrator {
	return lm.calibrator
}

// Profiles returns the motor profile loader
func (lm *LifecycleManager) Profiles() *profiles.ProfileLoader {
	return lm.profileLoader
}

// ImportValidator returns the schema validator for import payloads
func (lm *LifecycleManager) ImportValidator() *profiles.Validator {
	return lm.importValidator
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
