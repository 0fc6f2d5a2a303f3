package bridge

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/config"
	"github.com/KevinKickass/OpenShutterCore/internal/protocol"
)

// Status is the pull-style snapshot handed to status subscribers.
type Status struct {
	Connected bool                `json:"connected"`
	Version   string              `json:"version,omitempty"`
	Mode      protocol.DeviceMode `json:"mode,omitempty"`
	HubID     string              `json:"hub_id,omitempty"`
}

// Session owns the serial connection to the radio stick: lifecycle
// (connect, verify, listening mode, disconnect, reconnect), the read loop,
// and the dispatch of decoded messages to pending requests and subscribers.
//
// Verify, device-ID and pairing waits are single-flight: a second request
// of the same class is rejected while one is outstanding, never queued.
type Session struct {
	cfg      config.SerialConfig
	logger   *zap.Logger
	open     PortOpener
	registry *Registry
	events   *Dispatcher
	retry    *retryController

	mu          sync.Mutex
	port        Port
	connecting  bool
	connected   bool
	version     string
	mode        protocol.DeviceMode
	hubID       string
	lastCommand string

	// Offene Einzelschuss-Requests, je Klasse höchstens einer.
	verifyWait   chan struct{}
	deviceIDWait chan string
	pairingWait  chan string

	reconnectTimer   *time.Timer
	stopPairingTimer *time.Timer
}

// SessionOption customizes a session, e.g. for tests.
type SessionOption func(*Session)

// WithPortOpener replaces the real serial opener.
func WithPortOpener(open PortOpener) SessionOption {
	return func(s *Session) {
		s.open = open
	}
}

func NewSession(cfg config.SerialConfig, logger *zap.Logger, options ...SessionOption) *Session {
	s := &Session{
		cfg:      cfg,
		logger:   logger,
		open:     OpenSerialPort,
		registry: NewRegistry(logger),
		events:   NewDispatcher(),
		mode:     protocol.ModeUnknown,
	}
	s.retry = newRetryController(cfg.BusyRetryDelay, s.Send, logger)

	for _, option := range options {
		option(s)
	}

	return s
}

// Registry exposes the device-ID/enumerator registry.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Events exposes the observer table for device events and status changes.
func (s *Session) Events() *Dispatcher {
	return s.events
}

// SubscribeDevice registers a callback for events of one device ID and
// returns the disposable unsubscribe handle.
func (s *Session) SubscribeDevice(deviceID string, fn func(command string)) (unsubscribe func()) {
	return s.events.SubscribeDevice(deviceID, fn)
}

// SubscribeStatus registers a callback for status-changed notifications.
func (s *Session) SubscribeStatus(fn func()) (unsubscribe func()) {
	return s.events.SubscribeStatus(fn)
}

func (s *Session) SubscribeAllDevices(fn func(deviceID, command string)) (unsubscribe func()) {
	return s.events.SubscribeAllDevices(fn)
}

// Connect establishes the serial connection and brings the stick into
// listening mode. Reentrant calls while a connection is in flight or
// established are a no-op. An open failure schedules a retry after the
// configured delay and keeps retrying indefinitely.
func (s *Session) Connect() {
	s.mu.Lock()
	if s.connecting || s.port != nil {
		s.mu.Unlock()
		s.logger.Debug("Connection attempt already in progress or established")
		return
	}
	s.connecting = true
	s.mu.Unlock()

	s.logger.Info("Connecting to radio stick", zap.String("port", s.cfg.Port))

	port, err := s.open(s.cfg)
	if err != nil {
		s.logger.Error("Failed to open serial port, retrying",
			zap.String("port", s.cfg.Port),
			zap.Duration("delay", s.cfg.ReconnectDelay),
			zap.Error(err))

		s.mu.Lock()
		s.connecting = false
		s.reconnectTimer = time.AfterFunc(s.cfg.ReconnectDelay, s.Connect)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.port = port
	s.connecting = false
	s.mu.Unlock()

	go s.readLoop(port)

	// Stick verifizieren - antwortet nur ein echter Schellenberg-Stick
	if !s.VerifyDevice() {
		s.logger.Error("Device verification failed - not a Schellenberg radio stick")
		s.closePort(port)
		s.setConnected(false)
		return
	}

	s.setConnected(true)

	s.enterListeningMode()

	// Die eigene Stick-ID ist rein informativ, ein Fehlschlag ist nicht fatal.
	if hubID, ok := s.GetDeviceID(); ok {
		s.mu.Lock()
		s.hubID = hubID
		s.mu.Unlock()
		s.logger.Info("Hub device ID retrieved", zap.String("hub_id", hubID))
		s.events.emitStatus()
	} else {
		s.logger.Warn("Failed to retrieve hub device ID")
	}
}

// Disconnect closes the transport and cancels outstanding timers. Pending
// request waits are not force-completed; they run into their timeouts.
func (s *Session) Disconnect() {
	s.retry.Cancel()

	s.mu.Lock()
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.stopPairingTimer != nil {
		s.stopPairingTimer.Stop()
		s.stopPairingTimer = nil
	}
	port := s.port
	s.port = nil
	s.connected = false
	s.mu.Unlock()

	if port != nil {
		port.Close()
		s.logger.Info("Disconnected from radio stick")
	}

	s.events.emitStatus()
}

// Send writes one command line to the stick. The command is remembered as
// the retry candidate for a following busy signal. Not connected means the
// command is logged and dropped, never an error to the caller.
func (s *Session) Send(command string) {
	s.mu.Lock()
	port := s.port
	if port != nil {
		s.lastCommand = command
	}
	s.mu.Unlock()

	if port == nil {
		s.logger.Warn("Serial port not connected, command dropped",
			zap.String("command", command))
		return
	}

	s.logger.Debug("Sending to stick", zap.String("command", command))
	if _, err := port.Write([]byte(command + "\r\n")); err != nil {
		s.logger.Error("Serial write failed", zap.String("command", command), zap.Error(err))
	}
}

// VerifyDevice sends !? and waits for the verification response.
func (s *Session) VerifyDevice() bool {
	s.mu.Lock()
	if s.verifyWait != nil {
		s.mu.Unlock()
		s.logger.Warn("Device verification already in progress")
		return false
	}
	wait := make(chan struct{}, 1)
	s.verifyWait = wait
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.verifyWait == wait {
			s.verifyWait = nil
		}
		s.mu.Unlock()
	}()

	s.Send(protocol.CmdVerify)

	select {
	case <-wait:
		s.logger.Info("Device verification successful")
		return true
	case <-time.After(s.cfg.VerifyTimeout):
		s.logger.Error("Device verification timeout - no response to !?")
		return false
	}
}

// GetDeviceID queries the stick's own 6-hex device ID.
func (s *Session) GetDeviceID() (string, bool) {
	s.mu.Lock()
	if s.deviceIDWait != nil {
		s.mu.Unlock()
		s.logger.Warn("Device ID request already in progress")
		return "", false
	}
	wait := make(chan string, 1)
	s.deviceIDWait = wait
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.deviceIDWait == wait {
			s.deviceIDWait = nil
		}
		s.mu.Unlock()
	}()

	s.Send(protocol.CmdGetDeviceID)

	select {
	case deviceID := <-wait:
		return deviceID, true
	case <-time.After(s.cfg.DeviceIDTimeout):
		s.logger.Error("Device ID request timeout")
		return "", false
	}
}

// enterListeningMode switches the stick from initial into listening mode.
// The protocol has no ack for this: any lowercase command triggers the
// switch, then the stick needs a moment to settle.
func (s *Session) enterListeningMode() {
	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()

	if mode == protocol.ModeListening {
		s.logger.Info("Stick already in listening mode")
		return
	}

	s.logger.Info("Entering listening mode", zap.String("current_mode", string(mode)))
	s.Send("hello")
	time.Sleep(s.cfg.ListenSettleDelay)

	s.mu.Lock()
	s.mode = protocol.ModeListening
	s.mu.Unlock()
	s.events.emitStatus()
}

func (s *Session) readLoop(port Port) {
	framer := protocol.NewFramer()
	buf := make([]byte, 256)

	for {
		n, err := port.Read(buf)
		if err != nil {
			s.connectionLost(port, err)
			return
		}
		for _, line := range framer.Feed(buf[:n]) {
			s.handleLine(line)
		}
	}
}

// connectionLost marks the session disconnected after an unexpected read
// error. A port swapped out by Disconnect/closePort is not a loss.
func (s *Session) connectionLost(port Port, err error) {
	s.mu.Lock()
	if s.port != port {
		s.mu.Unlock()
		return
	}
	s.port = nil
	s.connected = false
	s.mu.Unlock()

	port.Close()
	s.logger.Warn("Serial connection lost", zap.Error(err))
	s.events.emitStatus()
}

func (s *Session) closePort(port Port) {
	s.mu.Lock()
	if s.port == port {
		s.port = nil
	}
	s.mu.Unlock()
	port.Close()
}

func (s *Session) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
	s.events.emitStatus()
}

// handleLine routes one decoded message. At most one fulfillment happens
// per message: a line that satisfies the pairing wait never doubles as a
// device event in the same dispatch.
func (s *Session) handleLine(line string) {
	s.logger.Debug("Received from stick", zap.String("line", line))

	switch msg := protocol.Decode(line).(type) {
	case protocol.DeviceVerification:
		s.mu.Lock()
		s.version = msg.Version
		s.mode = msg.Mode
		wait := s.verifyWait
		s.verifyWait = nil
		s.mu.Unlock()

		s.logger.Info("Device verified",
			zap.String("version", msg.Version),
			zap.String("mode", string(msg.Mode)))

		if wait != nil {
			wait <- struct{}{}
		}
		s.events.emitStatus()

	case protocol.TransmitAck:
		s.logger.Debug("Transmit ack", zap.String("ack", msg.Raw))

	case protocol.TransmitBusy:
		s.mu.Lock()
		last := s.lastCommand
		s.mu.Unlock()

		if last == "" {
			s.logger.Warn("Stick busy but no command to retry")
			return
		}
		s.logger.Warn("Stick busy, scheduling retry", zap.String("command", last))
		s.retry.Schedule(last)

	case protocol.DeviceIDResponse:
		s.mu.Lock()
		wait := s.deviceIDWait
		s.deviceIDWait = nil
		s.mu.Unlock()

		s.logger.Debug("Device ID response", zap.String("device_id", msg.DeviceID))
		if wait != nil {
			wait <- msg.DeviceID
		}

	case protocol.PairingListResponse:
		if !s.completePairing(msg.DeviceID) {
			s.logger.Debug("Pairing list response outside pairing mode",
				zap.String("device_id", msg.DeviceID))
		}

	case protocol.DeviceEvent:
		s.handleDeviceEvent(msg)

	case protocol.Unrecognized:
		s.logger.Debug("Unrecognized line dropped", zap.String("line", msg.Raw))
	}
}

func (s *Session) handleDeviceEvent(msg protocol.DeviceEvent) {
	// Während des Pairings gilt jedes unbekannte Gerät als der neue Motor.
	if !s.registry.Known(msg.DeviceID) && s.completePairing(msg.DeviceID) {
		return
	}

	if !s.registry.Known(msg.DeviceID) {
		s.logger.Warn("Event from unregistered device",
			zap.String("device_id", msg.DeviceID),
			zap.String("device_enum", msg.DeviceEnum),
			zap.String("command", msg.Command))
	} else {
		s.logger.Debug("Forwarding device event",
			zap.String("device_id", msg.DeviceID),
			zap.String("command", msg.Command))
	}

	// Events werden auch für unbekannte Geräte verteilt, nur geloggt.
	s.events.emitDeviceEvent(msg.DeviceID, msg.Command)
}

// completePairing fulfills an open pairing wait with the announced device
// ID and schedules the deferred stop-pairing command. Returns false when
// no pairing is in flight.
func (s *Session) completePairing(deviceID string) bool {
	s.mu.Lock()
	wait := s.pairingWait
	s.pairingWait = nil
	if wait == nil {
		s.mu.Unlock()
		return false
	}

	// Dem Motor 2 Sekunden geben, sein eigenes Pairing abzuschließen,
	// bevor der Stick den Pairing-Modus verlässt.
	s.stopPairingTimer = time.AfterFunc(s.cfg.StopPairingDelay, func() {
		s.logger.Debug("Stopping pairing mode")
		s.Send(protocol.CmdStopPairing)
	})
	s.mu.Unlock()

	s.logger.Info("Pairing response received", zap.String("device_id", deviceID))
	wait <- deviceID
	return true
}

// IsConnected reports whether the stick is connected and verified.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Status returns the current connection status snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Connected: s.connected,
		Version:   s.version,
		Mode:      s.mode,
		HubID:     s.hubID,
	}
}
