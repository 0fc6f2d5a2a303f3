package bridge

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/config"
	"github.com/KevinKickass/OpenShutterCore/internal/protocol"
)

// fakePort is an in-memory serial port. Writes are recorded; an optional
// responder turns outgoing commands into inbound lines, emulating the stick.
type fakePort struct {
	mu        sync.Mutex
	inbox     chan []byte
	writes    []string
	respond   func(command string) []string
	closeOnce sync.Once
}

func newFakePort(respond func(command string) []string) *fakePort {
	return &fakePort{
		inbox:   make(chan []byte, 64),
		respond: respond,
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	data, ok := <-p.inbox
	if !ok {
		return 0, io.EOF
	}
	return copy(b, data), nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	command := strings.TrimSpace(string(b))

	p.mu.Lock()
	p.writes = append(p.writes, command)
	respond := p.respond
	p.mu.Unlock()

	if respond != nil {
		for _, line := range respond(command) {
			p.push(line)
		}
	}
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closeOnce.Do(func() { close(p.inbox) })
	return nil
}

func (p *fakePort) push(line string) {
	p.inbox <- []byte(line + "\r\n")
}

func (p *fakePort) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

func (p *fakePort) countWrites(command string) int {
	count := 0
	for _, w := range p.written() {
		if w == command {
			count++
		}
	}
	return count
}

// stickResponder emulates a healthy stick in initial mode.
func stickResponder(command string) []string {
	switch command {
	case protocol.CmdVerify:
		return []string{"RFTU_V20 F:20180510_DFBD B:1"}
	case protocol.CmdGetDeviceID:
		return []string{"sr5D3E7C"}
	default:
		return []string{"t1"}
	}
}

func testSerialConfig() config.SerialConfig {
	return config.SerialConfig{
		Port:              "/dev/ttyTEST",
		BaudRate:          112500,
		VerifyTimeout:     200 * time.Millisecond,
		DeviceIDTimeout:   200 * time.Millisecond,
		PairingTimeout:    500 * time.Millisecond,
		ReconnectDelay:    50 * time.Millisecond,
		ListenSettleDelay: time.Millisecond,
		BusyRetryDelay:    60 * time.Millisecond,
		StopPairingDelay:  30 * time.Millisecond,
	}
}

func newTestSession(t *testing.T, port *fakePort) *Session {
	t.Helper()

	opens := int32(0)
	s := NewSession(testSerialConfig(), zap.NewNop(), WithPortOpener(
		func(config.SerialConfig) (Port, error) {
			atomic.AddInt32(&opens, 1)
			return port, nil
		}))
	t.Cleanup(s.Disconnect)
	return s
}

func TestConnectReachesReady(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)

	s.Connect()

	require.True(t, s.IsConnected())
	status := s.Status()
	assert.Equal(t, "RFTU_V20", status.Version)
	assert.Equal(t, protocol.ModeListening, status.Mode)
	assert.Equal(t, "5D3E7C", status.HubID)

	// Initial mode means a lowercase command must have been sent.
	assert.Contains(t, port.written(), "hello")
}

func TestConnectIsIdempotent(t *testing.T) {
	port := newFakePort(stickResponder)

	opens := int32(0)
	s := NewSession(testSerialConfig(), zap.NewNop(), WithPortOpener(
		func(config.SerialConfig) (Port, error) {
			atomic.AddInt32(&opens, 1)
			return port, nil
		}))
	defer s.Disconnect()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Connect()
		}()
	}
	wg.Wait()
	s.Connect() // und ein drittes Mal im verbundenen Zustand

	assert.Equal(t, int32(1), atomic.LoadInt32(&opens))
}

// Connect ist synchron und hält den Aufrufer für Verify und Settle fest.
// Wer den Start nicht blockieren will (z. B. der Systemstart), muss
// Connect in einer eigenen Goroutine aufrufen.
func TestConnectBlocksThroughVerification(t *testing.T) {
	// Responder schweigt, Connect läuft in den Verify-Timeout.
	port := newFakePort(nil)
	s := newTestSession(t, port)

	start := time.Now()
	s.Connect()

	assert.GreaterOrEqual(t, time.Since(start), testSerialConfig().VerifyTimeout)
	assert.False(t, s.IsConnected())
}

func TestConnectRunsSafelyInBackground(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)

	go s.Connect()

	require.Eventually(t, s.IsConnected, time.Second, 5*time.Millisecond)
}

func TestConnectVerificationTimeout(t *testing.T) {
	// Responder schweigt - kein Schellenberg-Stick.
	port := newFakePort(nil)
	s := newTestSession(t, port)

	s.Connect()

	assert.False(t, s.IsConnected())
}

func TestDeviceEventDispatch(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)
	s.Connect()

	s.Registry().Register("ABC123", "10")

	events := make(chan string, 1)
	unsubscribe := s.Events().SubscribeDevice("ABC123", func(command string) {
		events <- command
	})
	defer unsubscribe()

	port.push("ss10ABC123ZZZZ01PP00")

	select {
	case command := <-events:
		assert.Equal(t, protocol.EventStartedMovingUp, command)
	case <-time.After(time.Second):
		t.Fatal("device event was not dispatched")
	}
}

func TestUnknownDeviceEventIsStillDispatched(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)
	s.Connect()

	events := make(chan string, 1)
	defer s.Events().SubscribeDevice("FFFFFF", func(command string) {
		events <- command
	})()

	port.push("ssA0FFFFFFZZZZ00PP00")

	select {
	case command := <-events:
		assert.Equal(t, protocol.EventStopped, command)
	case <-time.After(time.Second):
		t.Fatal("event from unregistered device was dropped")
	}
}

func TestBusyRetriesLastCommandExactlyOnce(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)
	s.Connect()

	s.ControlBlind("10", protocol.CmdUp)
	require.Equal(t, 1, port.countWrites("ss109010000"))

	// Zwei tE direkt hintereinander: der zweite ersetzt den Timer des
	// ersten, es bleibt bei genau einer Wiederholung.
	port.push("tE")
	port.push("tE")

	require.Eventually(t, func() bool {
		return port.countWrites("ss109010000") == 2
	}, time.Second, 10*time.Millisecond)

	time.Sleep(2 * testSerialConfig().BusyRetryDelay)
	assert.Equal(t, 2, port.countWrites("ss109010000"))
}

func TestPairingViaListResponse(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)
	s.Connect()

	type result struct {
		device PairedDevice
		ok     bool
	}
	results := make(chan result, 1)
	go func() {
		device, ok := s.PairDeviceAndWait(context.Background())
		results <- result{device, ok}
	}()

	// Warten bis der Pairing-Wait steht, dann meldet sich der Motor.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pairingWait != nil
	}, time.Second, 5*time.Millisecond)

	port.push("sl00BEDEV789")

	select {
	case r := <-results:
		require.True(t, r.ok)
		assert.Equal(t, "DEV789", r.device.DeviceID)
		assert.Equal(t, "10", r.device.DeviceEnum)
	case <-time.After(time.Second):
		t.Fatal("pairing did not complete")
	}

	// Das Pair-Telegramm geht erst nach der Antwort raus.
	require.Eventually(t, func() bool {
		return port.countWrites("ss106000000") == 1
	}, time.Second, 5*time.Millisecond)

	// Verzögertes Beenden des Pairing-Modus.
	require.Eventually(t, func() bool {
		return port.countWrites(protocol.CmdStopPairing) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPairingViaUnknownDeviceEvent(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)
	s.Connect()

	s.Registry().Register("AAAAAA", "10")

	// Das Event, das das Pairing erfüllt, darf nicht zusätzlich als
	// Geräte-Event verteilt werden.
	leaked := make(chan string, 1)
	defer s.Events().SubscribeDevice("XYZ999", func(command string) {
		leaked <- command
	})()

	results := make(chan PairedDevice, 1)
	go func() {
		if device, ok := s.PairDeviceAndWait(context.Background()); ok {
			results <- device
		}
	}()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pairingWait != nil
	}, time.Second, 5*time.Millisecond)

	port.push("ss31XYZ999ZZZZ01PP00")

	select {
	case device := <-results:
		assert.Equal(t, "XYZ999", device.DeviceID)
		assert.Equal(t, "11", device.DeviceEnum)
	case <-time.After(time.Second):
		t.Fatal("pairing did not complete")
	}

	select {
	case <-leaked:
		t.Fatal("pairing event leaked to device subscribers")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPairingRejectsReentrantCall(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)
	s.Connect()

	go s.PairDeviceAndWait(context.Background())

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pairingWait != nil
	}, time.Second, 5*time.Millisecond)

	_, ok := s.PairDeviceAndWait(context.Background())
	assert.False(t, ok)
}

func TestStatusSubscription(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)

	updates := int32(0)
	defer s.Events().SubscribeStatus(func() {
		atomic.AddInt32(&updates, 1)
	})()

	s.Connect()
	assert.Positive(t, atomic.LoadInt32(&updates))
}

func TestConnectionLossMarksDisconnected(t *testing.T) {
	port := newFakePort(stickResponder)
	s := newTestSession(t, port)
	s.Connect()
	require.True(t, s.IsConnected())

	port.Close() // Stick gezogen

	require.Eventually(t, func() bool {
		return !s.IsConnected()
	}, time.Second, 5*time.Millisecond)
}
