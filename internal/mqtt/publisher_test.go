package mqtt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/config"
)

type fakeCovers struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeCovers) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return nil
}

func (f *fakeCovers) Open(id string) error  { return f.record("open:" + id) }
func (f *fakeCovers) Close(id string) error { return f.record("close:" + id) }
func (f *fakeCovers) Stop(id string) error  { return f.record("stop:" + id) }
func (f *fakeCovers) SetPosition(id string, target int) error {
	return f.record("set:" + id)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestPublisher(covers CoverController) *Publisher {
	return NewPublisher(config.MQTTConfig{TopicPrefix: "shutter"}, covers, zap.NewNop())
}

func TestDeviceFromTopic(t *testing.T) {
	p := newTestPublisher(nil)

	id, ok := p.deviceFromTopic("shutter/cover/5D3E7C/set")
	assert.True(t, ok)
	assert.Equal(t, "5D3E7C", id)

	_, ok = p.deviceFromTopic("other/cover/5D3E7C/set")
	assert.False(t, ok)

	_, ok = p.deviceFromTopic("shutter/bridge/status")
	assert.False(t, ok)
}

func TestHandleSetRoutesCommands(t *testing.T) {
	covers := &fakeCovers{}
	p := newTestPublisher(covers)

	p.handleSet(nil, &fakeMessage{topic: "shutter/cover/5D3E7C/set", payload: []byte("OPEN")})
	p.handleSet(nil, &fakeMessage{topic: "shutter/cover/5D3E7C/set", payload: []byte(" close ")})
	p.handleSet(nil, &fakeMessage{topic: "shutter/cover/5D3E7C/set", payload: []byte("STOP")})
	p.handleSet(nil, &fakeMessage{topic: "shutter/cover/5D3E7C/set", payload: []byte("JUMP")})

	assert.Equal(t, []string{"open:5D3E7C", "close:5D3E7C", "stop:5D3E7C"}, covers.calls)
}

func TestHandleSetPositionValidatesPayload(t *testing.T) {
	covers := &fakeCovers{}
	p := newTestPublisher(covers)

	p.handleSetPosition(nil, &fakeMessage{topic: "shutter/cover/5D3E7C/set_position", payload: []byte("70")})
	p.handleSetPosition(nil, &fakeMessage{topic: "shutter/cover/5D3E7C/set_position", payload: []byte("142")})
	p.handleSetPosition(nil, &fakeMessage{topic: "shutter/cover/5D3E7C/set_position", payload: []byte("oben")})

	assert.Equal(t, []string{"set:5D3E7C"}, covers.calls)
}
