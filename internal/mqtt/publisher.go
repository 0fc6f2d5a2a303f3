package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/config"
	"github.com/KevinKickass/OpenShutterCore/internal/cover"
)

// CoverController is the slice of the cover manager the MQTT side needs.
type CoverController interface {
	Open(deviceID string) error
	Close(deviceID string) error
	Stop(deviceID string) error
	SetPosition(deviceID string, target int) error
}

// Publisher bridges cover state to an MQTT broker and accepts commands
// on {prefix}/cover/{device_id}/set and .../set_position. Payloads are
// the Home-Assistant-style OPEN / CLOSE / STOP strings.
type Publisher struct {
	logger *zap.Logger
	cfg    config.MQTTConfig
	covers CoverController
	client pahomqtt.Client
}

func NewPublisher(cfg config.MQTTConfig, covers CoverController, logger *zap.Logger) *Publisher {
	return &Publisher{
		logger: logger,
		cfg:    cfg,
		covers: covers,
	}
}

// Connect establishes the broker session. Reconnects are handled by the
// paho client; the command subscriptions are re-established on every
// connect.
func (p *Publisher) Connect() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(p.cfg.BrokerURL).
		SetClientID(p.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetWill(p.topic("bridge", "availability"), "offline", 1, true)

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		p.logger.Info("MQTT connected", zap.String("broker", p.cfg.BrokerURL))
		client.Publish(p.topic("bridge", "availability"), 1, true, "online")
		p.subscribeCommands(client)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect timeout")
	}
	return token.Error()
}

func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Publish(p.topic("bridge", "availability"), 1, true, "offline").Wait()
		p.client.Disconnect(250)
	}
}

func (p *Publisher) subscribeCommands(client pahomqtt.Client) {
	setTopic := p.topic("cover", "+", "set")
	if token := client.Subscribe(setTopic, 1, p.handleSet); token.Wait() && token.Error() != nil {
		p.logger.Error("MQTT subscribe failed",
			zap.String("topic", setTopic), zap.Error(token.Error()))
	}

	posTopic := p.topic("cover", "+", "set_position")
	if token := client.Subscribe(posTopic, 1, p.handleSetPosition); token.Wait() && token.Error() != nil {
		p.logger.Error("MQTT subscribe failed",
			zap.String("topic", posTopic), zap.Error(token.Error()))
	}
}

func (p *Publisher) handleSet(_ pahomqtt.Client, msg pahomqtt.Message) {
	deviceID, ok := p.deviceFromTopic(msg.Topic())
	if !ok {
		return
	}

	var err error
	switch strings.ToUpper(strings.TrimSpace(string(msg.Payload()))) {
	case "OPEN":
		err = p.covers.Open(deviceID)
	case "CLOSE":
		err = p.covers.Close(deviceID)
	case "STOP":
		err = p.covers.Stop(deviceID)
	default:
		p.logger.Warn("Unknown MQTT cover command",
			zap.String("device_id", deviceID),
			zap.ByteString("payload", msg.Payload()))
		return
	}
	if err != nil {
		p.logger.Warn("MQTT cover command failed",
			zap.String("device_id", deviceID), zap.Error(err))
	}
}

func (p *Publisher) handleSetPosition(_ pahomqtt.Client, msg pahomqtt.Message) {
	deviceID, ok := p.deviceFromTopic(msg.Topic())
	if !ok {
		return
	}

	position, err := strconv.Atoi(strings.TrimSpace(string(msg.Payload())))
	if err != nil || position < 0 || position > 100 {
		p.logger.Warn("Invalid MQTT position payload",
			zap.String("device_id", deviceID),
			zap.ByteString("payload", msg.Payload()))
		return
	}

	if err := p.covers.SetPosition(deviceID, position); err != nil {
		p.logger.Warn("MQTT set_position failed",
			zap.String("device_id", deviceID), zap.Error(err))
	}
}

// PublishCoverState pushes the current estimate of one cover, retained
// so new subscribers see the last known state immediately.
func (p *Publisher) PublishCoverState(info cover.Info) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(info)
	if err != nil {
		p.logger.Error("Failed to marshal cover state", zap.Error(err))
		return
	}

	p.client.Publish(p.topic("cover", info.DeviceID, "state"), 0, true, payload)
	if info.Known {
		p.client.Publish(p.topic("cover", info.DeviceID, "position"), 0, true,
			strconv.Itoa(info.Position))
	}
}

// PublishStickStatus pushes the session status of the radio stick.
func (p *Publisher) PublishStickStatus(connected bool, version, mode string) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"connected": connected,
		"version":   version,
		"mode":      mode,
	})
	p.client.Publish(p.topic("bridge", "status"), 0, true, payload)
}

func (p *Publisher) topic(parts ...string) string {
	return p.cfg.TopicPrefix + "/" + strings.Join(parts, "/")
}

// deviceFromTopic extracts the device ID from {prefix}/cover/{id}/...
func (p *Publisher) deviceFromTopic(topic string) (string, bool) {
	rest := strings.TrimPrefix(topic, p.cfg.TopicPrefix+"/cover/")
	if rest == topic {
		return "", false
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}
