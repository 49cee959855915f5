package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gfrmin/scalibur/internal/config"
	"github.com/gfrmin/scalibur/internal/wire"
)

// Subscriber receives PacketReport messages from the scanner and hands them to
// the registered handler. The handler persists the packet; decode and
// reconciliation happen later, in ingest runs.
type Subscriber struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	// MessageHandler is called for each valid packet report.
	MessageHandler func(report wire.PacketReport) error
}

// PacketSubscriber is the interface modules use to attach handlers.
type PacketSubscriber interface {
	SetMessageHandler(handler func(report wire.PacketReport) error)
}

func (s *Subscriber) SetMessageHandler(handler func(report wire.PacketReport) error) {
	s.MessageHandler = handler
}

func NewSubscriber(cfg config.Config, logger *slog.Logger) *Subscriber {
	s := &Subscriber{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Topic returns the packet topic for the configured scale.
func (s *Subscriber) Topic() string {
	return PacketTopic(s.cfg.ScaleName)
}

// PacketTopic names the MQTT topic a scale's packets travel on.
func PacketTopic(scaleName string) string {
	return fmt.Sprintf("scale/%s/packets", scaleName)
}

// Connect establishes the broker connection and subscribes to the packet
// topic. Set the message handler before calling Connect: the broker may send
// queued QoS 1 messages right after CONNACK.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			break
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}

	if err := s.subscribe(); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (s *Subscriber) subscribe() error {
	if !s.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := s.Topic()
	qos := byte(1) // at least once; the append path dedups nothing, ingest does

	token := s.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var report wire.PacketReport
	if err := json.Unmarshal(payload, &report); err != nil {
		s.logger.Warn("failed to parse packet report",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if err := validateReport(report); err != nil {
		s.logger.Warn("invalid packet report",
			"topic", topic,
			"scale_name", report.ScaleName,
			"error", err,
		)
		return
	}

	if s.MessageHandler == nil {
		return
	}
	if err := s.MessageHandler(report); err != nil {
		s.logger.Error("message handler failed",
			"topic", topic,
			"scale_name", report.ScaleName,
			"error", err,
		)
		return
	}
	s.logger.Debug("processed packet report",
		"scale_name", report.ScaleName,
		"timestamp", report.Timestamp,
	)
}

func validateReport(r wire.PacketReport) error {
	if r.ScaleName == "" {
		return fmt.Errorf("scale_name is required")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if r.PayloadHex == "" {
		return fmt.Errorf("payload_hex is required")
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.Topic())
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
