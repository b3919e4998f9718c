package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/martout2002/JBbot/internal/model"
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher emits checkpoint change events to
// <topic>/<checkpoint> with QoS 1.
type MQTTPublisher struct {
	client  mqttPublisher
	topic   string
	timeout time.Duration
}

func NewMQTTPublisher(client mqttPublisher, topic string) *MQTTPublisher {
	return &MQTTPublisher{
		client:  client,
		topic:   strings.TrimSuffix(topic, "/"),
		timeout: 5 * time.Second,
	}
}

// Connect dials the broker and returns a publisher and the underlying client
// so the caller can disconnect it on shutdown.
func Connect(ctx context.Context, broker, clientID, topic string) (*MQTTPublisher, mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		slog.Info("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(250)
		return nil, nil, fmt.Errorf("connect mqtt broker: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("connect mqtt broker: %w", err)
	}
	return NewMQTTPublisher(client, topic), client, nil
}

// Topic returns the topic a checkpoint's events are published on. The
// checkpoint segment is lower-cased so subscribers need not track the
// configured spelling.
func (p *MQTTPublisher) Topic(checkpoint string) string {
	return p.topic + "/" + strings.ToLower(checkpoint)
}

func (p *MQTTPublisher) PublishChange(ctx context.Context, ev model.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	token := p.client.Publish(p.Topic(ev.Checkpoint), 1, false, payload)
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
