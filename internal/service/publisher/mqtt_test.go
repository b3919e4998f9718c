package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/martout2002/JBbot/internal/model"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type mockClient struct {
	publishFn func(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return m.publishFn(topic, qos, retained, payload)
}

func TestPublishChange_Success(t *testing.T) {
	var gotTopic string
	var gotQoS byte
	var gotRetained bool
	var gotPayload []byte

	p := NewMQTTPublisher(&mockClient{
		publishFn: func(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
			gotTopic, gotQoS, gotRetained = topic, qos, retained
			gotPayload = payload.([]byte)
			return completedToken(nil)
		},
	}, "jbbot/traffic/")

	ev := model.ChangeEvent{
		Checkpoint: "Tuas",
		Previous:   "12 mins to JB",
		Current:    "15 mins to JB",
		ObservedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := p.PublishChange(context.Background(), ev); err != nil {
		t.Fatalf("PublishChange() error = %v", err)
	}

	if gotTopic != "jbbot/traffic/tuas" {
		t.Errorf("topic = %q, want %q", gotTopic, "jbbot/traffic/tuas")
	}
	if gotQoS != 1 || gotRetained {
		t.Errorf("qos = %d retained = %v, want 1 false", gotQoS, gotRetained)
	}

	var decoded model.ChangeEvent
	if err := json.Unmarshal(gotPayload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Current != "15 mins to JB" || decoded.Previous != "12 mins to JB" {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestPublishChange_BrokerError(t *testing.T) {
	brokerErr := errors.New("not authorized")
	p := NewMQTTPublisher(&mockClient{
		publishFn: func(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
			return completedToken(brokerErr)
		},
	}, "jbbot/traffic")

	err := p.PublishChange(context.Background(), model.ChangeEvent{Checkpoint: "Woodlands"})
	if !errors.Is(err, brokerErr) {
		t.Errorf("error = %v, want %v", err, brokerErr)
	}
}

func TestPublishChange_Timeout(t *testing.T) {
	p := NewMQTTPublisher(&mockClient{
		publishFn: func(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
			return &fakeToken{done: make(chan struct{})}
		},
	}, "jbbot/traffic")
	p.timeout = 10 * time.Millisecond

	err := p.PublishChange(context.Background(), model.ChangeEvent{Checkpoint: "Tuas"})
	if !errors.Is(err, ErrPublishTimeout) {
		t.Errorf("error = %v, want ErrPublishTimeout", err)
	}
}

func TestPublishChange_CanceledContext(t *testing.T) {
	p := NewMQTTPublisher(&mockClient{
		publishFn: func(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
			return &fakeToken{done: make(chan struct{})}
		},
	}, "jbbot/traffic")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PublishChange(ctx, model.ChangeEvent{Checkpoint: "Tuas"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestTopic(t *testing.T) {
	p := NewMQTTPublisher(&mockClient{}, "jbbot/traffic")
	tests := map[string]string{
		"Tuas":      "jbbot/traffic/tuas",
		"WOODLANDS": "jbbot/traffic/woodlands",
	}
	for name, want := range tests {
		if got := p.Topic(name); got != want {
			t.Errorf("Topic(%q) = %q, want %q", name, got, want)
		}
	}
}
