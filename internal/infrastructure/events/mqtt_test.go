package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/logging"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

// pendingToken подключение, которое так и не завершилось
type pendingToken struct{ done chan struct{} }

func (t pendingToken) Wait() bool                     { return false }
func (t pendingToken) WaitTimeout(time.Duration) bool { return false }
func (t pendingToken) Done() <-chan struct{}          { return t.done }
func (t pendingToken) Error() error                   { return nil }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeMQTT struct {
	mu           sync.Mutex
	open         bool
	disconnected bool
	messages     []published
}

func (f *fakeMQTT) Connect() mqtt.Token {
	return pendingToken{done: make(chan struct{})}
}

func (f *fakeMQTT) setOpen(open bool) {
	f.mu.Lock()
	f.open = open
	f.mu.Unlock()
}

func (f *fakeMQTT) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeMQTT) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken{}
}

func (f *fakeMQTT) Disconnect(uint) {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakeMQTT) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

func TestMQTTEmitter_PublishesByType(t *testing.T) {
	fake := &fakeMQTT{open: true}
	e := NewMQTTEmitter("localhost:1883", "test", "brain/", logging.Discard())
	e.setClient(fake)

	e.Emit(entity.NewEvent(entity.EventScanCompleted, map[string]any{"scan_id": "s1"}))

	sent := fake.sent()
	require.Len(t, sent, 1)
	require.Equal(t, "brain/scan.completed", sent[0].topic)
	require.Zero(t, sent[0].qos)

	var ev entity.Event
	require.NoError(t, json.Unmarshal(sent[0].payload, &ev))
	require.Equal(t, "s1", ev.Data["scan_id"])

	pub, dropped := e.Stats()
	require.EqualValues(t, 1, pub)
	require.Zero(t, dropped)
}

func TestMQTTEmitter_DropsWhenDisconnected(t *testing.T) {
	e := NewMQTTEmitter("localhost:1883", "test", "brain", logging.Discard())
	e.Emit(entity.NewEvent(entity.EventTransition, nil))

	fake := &fakeMQTT{open: false}
	e.setClient(fake)
	e.Emit(entity.NewEvent(entity.EventTransition, nil))

	require.Empty(t, fake.sent())
	_, dropped := e.Stats()
	require.EqualValues(t, 2, dropped)
}

func TestNewMQTTEmitter_AddsScheme(t *testing.T) {
	require.Equal(t, "tcp://broker:1883", NewMQTTEmitter("broker:1883", "id", "p", nil).broker)
	require.Equal(t, "ssl://broker:8883", NewMQTTEmitter("ssl://broker:8883", "id", "p", nil).broker)
}

func TestMQTTEmitter_RecoversWhenBrokerComesUpLater(t *testing.T) {
	fake := &fakeMQTT{}
	e := NewMQTTEmitter("localhost:1883", "test", "brain", logging.Discard())
	e.connectTimeout = 20 * time.Millisecond
	e.newClient = func(*mqtt.ClientOptions) mqttClient { return fake }

	err := e.Connect(context.Background())
	require.ErrorContains(t, err, "timeout")
	require.NotNil(t, e.current())

	e.Emit(entity.NewEvent(entity.EventScanStarted, nil))
	require.Empty(t, fake.sent())

	// фоновая попытка подключения удалась
	fake.setOpen(true)
	e.Emit(entity.NewEvent(entity.EventScanStarted, nil))
	require.Len(t, fake.sent(), 1)

	pub, dropped := e.Stats()
	require.EqualValues(t, 1, pub)
	require.EqualValues(t, 1, dropped)

	e.Disconnect()
	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.True(t, fake.disconnected)
}
