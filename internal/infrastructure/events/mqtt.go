package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// mqttClient часть mqtt.Client, которой пользуется эмиттер
type mqttClient interface {
	Connect() mqtt.Token
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTEmitter публикует события в топики <prefix>/<type> с QoS 0.
type MQTTEmitter struct {
	broker   string
	clientID string
	prefix   string
	logger   *slog.Logger

	newClient      func(*mqtt.ClientOptions) mqttClient
	connectTimeout time.Duration

	mu     sync.RWMutex
	client mqttClient

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewMQTTEmitter(broker, clientID, prefix string, logger *slog.Logger) *MQTTEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	return &MQTTEmitter{
		broker:   broker,
		clientID: clientID,
		prefix:   strings.TrimRight(prefix, "/"),
		logger:   logger.With("component", "mqtt"),

		newClient:      func(opts *mqtt.ClientOptions) mqttClient { return mqtt.NewClient(opts) },
		connectTimeout: 5 * time.Second,
	}
}

// Connect подключается к брокеру. Клиент сохраняется до ожидания: если брокер
// не ответил вовремя, попытки продолжаются в фоне и Emit заработает после подключения.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.broker)
	opts.SetClientID(e.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.logger.Info("mqtt connection established", "broker", e.broker, "client_id", e.clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.logger.Warn("mqtt connection lost, will auto-reconnect", "broker", e.broker, "error", err)
	}

	client := e.newClient(opts)
	e.setClient(client)
	e.logger.Info("connecting to mqtt broker", "broker", e.broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.connectTimeout):
		return errors.New("mqtt connection timeout, retrying in background")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Emit публикует событие без ожидания подтверждения.
func (e *MQTTEmitter) Emit(ev entity.Event) {
	client := e.current()
	if client == nil || !client.IsConnectionOpen() {
		e.dropped.Add(1)
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error("marshal event", "type", ev.Type, "error", err)
		return
	}

	topic := e.prefix + "/" + ev.Type
	token := client.Publish(topic, 0, false, payload)
	e.published.Add(1)

	go func() {
		if !token.WaitTimeout(2 * time.Second) {
			e.logger.Debug("mqtt publish not confirmed", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			e.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		}
	}()
}

// Stats сколько событий отправлено и сколько отброшено без соединения.
func (e *MQTTEmitter) Stats() (published, dropped uint64) {
	return e.published.Load(), e.dropped.Load()
}

func (e *MQTTEmitter) Disconnect() {
	if client := e.current(); client != nil {
		client.Disconnect(250)
		e.logger.Info("mqtt disconnected")
	}
}

func (e *MQTTEmitter) setClient(c mqttClient) {
	e.mu.Lock()
	e.client = c
	e.mu.Unlock()
}

func (e *MQTTEmitter) current() mqttClient {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}

var _ port.EventSink = (*MQTTEmitter)(nil)
