package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tracknav/track-viewer/pkg/mqtt"
)

// MQTTLiveService is an alternative live-update source that subscribes to
// the tracking broker directly instead of going through the recorder's
// websocket endpoint. Devices publish to the same topics the recorder
// consumes, so every location publish reaches the viewer with no recorder
// round trip. The handler contract matches LiveService: sequential
// invocations, one per location payload.
type MQTTLiveService struct {
	topic      string
	qos        int
	mqttClient mqtt.MQTTClient
	handler    LocationHandler
	logger     zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
}

// NewMQTTLiveService initializes a new MQTTLiveService.
func NewMQTTLiveService(topic string, qos int, mqttClient mqtt.MQTTClient,
	handler LocationHandler, logger zerolog.Logger) *MQTTLiveService {
	return &MQTTLiveService{
		topic:      topic,
		qos:        qos,
		mqttClient: mqttClient,
		handler:    handler,
		logger:     logger,
	}
}

// Start subscribes to the configured topic.
func (m *MQTTLiveService) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Warn().Msg("MQTTLiveService is already running")
		return errors.New("mqtt live service is already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	token := m.mqttClient.Subscribe(m.topic, byte(m.qos), m.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		m.cancel()
		m.ctx = nil
		m.cancel = nil
		return err
	}

	m.running = true
	m.logger.Info().Str("topic", m.topic).Msg("MQTTLiveService started successfully")
	return nil
}

// Stop unsubscribes from the topic.
func (m *MQTTLiveService) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		m.logger.Warn().Msg("MQTTLiveService is not running")
		return errors.New("mqtt live service is not running")
	}

	m.cancel()
	token := m.mqttClient.Unsubscribe(m.topic)
	token.Wait()

	m.running = false
	m.ctx = nil
	m.cancel = nil

	m.logger.Info().Msg("MQTTLiveService stopped successfully")
	if err := token.Error(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to unsubscribe cleanly")
		return err
	}
	return nil
}

// onMessage classifies one broker publish, mirroring the websocket
// channel: only payloads with a "location" discriminator reach the
// handler, malformed payloads are logged and dropped.
func (m *MQTTLiveService) onMessage(_ pahomqtt.Client, message pahomqtt.Message) {
	payload := message.Payload()
	if len(payload) == 0 {
		m.logger.Debug().Str("topic", message.Topic()).Msg("Ping")
		return
	}

	var msg struct {
		Type string `json:"_type"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		m.logger.Error().Err(err).Str("topic", message.Topic()).Msg("Malformed broker message")
		return
	}

	if msg.Type != "location" {
		return
	}

	m.logger.Debug().Str("topic", message.Topic()).Msg("Location update received")
	if m.handler == nil {
		return
	}
	if err := m.handler(m.ctx); err != nil {
		m.logger.Error().Err(err).Msg("Location handler failed")
	}
}
