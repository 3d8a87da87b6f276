package sink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	pmqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/ghalamif/EdgeTap/internal/ports"
)

const defaultPublishTimeout = 2 * time.Second

// MQTTSink publishes every forwarded record as its own JSON message.
type MQTTSink struct {
	client  pmqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	logger  zerolog.Logger
}

// NewMQTTSink connects to broker and returns a sink publishing on topic.
func NewMQTTSink(broker, topic string, qos byte, clientID string, logger zerolog.Logger) (*MQTTSink, error) {
	l := logger.With().Str("component", "mqtt").Logger()
	opts := pmqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("edgetap-" + clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetConnectionLostHandler(func(_ pmqtt.Client, err error) {
			l.Warn().Err(err).Msg("connection lost")
		}).
		SetOnConnectHandler(func(pmqtt.Client) {
			l.Info().Str("broker", broker).Msg("connected to mqtt broker")
		})

	client := pmqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return newMQTTSink(client, topic, qos, l), nil
}

func newMQTTSink(client pmqtt.Client, topic string, qos byte, logger zerolog.Logger) *MQTTSink {
	if qos > 2 {
		qos = 1
	}
	return &MQTTSink{
		client:  client,
		topic:   topic,
		qos:     qos,
		timeout: defaultPublishTimeout,
		logger:  logger,
	}
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) WriteBatch(ctx context.Context, batch []ports.QueuedRecord) error {
	var errs []error
	for _, item := range batch {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		b, err := item.Record.Encode()
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal record %d: %w", item.Seq, err))
			continue
		}
		token := m.client.Publish(m.topic, m.qos, false, b)
		if !token.WaitTimeout(m.timeout) {
			errs = append(errs, fmt.Errorf("publish record %d: timeout after %s", item.Seq, m.timeout))
			continue
		}
		if err := token.Error(); err != nil {
			errs = append(errs, fmt.Errorf("publish record %d: %w", item.Seq, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	m.logger.Info().Msg("disconnected from mqtt broker")
	return nil
}

var _ ports.Sink = (*MQTTSink)(nil)
