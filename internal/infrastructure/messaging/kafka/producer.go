package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeMessageBrokerError, "producer closed")

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event envelopes.
type Producer struct {
	writer  WriterInterface
	source  string
	logger  logging.Logger
	metrics *prometheus.AppMetrics
	closed  atomic.Bool
}

// NewProducer builds a producer writing to the configured brokers. The
// topic is chosen per message.
func NewProducer(cfg config.KafkaConfig, source string, logger logging.Logger, metrics *prometheus.AppMetrics) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  4,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{DialTimeout: 10 * time.Second},
	}
	return newProducer(writer, source, logger, metrics), nil
}

func newProducer(w WriterInterface, source string, logger logging.Logger, metrics *prometheus.AppMetrics) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Producer{writer: w, source: source, logger: logger, metrics: metrics}
}

// Publish wraps payload in an envelope and writes it to topic. key drives
// partitioning so events about one case stay ordered.
func (p *Producer) Publish(ctx context.Context, topic, key, eventType string, payload any) (*EventEnvelope, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	if topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "topic required")
	}

	env, err := NewEnvelope(eventType, p.source, payload)
	if err != nil {
		return nil, err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event envelope")
	}
	if key == "" {
		key = env.EventID
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  env.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	p.metrics.RecordMessage(topic, err == nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeMessageBrokerError, "failed to publish %s", eventType)
	}

	p.logger.Debug("Message published",
		logging.String("topic", topic),
		logging.String("event_type", eventType),
		logging.String("event_id", env.EventID))
	return env, nil
}

func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed")
	return err
}
