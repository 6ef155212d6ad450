package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one decoded envelope. Returning an error triggers the
// retry policy; errors.IsFormat errors are not retried.
type Handler func(ctx context.Context, env *EventEnvelope) error

// RetryPolicy bounds handler retries per message.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Backoff: time.Second, MaxBackoff: 30 * time.Second}
}

// Consumer reads one topic in a consumer group and commits each message
// after its handler finishes, successfully or not.
type Consumer struct {
	reader  ReaderInterface
	topic   string
	retry   RetryPolicy
	logger  logging.Logger
	metrics *prometheus.AppMetrics
	running atomic.Bool
}

func NewConsumer(cfg config.KafkaConfig, logger logging.Logger, metrics *prometheus.AppMetrics) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.GroupID == "" || cfg.IngestTopic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers, group_id and ingest_topic are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.IngestTopic,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		SessionTimeout: 30 * time.Second,
		Dialer:         &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true},
	})
	return newConsumer(reader, cfg.IngestTopic, DefaultRetryPolicy(), logger, metrics), nil
}

func newConsumer(r ReaderInterface, topic string, retry RetryPolicy, logger logging.Logger, metrics *prometheus.AppMetrics) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Consumer{reader: r, topic: topic, retry: retry, logger: logger, metrics: metrics}
}

// Run blocks, dispatching messages to handler until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	c.logger.Info("Kafka consumer started", logging.String("topic", c.topic))
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("FetchMessage failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		ok := c.process(ctx, m, handler)
		c.metrics.RecordMessage(m.Topic, ok)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("CommitMessages failed", logging.Err(err), logging.Int64("offset", m.Offset))
		}
	}
}

func (c *Consumer) process(ctx context.Context, m kafka.Message, handler Handler) bool {
	log := c.logger.With(logging.String("topic", m.Topic), logging.Int64("offset", m.Offset))

	env, err := DecodeEnvelope(m.Value)
	if err != nil {
		log.Error("Dropping undecodable message", logging.Err(err))
		return false
	}

	backoff := c.retry.Backoff
	for attempt := 0; ; attempt++ {
		err = handler(ctx, env)
		if err == nil {
			return true
		}
		if errors.IsFormat(err) || attempt >= c.retry.MaxRetries || ctx.Err() != nil {
			break
		}
		log.Warn("Handler failed, retrying", logging.Err(err), logging.Int("attempt", attempt+1))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if c.retry.MaxBackoff > 0 && backoff > c.retry.MaxBackoff {
			backoff = c.retry.MaxBackoff
		}
	}

	log.Error("Message processing failed",
		logging.String("event_id", env.EventID),
		logging.String("event_type", env.EventType),
		logging.Err(err))
	return false
}

func (c *Consumer) Close() error {
	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed", logging.String("topic", c.topic))
	return err
}
