package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

type mockKafkaWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   int
}

func (m *mockKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

// mockKafkaReader replays queued messages, then blocks until ctx ends.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	drained   chan struct{}
}

func newMockReader(msgs ...kafka.Message) *mockKafkaReader {
	return &mockKafkaReader{queue: msgs, drained: make(chan struct{})}
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	if len(m.queue) == 0 {
		select {
		case <-m.drained:
		default:
			close(m.drained)
		}
	}
	return nil
}

func (m *mockKafkaReader) Close() error { return nil }

func envelopeMessage(t *testing.T, offset int64, payload IngestRequestedPayload) kafka.Message {
	t.Helper()
	env, err := NewEnvelope(EventIngestRequested, "test", payload)
	require.NoError(t, err)
	value, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Topic: "ingest", Offset: offset, Value: value}
}

// runUntilDrained runs the consumer until every queued message is committed.
func runUntilDrained(t *testing.T, c *Consumer, r *mockKafkaReader, h Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, h) }()

	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventCaseIngested, "worker", CaseResultPayload{RequestID: "r1", Kind: KindIndictment, CaseID: 4, Chunks: 9})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "1", env.SchemaVersion)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	decoded, err := DecodeEnvelope(raw)
	require.NoError(t, err)

	var p CaseResultPayload
	require.NoError(t, decoded.DecodePayload(&p))
	assert.Equal(t, int64(4), p.CaseID)
	assert.Equal(t, KindIndictment, p.Kind)
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))

	_, err = DecodeEnvelope([]byte(`{"payload":{}}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestProducer_Publish(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, "apiserver", nil, nil)

	env, err := p.Publish(context.Background(), "ingest", "req-1", EventIngestRequested,
		IngestRequestedPayload{RequestID: "req-1", Kind: KindLawyerInput, Text: "一、事故"})
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "ingest", msg.Topic)
	assert.Equal(t, []byte("req-1"), msg.Key)
	assert.Equal(t, []byte(EventIngestRequested), msg.Headers[0].Value)

	decoded, err := DecodeEnvelope(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)
	assert.Equal(t, "apiserver", decoded.Source)
}

func TestProducer_DefaultsKeyToEventID(t *testing.T) {
	w := &mockKafkaWriter{}
	env, err := newProducer(w, "s", nil, nil).Publish(context.Background(), "t", "", EventCaseFailed, CaseResultPayload{})
	require.NoError(t, err)
	assert.Equal(t, []byte(env.EventID), w.messages[0].Key)
}

func TestProducer_Errors(t *testing.T) {
	w := &mockKafkaWriter{err: errors.New("broker down")}
	p := newProducer(w, "s", nil, nil)

	_, err := p.Publish(context.Background(), "t", "k", EventCaseIngested, CaseResultPayload{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMessageBrokerError))

	_, err = p.Publish(context.Background(), "", "k", EventCaseIngested, CaseResultPayload{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
	_, err = p.Publish(context.Background(), "t", "k", EventCaseIngested, CaseResultPayload{})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{}, "s", nil, nil)
	assert.Error(t, err)
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	r := newMockReader(
		envelopeMessage(t, 10, IngestRequestedPayload{RequestID: "a", Kind: KindIndictment}),
		envelopeMessage(t, 11, IngestRequestedPayload{RequestID: "b", Kind: KindLaws}),
	)
	c := newConsumer(r, "ingest", RetryPolicy{}, nil, nil)

	var seen []string
	runUntilDrained(t, c, r, func(_ context.Context, env *EventEnvelope) error {
		var p IngestRequestedPayload
		require.NoError(t, env.DecodePayload(&p))
		seen = append(seen, p.RequestID)
		return nil
	})

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, []int64{10, 11}, r.committed)
}

func TestConsumer_RetriesTransientFailures(t *testing.T) {
	r := newMockReader(envelopeMessage(t, 1, IngestRequestedPayload{RequestID: "a"}))
	c := newConsumer(r, "ingest", RetryPolicy{MaxRetries: 3, Backoff: time.Millisecond}, nil, nil)

	calls := 0
	runUntilDrained(t, c, r, func(context.Context, *EventEnvelope) error {
		calls++
		if calls < 3 {
			return pkgerrors.New(pkgerrors.ErrCodeLLMUnavailable, "busy")
		}
		return nil
	})
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int64{1}, r.committed)
}

func TestConsumer_FormatErrorsAreNotRetried(t *testing.T) {
	r := newMockReader(envelopeMessage(t, 1, IngestRequestedPayload{RequestID: "a"}))
	c := newConsumer(r, "ingest", RetryPolicy{MaxRetries: 5, Backoff: time.Millisecond}, nil, nil)

	calls := 0
	runUntilDrained(t, c, r, func(context.Context, *EventEnvelope) error {
		calls++
		return pkgerrors.New(pkgerrors.ErrCodeMarkerMissing, "missing 二、")
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int64{1}, r.committed)
}

func TestConsumer_SkipsUndecodableMessages(t *testing.T) {
	r := newMockReader(kafka.Message{Topic: "ingest", Offset: 3, Value: []byte("garbage")})
	c := newConsumer(r, "ingest", RetryPolicy{}, nil, nil)

	runUntilDrained(t, c, r, func(context.Context, *EventEnvelope) error {
		t.Error("handler must not be called")
		return nil
	})
	assert.Equal(t, []int64{3}, r.committed)
}

func TestConsumer_RunTwice(t *testing.T) {
	r := newMockReader()
	c := newConsumer(r, "ingest", RetryPolicy{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func(context.Context, *EventEnvelope) error { return nil }) }()

	require.Eventually(t, func() bool { return c.running.Load() }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Run(ctx, nil), ErrAlreadyRunning)
	cancel()
	require.NoError(t, <-done)
}
