package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Event types carried in EventEnvelope.EventType.
const (
	EventIngestRequested = "case.ingest.requested"
	EventCaseIngested    = "case.ingested"
	EventCaseFailed      = "case.ingest.failed"
)

const schemaVersion = "1"

// EventEnvelope standardizes every message on the ingestion topics.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// IngestKind selects the ingestion pipeline for a request.
type IngestKind string

const (
	KindLawyerInput IngestKind = "lawyer_input"
	KindIndictment  IngestKind = "indictment"
	KindLaws        IngestKind = "laws"
)

// IngestRequestedPayload asks a worker to ingest one document.
type IngestRequestedPayload struct {
	RequestID string     `json:"request_id"`
	Kind      IngestKind `json:"kind"`
	Text      string     `json:"text"`
	// UsedLaws is the comma separated citation list of an indictment.
	UsedLaws string `json:"used_laws,omitempty"`
}

// CaseResultPayload reports the outcome of an ingest request.
type CaseResultPayload struct {
	RequestID string     `json:"request_id"`
	Kind      IngestKind `json:"kind"`
	CaseID    int64      `json:"case_id"`
	Chunks    int        `json:"chunks"`
	Laws      int        `json:"laws,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// NewEnvelope wraps payload with a fresh event id.
func NewEnvelope(eventType, source string, payload any) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// DecodeEnvelope parses a message value.
func DecodeEnvelope(value []byte) (*EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event envelope")
	}
	if env.EventType == "" {
		return nil, errors.New(errors.ErrCodeValidation, "event envelope has no event_type")
	}
	return &env, nil
}

// DecodePayload unmarshals the envelope payload into dest.
func (e *EventEnvelope) DecodePayload(dest any) error {
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return errors.Wrapf(err, errors.ErrCodeSerialization, "failed to decode %s payload", e.EventType)
	}
	return nil
}
