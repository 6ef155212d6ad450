// Package consumer runs queued ingest requests taken from Kafka and reports
// each outcome on the events topic.
package consumer

import (
	"context"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/ingestion"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Ingester is the ingestion service.
type Ingester interface {
	IngestLawyerInput(ctx context.Context, text string) (*ingestion.LawyerInputResult, error)
	IngestIndictment(ctx context.Context, req ingestion.IndictmentRequest) (*ingestion.IndictmentResult, error)
	IngestLaws(ctx context.Context, corpus string) (int, error)
}

// Publisher emits result events.
type Publisher interface {
	Publish(ctx context.Context, topic, key, eventType string, payload any) (*kafka.EventEnvelope, error)
}

// IngestHandler executes EventIngestRequested messages.
//
// Requests that can never succeed (malformed documents, unknown kinds,
// undecodable payloads) produce an EventCaseFailed and are acknowledged.
// Store and model failures are returned so the consumer retries them.
type IngestHandler struct {
	ingester    Ingester
	publisher   Publisher
	eventsTopic string
	logger      logging.Logger
}

// NewIngestHandler builds the handler. publisher may be nil, in which case
// outcomes are only logged.
func NewIngestHandler(ingester Ingester, publisher Publisher, eventsTopic string, logger logging.Logger) *IngestHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &IngestHandler{
		ingester:    ingester,
		publisher:   publisher,
		eventsTopic: eventsTopic,
		logger:      logger.Named("ingest-consumer"),
	}
}

// Handle matches kafka.Handler.
func (h *IngestHandler) Handle(ctx context.Context, env *kafka.EventEnvelope) error {
	if env.EventType != kafka.EventIngestRequested {
		h.logger.Debug("Ignoring event", logging.String("event_type", env.EventType))
		return nil
	}

	var req kafka.IngestRequestedPayload
	if err := env.DecodePayload(&req); err != nil {
		h.fail(ctx, kafka.CaseResultPayload{RequestID: env.EventID}, err)
		return nil
	}
	if req.RequestID == "" {
		req.RequestID = env.EventID
	}

	log := h.logger.With(logging.String("request_id", req.RequestID), logging.String("kind", string(req.Kind)))
	result, err := h.ingest(ctx, req)
	if err != nil {
		if !permanent(err) {
			return err
		}
		h.fail(ctx, result, err)
		return nil
	}

	log.Info("Ingest request completed", logging.CaseID(result.CaseID), logging.Int("laws", result.Laws))
	h.publish(ctx, kafka.EventCaseIngested, result)
	return nil
}

func (h *IngestHandler) ingest(ctx context.Context, req kafka.IngestRequestedPayload) (kafka.CaseResultPayload, error) {
	out := kafka.CaseResultPayload{RequestID: req.RequestID, Kind: req.Kind}

	switch req.Kind {
	case kafka.KindLawyerInput:
		res, err := h.ingester.IngestLawyerInput(ctx, req.Text)
		if err != nil {
			return out, err
		}
		out.CaseID, out.Chunks = res.CaseID, res.Chunks
	case kafka.KindIndictment:
		res, err := h.ingester.IngestIndictment(ctx, ingestion.IndictmentRequest{Text: req.Text, UsedLaws: req.UsedLaws})
		if err != nil {
			return out, err
		}
		out.CaseID, out.Laws = res.CaseID, len(res.LawNumbers)
	case kafka.KindLaws:
		n, err := h.ingester.IngestLaws(ctx, req.Text)
		if err != nil {
			return out, err
		}
		out.Laws = n
	default:
		return out, errors.Newf(errors.ErrCodeValidation, "unknown ingest kind %q", req.Kind)
	}
	return out, nil
}

// permanent reports whether retrying err is pointless. A lock conflict
// is a client-class code but clears on its own.
func permanent(err error) bool {
	if errors.IsFormat(err) {
		return true
	}
	if errors.IsCode(err, errors.ErrCodeLockNotAcquired) {
		return false
	}
	return errors.IsClientError(errors.GetCode(err))
}

func (h *IngestHandler) fail(ctx context.Context, result kafka.CaseResultPayload, err error) {
	result.Error = err.Error()
	h.logger.Warn("Ingest request rejected",
		logging.String("request_id", result.RequestID),
		logging.String("kind", string(result.Kind)),
		logging.Err(err))
	h.publish(ctx, kafka.EventCaseFailed, result)
}

// publish never fails the message: the ingestion already happened and a
// redelivery would store the case twice.
func (h *IngestHandler) publish(ctx context.Context, eventType string, result kafka.CaseResultPayload) {
	if h.publisher == nil || h.eventsTopic == "" {
		return
	}
	if _, err := h.publisher.Publish(ctx, h.eventsTopic, result.RequestID, eventType, result); err != nil {
		h.logger.Error("Publishing ingest result failed",
			logging.String("request_id", result.RequestID),
			logging.String("event_type", eventType),
			logging.Err(err))
	}
}
