package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/ingestion"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Ingester is the ingestion application service.
type Ingester interface {
	IngestLawyerInput(ctx context.Context, text string) (*ingestion.LawyerInputResult, error)
	IngestIndictment(ctx context.Context, req ingestion.IndictmentRequest) (*ingestion.IndictmentResult, error)
	IngestIndictments(ctx context.Context, reqs []ingestion.IndictmentRequest) ([]ingestion.BatchItem, error)
	IngestLaws(ctx context.Context, corpus string) (int, error)
}

// Publisher queues ingest requests for the worker.
type Publisher interface {
	Publish(ctx context.Context, topic, key, eventType string, payload any) (*kafka.EventEnvelope, error)
}

// TextRequest is the body of lawyer-input ingestion.
type TextRequest struct {
	Text string `json:"text"`
}

// BatchIndictmentRequest is the body of batch indictment ingestion.
type BatchIndictmentRequest struct {
	Items []ingestion.IndictmentRequest `json:"items"`
}

// LawCorpusRequest is the body of statute corpus ingestion.
type LawCorpusRequest struct {
	Corpus string `json:"corpus"`
}

// AcceptedResponse acknowledges a queued ingest request.
type AcceptedResponse struct {
	RequestID string `json:"request_id"`
	EventID   string `json:"event_id"`
}

// IngestHandler loads cases and laws. With a publisher configured, requests
// carrying ?async=true are queued instead of processed inline.
type IngestHandler struct {
	svc       Ingester
	publisher Publisher
	topic     string
	logger    logging.Logger
	maxBody   int64
}

// NewIngestHandler builds the handler. publisher may be nil.
func NewIngestHandler(svc Ingester, publisher Publisher, topic string, logger logging.Logger, maxBody int64) *IngestHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &IngestHandler{svc: svc, publisher: publisher, topic: topic, logger: logger, maxBody: maxBody}
}

func (h *IngestHandler) async(r *http.Request) bool {
	return h.publisher != nil && r.URL.Query().Get("async") == "true"
}

func (h *IngestHandler) enqueue(w http.ResponseWriter, r *http.Request, payload kafka.IngestRequestedPayload) {
	payload.RequestID = uuid.NewString()
	env, err := h.publisher.Publish(r.Context(), h.topic, payload.RequestID, kafka.EventIngestRequested, payload)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	h.logger.Info("Ingest request queued",
		logging.String("request_id", payload.RequestID),
		logging.String("kind", string(payload.Kind)))
	writeJSON(w, http.StatusAccepted, AcceptedResponse{RequestID: payload.RequestID, EventID: env.EventID})
}

// LawyerInput handles POST /api/v1/ingest/lawyer-inputs.
func (h *IngestHandler) LawyerInput(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeBadRequest, "text is required")
		return
	}
	if h.async(r) {
		h.enqueue(w, r, kafka.IngestRequestedPayload{Kind: kafka.KindLawyerInput, Text: req.Text})
		return
	}

	res, err := h.svc.IngestLawyerInput(r.Context(), req.Text)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Indictment handles POST /api/v1/ingest/indictments.
func (h *IngestHandler) Indictment(w http.ResponseWriter, r *http.Request) {
	var req ingestion.IndictmentRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if h.async(r) {
		h.enqueue(w, r, kafka.IngestRequestedPayload{Kind: kafka.KindIndictment, Text: req.Text, UsedLaws: req.UsedLaws})
		return
	}

	res, err := h.svc.IngestIndictment(r.Context(), req)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// IndictmentBatch handles POST /api/v1/ingest/indictments/batch. Malformed
// items are reported per item; the response is 200 unless a store fails.
func (h *IngestHandler) IndictmentBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchIndictmentRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, errors.ErrCodeBadRequest, "items must not be empty")
		return
	}

	items, err := h.svc.IngestIndictments(r.Context(), req.Items)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// Laws handles POST /api/v1/ingest/laws.
func (h *IngestHandler) Laws(w http.ResponseWriter, r *http.Request) {
	var req LawCorpusRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Corpus) == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeBadRequest, "corpus is required")
		return
	}
	if h.async(r) {
		h.enqueue(w, r, kafka.IngestRequestedPayload{Kind: kafka.KindLaws, Text: req.Corpus})
		return
	}

	n, err := h.svc.IngestLaws(r.Context(), req.Corpus)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"laws": n})
}
