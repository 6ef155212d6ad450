package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/drafting"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/draft"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// RunIDHeader carries the run id of a drafting request, also on failure.
const RunIDHeader = "X-Draft-Run-ID"

// Drafter is the drafting application service.
type Drafter interface {
	Draft(ctx context.Context, req drafting.Request) (*drafting.Result, error)
	Run(ctx context.Context, id string) (*draft.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]*draft.Run, error)
}

// DraftRequest is the body of POST /api/v1/drafts.
type DraftRequest struct {
	Query            string `json:"query"`
	SearchType       string `json:"search_type,omitempty"`
	TopK             int    `json:"top_k,omitempty"`
	LawThreshold     int    `json:"law_threshold,omitempty"`
	ReferenceCaseID  *int64 `json:"reference_case_id,omitempty"`
	FilterByCaseType bool   `json:"filter_by_case_type,omitempty"`
}

// DraftFailure is the body of an aborted drafting run. Draft holds the
// sections produced before the failing stage.
type DraftFailure struct {
	ErrorResponse
	RunID string          `json:"run_id"`
	Draft *drafting.Draft `json:"draft,omitempty"`
}

// DraftHandler serves indictment drafting and run history.
type DraftHandler struct {
	svc     Drafter
	logger  logging.Logger
	maxBody int64
}

func NewDraftHandler(svc Drafter, logger logging.Logger, maxBody int64) *DraftHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DraftHandler{svc: svc, logger: logger, maxBody: maxBody}
}

// Create handles POST /api/v1/drafts.
func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeBadRequest, "query is required")
		return
	}
	if req.TopK < 0 || req.LawThreshold < 0 {
		writeError(w, http.StatusBadRequest, errors.ErrCodeBadRequest, "top_k and law_threshold must not be negative")
		return
	}

	res, err := h.svc.Draft(r.Context(), drafting.Request{
		Query:            req.Query,
		SearchType:       req.SearchType,
		TopK:             req.TopK,
		LawThreshold:     req.LawThreshold,
		ReferenceCaseID:  req.ReferenceCaseID,
		FilterByCaseType: req.FilterByCaseType,
	})
	if res != nil {
		w.Header().Set(RunIDHeader, res.RunID)
	}
	if err != nil {
		if res != nil && res.Draft != nil && errors.GetCode(err) == errors.ErrCodeGenerationAborted {
			h.writeAborted(w, res, err)
			return
		}
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *DraftHandler) writeAborted(w http.ResponseWriter, res *drafting.Result, err error) {
	code := errors.ErrCodeGenerationAborted
	h.logger.Error("Request failed", logging.String("code", string(code)), logging.RunID(res.RunID), logging.Err(err))
	writeJSON(w, errors.HTTPStatusForCode(code), DraftFailure{
		ErrorResponse: ErrorResponse{Code: string(code), Message: errors.DefaultMessageForCode(code)},
		RunID:         res.RunID,
		Draft:         res.Draft,
	})
}

// GetRun handles GET /api/v1/drafts/runs/{runID}.
func (h *DraftHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/v1/drafts/runs?limit=N.
func (h *DraftHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.svc.RecentRuns(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if runs == nil {
		runs = []*draft.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}
