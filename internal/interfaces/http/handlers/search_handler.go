package handlers

import (
	"context"
	"net/http"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/retrieval"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
)

// Retriever is the retrieval application service.
type Retriever interface {
	Search(ctx context.Context, req retrieval.Request) ([]chunk.SearchHit, error)
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// SearchRequest is the body of the search and retrieve endpoints.
type SearchRequest struct {
	Query           string `json:"query"`
	SearchType      string `json:"search_type,omitempty"`
	TopK            int    `json:"top_k,omitempty"`
	LawThreshold    int    `json:"law_threshold,omitempty"`
	CaseType        string `json:"case_type,omitempty"`
	ReferenceCaseID *int64 `json:"reference_case_id,omitempty"`
}

func (s SearchRequest) toRetrieval() retrieval.Request {
	return retrieval.Request{
		Query:           s.Query,
		SearchType:      chunk.Type(s.SearchType),
		TopK:            s.TopK,
		LawThreshold:    s.LawThreshold,
		CaseType:        s.CaseType,
		ReferenceCaseID: s.ReferenceCaseID,
	}
}

// SearchHandler exposes similar-case search.
type SearchHandler struct {
	svc     Retriever
	logger  logging.Logger
	maxBody int64
}

func NewSearchHandler(svc Retriever, logger logging.Logger, maxBody int64) *SearchHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SearchHandler{svc: svc, logger: logger, maxBody: maxBody}
}

// Search handles POST /api/v1/search and returns the raw neighbours.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	hits, err := h.svc.Search(r.Context(), req.toRetrieval())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if hits == nil {
		hits = []chunk.SearchHit{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"hits": hits})
}

// Retrieve handles POST /api/v1/retrieve: neighbours plus the laws,
// amounts and reference case the drafting stages would use.
func (h *SearchHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	res, err := h.svc.Retrieve(r.Context(), req.toRetrieval())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
