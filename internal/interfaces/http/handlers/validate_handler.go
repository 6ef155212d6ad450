package handlers

import (
	"net/http"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// ValidateRequest is the body of POST /api/v1/validate.
type ValidateRequest struct {
	Kind  string   `json:"kind"` // indictment | user_input
	Texts []string `json:"texts"`
}

// ValidateResponse lists one report per text.
type ValidateResponse struct {
	Valid   int               `json:"valid"`
	Invalid int               `json:"invalid"`
	Reports []document.Report `json:"reports"`
}

// ValidateHandler checks document structure without storing anything.
type ValidateHandler struct {
	parsers map[string]*document.Parser
	logger  logging.Logger
	maxBody int64
}

func NewValidateHandler(indictment, userInput *document.Parser, logger logging.Logger, maxBody int64) *ValidateHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ValidateHandler{
		parsers: map[string]*document.Parser{"indictment": indictment, "user_input": userInput},
		logger:  logger,
		maxBody: maxBody,
	}
}

// Validate handles POST /api/v1/validate. Report line numbers are the
// 1-based positions in texts.
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	p, ok := h.parsers[req.Kind]
	if !ok || p == nil {
		writeError(w, http.StatusBadRequest, errors.ErrCodeBadRequest, "kind must be indictment or user_input")
		return
	}

	resp := ValidateResponse{Reports: make([]document.Report, len(req.Texts))}
	for i, text := range req.Texts {
		resp.Reports[i] = p.Check(i+1, text)
	}
	resp.Valid, resp.Invalid = document.Summarize(resp.Reports)
	writeJSON(w, http.StatusOK, resp)
}
