// Package handlers implements the REST endpoints of the drafting API.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// DefaultMaxBodySize caps request bodies when no limit is configured.
const DefaultMaxBodySize int64 = 4 << 20

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Format  *FormatDetail `json:"format,omitempty"`
}

// FormatDetail locates a document structure violation.
type FormatDetail struct {
	Marker    string             `json:"marker,omitempty"`
	Violation document.Violation `json:"violation"`
	Position  int                `json:"position"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, statusCode int, code errors.ErrorCode, msg string) {
	writeJSON(w, statusCode, ErrorResponse{Code: string(code), Message: msg})
}

// writeAppError maps an application error onto its HTTP status. Server
// side failures are logged and masked.
func writeAppError(w http.ResponseWriter, logger logging.Logger, err error) {
	var fe *document.FormatError
	if stderrors.As(err, &fe) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Code:    string(fe.Code()),
			Message: fe.Message,
			Format:  &FormatDetail{Marker: fe.Marker, Violation: fe.Violation, Position: fe.Position},
		})
		return
	}

	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", logging.String("code", string(code)), logging.Err(err))
		writeError(w, status, code, errors.DefaultMessageForCode(code))
		return
	}
	writeError(w, status, code, err.Error())
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) error {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errors.New(errors.ErrCodeBadRequest, "request body is empty")
		}
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.Newf(errors.ErrCodeBadRequest, "request body exceeds %d bytes", limit)
		}
		return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid JSON body")
	}
	return nil
}

// queryInt reads a positive integer query parameter, or def.
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
