// Package llm talks to an OpenAI-compatible endpoint (Ollama's /v1 in the
// default deployment) for text generation and sentence embeddings.
package llm

import (
	"context"
	"errors"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Failure describes why a call produced no usable payload.
type Failure struct {
	Code       pkgerrors.ErrorCode
	StatusCode int
	Message    string
	Retryable  bool
	cause      error
}

// Result is the typed outcome of one generation call: exactly one of Text
// or Failure is meaningful.
type Result struct {
	Text         string
	FinishReason string
	Attempts     int
	Failure      *Failure
}

// OK reports whether the call produced text.
func (r Result) OK() bool { return r.Failure == nil }

// Err converts a failed result into an ExternalServiceError.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	f := r.Failure
	if f.cause != nil {
		return pkgerrors.Wrapf(f.cause, f.Code, "llm call failed after %d attempt(s): %s", r.Attempts, f.Message)
	}
	return pkgerrors.Newf(f.Code, "llm call failed after %d attempt(s): %s", r.Attempts, f.Message)
}

// classify maps a transport or API error to a Failure. Rate limiting,
// server errors, timeouts and network errors are retryable.
func classify(err error, code pkgerrors.ErrorCode) *Failure {
	f := &Failure{Code: code, Message: err.Error(), cause: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		f.StatusCode = apiErr.HTTPStatusCode
		f.Message = apiErr.Message
	case errors.As(err, &reqErr):
		f.StatusCode = reqErr.HTTPStatusCode
	case errors.Is(err, context.Canceled):
		return f
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		f.Retryable = true
		return f
	}

	switch {
	case f.StatusCode == http.StatusTooManyRequests, f.StatusCode >= 500:
		f.Retryable = true
	case f.StatusCode == 0:
		f.Retryable = true
	}
	return f
}

func emptyFailure(code pkgerrors.ErrorCode, msg string) *Failure {
	return &Failure{Code: code, Message: msg, Retryable: true}
}
