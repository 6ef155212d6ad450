// Package client is the Go SDK of the TrafficLaw-RAG REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

const Version = "0.1.0"

// RunIDHeader carries the drafting run id, also on failed runs.
const RunIDHeader = "X-Draft-Run-ID"

// Logger defines the logging interface used by the Client
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client talks to one API server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	drafts     *DraftsClient
	draftsOnce sync.Once
	ingest     *IngestClient
	ingestOnce sync.Once
	cases      *CasesClient
	casesOnce  sync.Once
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int           `json:"status_code"`
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Format     *FormatDetail `json:"format,omitempty"`
	RequestID  string        `json:"request_id"`
	// RunID is set when a drafting run was started before the failure.
	RunID string `json:"run_id,omitempty"`
	// Draft holds the sections of an aborted run produced before it failed.
	Draft *Draft `json:"draft,omitempty"`
}

// FormatDetail locates a document structure violation.
type FormatDetail struct {
	Marker    string `json:"marker,omitempty"`
	Violation string `json:"violation"`
	Position  int    `json:"position"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tlrag: %s (HTTP %d): %s [request_id=%s]", e.Code, e.StatusCode, e.Message, e.RequestID)
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsFormat reports a rejected document layout; Format holds the details.
func (e *APIError) IsFormat() bool {
	return e.StatusCode == http.StatusUnprocessableEntity
}

func (e *APIError) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "baseURL is required")
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid baseURL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, errors.New(errors.ErrCodeValidation, "baseURL scheme must be http or https")
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Minute},
		userAgent:    fmt.Sprintf("tlrag-go-sdk/%s", Version),
		logger:       noopLogger{},
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Drafts returns the drafting sub-client.
func (c *Client) Drafts() *DraftsClient {
	c.draftsOnce.Do(func() {
		c.drafts = &DraftsClient{client: c}
	})
	return c.drafts
}

// Ingest returns the ingestion sub-client.
func (c *Client) Ingest() *IngestClient {
	c.ingestOnce.Do(func() {
		c.ingest = &IngestClient{client: c}
	})
	return c.ingest
}

// Cases returns the search and validation sub-client.
func (c *Client) Cases() *CasesClient {
	c.casesOnce.Do(func() {
		c.cases = &CasesClient{client: c}
	})
	return c.cases
}

// do performs a request. Throttled requests never reached a handler and are
// retried for every method; network and 5xx failures only for GET, since
// drafting and ingestion are not idempotent.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) (http.Header, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	fullURL := c.baseURL + path

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal request body")
		}
		payload = b
	}
	idempotent := method == http.MethodGet

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debugf("Retry attempt %d after %v", attempt, backoff)
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		requestID := uuid.New().String()
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Errorf("Request failed: %v", err)
			lastErr = err
			if idempotent && ctx.Err() == nil {
				continue
			}
			return nil, err
		}
		c.logger.Debugf("%s %s %d (%v)", method, path, resp.StatusCode, time.Since(start))

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return resp.Header, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 400 {
			apiErr := decodeAPIError(resp, respBody, requestID)
			lastErr = apiErr

			if resp.StatusCode == http.StatusTooManyRequests && attempt < c.retryMax {
				if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
					c.logger.Infof("Throttled, retrying after %d seconds", seconds)
					if err := sleep(ctx, time.Duration(seconds)*time.Second); err != nil {
						return resp.Header, err
					}
				}
				continue
			}
			if idempotent && apiErr.IsServerError() {
				continue
			}
			return resp.Header, apiErr
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return resp.Header, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal response")
			}
		}
		return resp.Header, nil
	}
	return nil, lastErr
}

func decodeAPIError(resp *http.Response, body []byte, requestID string) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  requestID,
		RunID:      resp.Header.Get(RunIDHeader),
	}
	if len(body) == 0 {
		return apiErr
	}
	var errResp struct {
		Code    string        `json:"code"`
		Message string        `json:"message"`
		Format  *FormatDetail `json:"format"`
		RunID   string        `json:"run_id"`
		Draft   *Draft        `json:"draft"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Message
		apiErr.Format = errResp.Format
		apiErr.Draft = errResp.Draft
		if apiErr.RunID == "" {
			apiErr.RunID = errResp.RunID
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	_, err := c.do(ctx, http.MethodGet, path, nil, result)
	return err
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	_, err := c.do(ctx, http.MethodPost, path, body, result)
	return err
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if backoff > c.retryWaitMax {
		backoff = c.retryWaitMax
	}
	if quarter := int64(backoff / 4); quarter > 0 {
		backoff += time.Duration(rand.Int63n(quarter))
	}
	return backoff
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
