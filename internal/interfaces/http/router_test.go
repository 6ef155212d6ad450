package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TrafficLaw-RAG/internal/interfaces/http/handlers"
	"github.com/turtacn/TrafficLaw-RAG/internal/interfaces/http/middleware"
	"github.com/turtacn/TrafficLaw-RAG/internal/testutil"
)

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewRouter_NilHandlers_NoPanic(t *testing.T) {
	r := NewRouter(RouterConfig{})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/drafts", "{}").Code)
}

func TestNewRouter_HealthEndpoints(t *testing.T) {
	down := handlers.CheckFunc("neo4j", func(context.Context) error { return errors.New("refused") })
	r := NewRouter(RouterConfig{HealthHandler: handlers.NewHealthHandler("test", nil, down)})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "").Code)

	w := do(r, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "refused")
}

func TestNewRouter_ValidateRoute(t *testing.T) {
	logger := testutil.NewMockLogger()
	r := NewRouter(RouterConfig{
		ValidateHandler: handlers.NewValidateHandler(
			document.NewIndictmentParser(3), document.NewUserInputParser(10), nil, 0),
		Logger:  logger,
		Logging: middleware.DefaultLoggingConfig(),
	})

	w := do(r, http.MethodPost, "/api/v1/validate", `{"kind":"user_input","texts":["一、A 二、B 三、C"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":1`)

	msg, ok := logger.Find("info", "HTTP request completed")
	require.True(t, ok)
	route, _ := msg.Field("route")
	assert.Equal(t, "/api/v1/validate", route)

	assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodGet, "/api/v1/validate", "").Code)
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "tlrag"}, logging.NewNopLogger())
	require.NoError(t, err)
	metrics := prometheus.NewAppMetrics(collector)

	r := NewRouter(RouterConfig{
		ValidateHandler:  handlers.NewValidateHandler(document.NewIndictmentParser(3), document.NewUserInputParser(10), nil, 0),
		Logger:           logging.NewNopLogger(),
		Metrics:          metrics,
		MetricsCollector: collector,
		MetricsPath:      "/metrics",
	})
	do(r, http.MethodPost, "/api/v1/validate", `{"kind":"indictment","texts":[""]}`)

	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tlrag_")
	assert.Contains(t, w.Body.String(), `route="/api/v1/validate"`)
}
