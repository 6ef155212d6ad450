// Package http exposes drafting, ingestion, search and validation over a
// chi REST API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TrafficLaw-RAG/internal/interfaces/http/handlers"
	"github.com/turtacn/TrafficLaw-RAG/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers leave their routes unmounted.
type RouterConfig struct {
	DraftHandler    *handlers.DraftHandler
	IngestHandler   *handlers.IngestHandler
	SearchHandler   *handlers.SearchHandler
	ValidateHandler *handlers.ValidateHandler
	HealthHandler   *handlers.HealthHandler

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
	Logging          middleware.LoggingConfig

	// MaxConcurrentDrafts bounds in-flight drafting requests. Zero means
	// unbounded.
	MaxConcurrentDrafts int
}

// NewRouter constructs the complete HTTP route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.Metrics, cfg.Logging))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerDraftRoutes(api, cfg.DraftHandler, cfg.MaxConcurrentDrafts)
		registerIngestRoutes(api, cfg.IngestHandler)
		if h := cfg.SearchHandler; h != nil {
			api.Post("/search", h.Search)
			api.Post("/retrieve", h.Retrieve)
		}
		if h := cfg.ValidateHandler; h != nil {
			api.Post("/validate", h.Validate)
		}
	})

	return r
}

// draftBacklogWait is how long a queued drafting request waits for a slot.
const draftBacklogWait = 5 * time.Minute

func registerDraftRoutes(r chi.Router, h *handlers.DraftHandler, slots int) {
	if h == nil {
		return
	}
	r.Route("/drafts", func(dr chi.Router) {
		create := dr
		if slots > 0 {
			create = dr.With(chimw.ThrottleBacklog(slots, slots*4, draftBacklogWait))
		}
		create.Post("/", h.Create)
		dr.Get("/runs", h.ListRuns)
		dr.Get("/runs/{runID}", h.GetRun)
	})
}

func registerIngestRoutes(r chi.Router, h *handlers.IngestHandler) {
	if h == nil {
		return
	}
	r.Route("/ingest", func(ir chi.Router) {
		ir.Post("/lawyer-inputs", h.LawyerInput)
		ir.Post("/indictments", h.Indictment)
		ir.Post("/indictments/batch", h.IndictmentBatch)
		ir.Post("/laws", h.Laws)
	})
}
