package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric the service emits. All recording methods are
// safe on a nil receiver so components built without metrics need no guards.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	LLMRequestsTotal   CounterVec
	LLMRequestDuration HistogramVec
	EmbeddingsTotal    CounterVec

	CasesIngestedTotal CounterVec
	ChunksTotal        CounterVec
	ClassifierFallback CounterVec

	StageAttemptsTotal CounterVec
	StageOutcomesTotal CounterVec
	DraftsTotal        CounterVec
	DraftDuration      HistogramVec

	StoreOpDuration  HistogramVec
	StoreErrorsTotal CounterVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	MessagesProcessedTotal CounterVec
	HealthCheckStatus      GaugeVec
}

var (
	HTTPDurationBuckets  = []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120, 600}
	LLMDurationBuckets   = []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300}
	DraftDurationBuckets = []float64{10, 30, 60, 120, 300, 600, 1200}
	StoreDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:   c.RegisterCounter("http_requests_total", "HTTP requests by route and status.", "method", "route", "status"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds", "HTTP request latency.", HTTPDurationBuckets, "method", "route"),

		LLMRequestsTotal:   c.RegisterCounter("llm_requests_total", "Text generation calls.", "model", "operation", "status"),
		LLMRequestDuration: c.RegisterHistogram("llm_request_duration_seconds", "Text generation latency.", LLMDurationBuckets, "model", "operation"),
		EmbeddingsTotal:    c.RegisterCounter("embeddings_total", "Sentence embeddings produced.", "source"),

		CasesIngestedTotal: c.RegisterCounter("cases_ingested_total", "Cases ingested into the stores.", "source", "status"),
		ChunksTotal:        c.RegisterCounter("chunks_total", "Chunks persisted by text type.", "text_type"),
		ClassifierFallback: c.RegisterCounter("classifier_fallback_total", "Chunk classifications that fell back to the default category.", "reason"),

		StageAttemptsTotal: c.RegisterCounter("generation_stage_attempts_total", "Drafting stage attempts by verdict.", "stage", "verdict"),
		StageOutcomesTotal: c.RegisterCounter("generation_stage_outcomes_total", "Drafting stage final outcomes.", "stage", "outcome"),
		DraftsTotal:        c.RegisterCounter("drafts_total", "Draft runs by final status.", "status"),
		DraftDuration:      c.RegisterHistogram("draft_duration_seconds", "End-to-end draft run latency.", DraftDurationBuckets),

		StoreOpDuration:  c.RegisterHistogram("store_operation_duration_seconds", "Backing store operation latency.", StoreDurationBuckets, "store", "operation"),
		StoreErrorsTotal: c.RegisterCounter("store_errors_total", "Backing store operation failures.", "store", "operation"),
		CacheHitsTotal:   c.RegisterCounter("cache_hits_total", "Cache hits.", "cache"),
		CacheMissesTotal: c.RegisterCounter("cache_misses_total", "Cache misses.", "cache"),

		MessagesProcessedTotal: c.RegisterCounter("messages_processed_total", "Broker messages handled.", "topic", "status"),
		HealthCheckStatus:      c.RegisterGauge("health_check_status", "Dependency health (1 up, 0 down).", "component"),
	}
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *AppMetrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *AppMetrics) RecordLLMCall(model, operation string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(model, operation, statusLabel(ok)).Inc()
	m.LLMRequestDuration.WithLabelValues(model, operation).Observe(d.Seconds())
}

// RecordEmbeddings counts n vectors obtained from source ("cache" or "remote").
func (m *AppMetrics) RecordEmbeddings(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EmbeddingsTotal.WithLabelValues(source).Add(float64(n))
}

func (m *AppMetrics) RecordCaseIngested(source string, ok bool) {
	if m == nil {
		return
	}
	m.CasesIngestedTotal.WithLabelValues(source, statusLabel(ok)).Inc()
}

func (m *AppMetrics) RecordChunk(textType string) {
	if m == nil {
		return
	}
	m.ChunksTotal.WithLabelValues(textType).Inc()
}

func (m *AppMetrics) RecordClassifierFallback(reason string) {
	if m == nil {
		return
	}
	m.ClassifierFallback.WithLabelValues(reason).Inc()
}

// RecordStageAttempt counts one attempt; verdict is pass, fail or error.
func (m *AppMetrics) RecordStageAttempt(stage, verdict string) {
	if m == nil {
		return
	}
	m.StageAttemptsTotal.WithLabelValues(stage, verdict).Inc()
}

// RecordStageOutcome counts a stage exit; outcome is passed or exhausted.
func (m *AppMetrics) RecordStageOutcome(stage, outcome string) {
	if m == nil {
		return
	}
	m.StageOutcomesTotal.WithLabelValues(stage, outcome).Inc()
}

func (m *AppMetrics) RecordDraft(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.DraftsTotal.WithLabelValues(status).Inc()
	m.DraftDuration.WithLabelValues().Observe(d.Seconds())
}

func (m *AppMetrics) RecordStoreOp(store, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(store, operation).Observe(d.Seconds())
	if err != nil {
		m.StoreErrorsTotal.WithLabelValues(store, operation).Inc()
	}
}

func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

func (m *AppMetrics) RecordMessage(topic string, ok bool) {
	if m == nil {
		return
	}
	m.MessagesProcessedTotal.WithLabelValues(topic, statusLabel(ok)).Inc()
}

func (m *AppMetrics) SetHealth(component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}
