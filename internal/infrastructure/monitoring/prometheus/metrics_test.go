package prometheus

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppMetrics_Recorders(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.RecordHTTPRequest(http.MethodPost, "/api/v1/drafts", 200, 50*time.Millisecond)
	m.RecordLLMCall("llama3", "generate", true, time.Second)
	m.RecordLLMCall("llama3", "generate", false, time.Second)
	m.RecordEmbeddings("cache", 4)
	m.RecordEmbeddings("remote", 0)
	m.RecordCaseIngested("cli", true)
	m.RecordChunk("fact")
	m.RecordClassifierFallback("no_keyword")
	m.RecordStageAttempt("facts", "fail")
	m.RecordStageOutcome("facts", "exhausted")
	m.RecordDraft("completed", 3*time.Minute)
	m.RecordStoreOp("neo4j", "create_case", time.Millisecond, errors.New("boom"))
	m.RecordCacheAccess("embedding", true)
	m.RecordCacheAccess("embedding", false)
	m.RecordMessage("tlrag.case.ingest", true)
	m.SetHealth("opensearch", true)

	out := scrapeMetrics(t, c)
	for _, want := range []string{
		`test_unit_http_requests_total{method="POST",route="/api/v1/drafts",status="200"} 1`,
		`test_unit_llm_requests_total{model="llama3",operation="generate",status="failure"} 1`,
		`test_unit_embeddings_total{source="cache"} 4`,
		`test_unit_cases_ingested_total{source="cli",status="success"} 1`,
		`test_unit_chunks_total{text_type="fact"} 1`,
		`test_unit_classifier_fallback_total{reason="no_keyword"} 1`,
		`test_unit_generation_stage_attempts_total{stage="facts",verdict="fail"} 1`,
		`test_unit_generation_stage_outcomes_total{outcome="exhausted",stage="facts"} 1`,
		`test_unit_drafts_total{status="completed"} 1`,
		`test_unit_store_errors_total{operation="create_case",store="neo4j"} 1`,
		`test_unit_cache_hits_total{cache="embedding"} 1`,
		`test_unit_cache_misses_total{cache="embedding"} 1`,
		`test_unit_messages_processed_total{status="success",topic="tlrag.case.ingest"} 1`,
		`test_unit_health_check_status{component="opensearch"} 1`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, `embeddings_total{source="remote"}`)
}

func TestAppMetrics_NilReceiver(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, 0)
		m.RecordLLMCall("m", "op", true, 0)
		m.RecordStageAttempt("facts", "pass")
		m.RecordDraft("failed", 0)
		m.RecordStoreOp("redis", "get", 0, nil)
		m.SetHealth("neo4j", false)
	})
}
