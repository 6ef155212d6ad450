package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeCluster answers by "METHOD path-suffix" and records every request.
type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(w http.ResponseWriter)
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	for key, h := range f.routes {
		parts := strings.SplitN(key, " ", 2)
		if r.Method == parts[0] && strings.HasSuffix(r.URL.Path, parts[1]) {
			h(w)
			return
		}
	}
	w.WriteHeader(http.StatusBadRequest)
}

func (f *fakeCluster) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func reply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestClient(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*Client, *fakeCluster) {
	t.Helper()
	fc := &fakeCluster{routes: routes}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)

	osClient, err := opensearchgo.NewClient(opensearchgo.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return newClient(osClient, "ts_text_embeddings", logging.NewNopLogger(), nil), fc
}

func TestNewClient_PingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(config.OpenSearchConfig{Addresses: []string{srv.URL}, Index: "i"}, logging.NewNopLogger(), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSearchIndexError))
}

func TestClient_HealthCheck(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
		"HEAD /": reply(http.StatusOK, ""),
	})
	require.NoError(t, c.HealthCheck(context.Background()))
	assert.True(t, c.IsHealthy())
}

func TestIndexMapping(t *testing.T) {
	m := IndexMapping(768)
	props := m["mappings"].(map[string]any)["properties"].(map[string]any)
	emb := props["embedding"].(map[string]any)
	assert.Equal(t, "knn_vector", emb["type"])
	assert.Equal(t, 768, emb["dimension"])
	assert.Equal(t, "cosinesimil", emb["method"].(map[string]any)["space_type"])
	assert.Contains(t, props, "case_type")
}

func TestEnsureIndex_CreatesMissingIndex(t *testing.T) {
	c, fc := newTestClient(t, map[string]func(w http.ResponseWriter){
		"GET /ts_text_embeddings/_mapping": reply(http.StatusNotFound, `{"error":{"type":"index_not_found_exception","reason":"no such index"}}`),
		"PUT /ts_text_embeddings":          reply(http.StatusOK, `{"acknowledged":true}`),
	})

	require.NoError(t, NewIndexer(c, 0, "", nil).EnsureIndex(context.Background(), 4))
	req := fc.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Contains(t, req.Body, `"dimension":4`)
}

func TestEnsureIndex_DimensionMismatch(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
		"GET /ts_text_embeddings/_mapping": reply(http.StatusOK,
			`{"ts_text_embeddings":{"mappings":{"properties":{"embedding":{"type":"knn_vector","dimension":384}}}}}`),
	})

	idx := NewIndexer(c, 0, "", nil)
	err := idx.EnsureIndex(context.Background(), 768)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeEmbeddingShape))
	assert.NoError(t, idx.EnsureIndex(context.Background(), 384))
}

func TestUpsert_BatchesAndUsesChunkIDs(t *testing.T) {
	c, fc := newTestClient(t, map[string]func(w http.ResponseWriter){
		"POST /_bulk": reply(http.StatusOK, `{"errors":false,"items":[]}`),
	})

	chunks := []chunk.IndexedChunk{
		{Chunk: chunk.Chunk{CaseID: 3, Type: chunk.TypeFull, Text: "全文"}, Embedding: []float32{1, 0}},
		{Chunk: chunk.Chunk{CaseID: 3, Type: chunk.TypeFact, Sequence: 1, Text: "事實"}, Embedding: []float32{0, 1}, CaseType: "數名原告"},
		{Chunk: chunk.Chunk{CaseID: 3, Type: chunk.TypeFact, Sequence: 2, Text: "事實二"}, Embedding: []float32{1, 1}},
	}
	require.NoError(t, NewIndexer(c, 2, "", nil).Upsert(context.Background(), chunks))

	require.Len(t, fc.requests, 2)
	first := strings.Split(strings.TrimSpace(fc.requests[0].Body), "\n")
	require.Len(t, first, 4)
	assert.Contains(t, first[0], `"_id":"3-full"`)
	assert.Contains(t, first[2], `"_id":"3-fact-1"`)

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(first[3]), &doc))
	assert.Equal(t, Document{CaseID: 3, ChunkID: "3-fact-1", Text: "事實", TextType: "fact", CaseType: "數名原告", Embedding: []float32{0, 1}}, doc)
}

func TestUpsert_ItemFailures(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
		"POST /_bulk": reply(http.StatusOK, `{"errors":true,"items":[
			{"index":{"_id":"1-fact-1","status":201}},
			{"index":{"_id":"1-fact-2","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad vector"}}}]}`),
	})

	err := NewIndexer(c, 0, "", nil).Upsert(context.Background(), []chunk.IndexedChunk{
		{Chunk: chunk.Chunk{CaseID: 1, Type: chunk.TypeFact, Sequence: 1}},
		{Chunk: chunk.Chunk{CaseID: 1, Type: chunk.TypeFact, Sequence: 2}},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsExternal(err))
	assert.Contains(t, err.Error(), "bad vector")
}

func TestSearch_FiltersAndParsesHits(t *testing.T) {
	c, fc := newTestClient(t, map[string]func(w http.ResponseWriter){
		"POST /ts_text_embeddings/_search": reply(http.StatusOK, `{"hits":{"hits":[
			{"_score":0.93,"_source":{"case_id":7,"chunk_id":"7-full","text":"甲","text_type":"full"}},
			{"_score":0.81,"_source":{"case_id":2,"chunk_id":"2-full","text":"乙","text_type":"full"}}]}}`),
	})

	hits, err := NewSearcher(c, nil).Search(context.Background(), chunk.SearchQuery{
		Vector: []float32{0.1, 0.2}, Type: chunk.TypeFull, CaseType: "數名被告", K: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []chunk.SearchHit{
		{CaseID: 7, ChunkID: "7-full", Text: "甲", Type: chunk.TypeFull, Score: 0.93},
		{CaseID: 2, ChunkID: "2-full", Text: "乙", Type: chunk.TypeFull, Score: 0.81},
	}, hits)

	body := fc.last().Body
	assert.Contains(t, body, `"knn"`)
	assert.Contains(t, body, `{"term":{"text_type":"full"}}`)
	assert.Contains(t, body, `{"term":{"case_type":"數名被告"}}`)
}

func TestSearch_RejectsBadQuery(t *testing.T) {
	c, _ := newTestClient(t, nil)
	s := NewSearcher(c, nil)

	_, err := s.Search(context.Background(), chunk.SearchQuery{Vector: []float32{1}, Type: chunk.TypeFact})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
	_, err = s.Search(context.Background(), chunk.SearchQuery{Type: chunk.TypeFact, K: 3})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestBuildKNNQuery_NoCaseType(t *testing.T) {
	q := BuildKNNQuery(chunk.SearchQuery{Vector: []float32{1}, Type: chunk.TypeFact, K: 5})
	knn := q["query"].(map[string]any)["knn"].(map[string]any)["embedding"].(map[string]any)
	filters := knn["filter"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	assert.Len(t, filters, 1)
	assert.Equal(t, 5, q["size"])
}

func TestMaxCaseID(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		wantID int64
		wantOK bool
	}{
		{"populated", http.StatusOK, `{"aggregations":{"max_case_id":{"value":41.0}}}`, 41, true},
		{"empty index", http.StatusOK, `{"aggregations":{"max_case_id":{"value":null}}}`, 0, false},
		{"missing index", http.StatusNotFound, `{}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, map[string]func(w http.ResponseWriter){
				"POST /ts_text_embeddings/_search": reply(tt.status, tt.body),
			})
			id, ok, err := NewSearcher(c, nil).MaxCaseID(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestCountChunks(t *testing.T) {
	c, fc := newTestClient(t, map[string]func(w http.ResponseWriter){
		"POST /ts_text_embeddings/_count": reply(http.StatusOK, `{"count":3}`),
	})

	n, err := NewSearcher(c, nil).CountChunks(context.Background(), 5, chunk.TypeInjury)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, fc.last().Body, `"chunk_id":"5-injury"`)
}

func TestDeleteCase(t *testing.T) {
	c, fc := newTestClient(t, map[string]func(w http.ResponseWriter){
		"POST /ts_text_embeddings/_delete_by_query": reply(http.StatusOK, `{"deleted":6}`),
	})

	n, err := NewIndexer(c, 0, "", nil).DeleteCase(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Contains(t, fc.last().Body, `"case_id":9`)
}

func TestStoreSatisfiesIndex(t *testing.T) {
	c, _ := newTestClient(t, nil)
	var idx chunk.Index = NewStore(c, 10, nil)
	assert.NotNil(t, idx)
}
