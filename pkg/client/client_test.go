package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 2*time.Millisecond)}, opts...)
	client, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return client
}

type testLogger struct {
	mu      sync.Mutex
	lastMsg string
	count   int32
}

func (l *testLogger) Debugf(format string, args ...interface{}) { l.log(format, args...) }
func (l *testLogger) Infof(format string, args ...interface{})  { l.log(format, args...) }
func (l *testLogger) Errorf(format string, args ...interface{}) { l.log(format, args...) }

func (l *testLogger) log(format string, args ...interface{}) {
	atomic.AddInt32(&l.count, 1)
	l.mu.Lock()
	l.lastMsg = fmt.Sprintf(format, args...)
	l.mu.Unlock()
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
	assert.Equal(t, 3, c.retryMax)
	assert.Contains(t, c.userAgent, "tlrag-go-sdk/")

	for _, bad := range []string{"", "ftp://host", "no-scheme"} {
		_, err := NewClient(bad)
		assert.True(t, errors.IsCode(err, errors.ErrCodeValidation), bad)
	}
}

func TestClient_SubClientsAreShared(t *testing.T) {
	c, _ := NewClient("http://api.example.com")
	assert.Nil(t, c.drafts)

	var wg sync.WaitGroup
	got := make([]*DraftsClient, 50)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = c.Drafts()
		}(i)
	}
	wg.Wait()
	for _, d := range got {
		assert.Same(t, got[0], d)
	}
	assert.Same(t, c.Ingest(), c.Ingest())
	assert.Same(t, c.Cases(), c.Cases())
}

func TestClient_Do_RequestHeaders(t *testing.T) {
	ids := make(chan string, 2)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("User-Agent"), "tlrag-go-sdk/")
		if r.Method == http.MethodPost {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		}
		ids <- r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	require.NoError(t, c.get(ctx, "test", nil))
	require.NoError(t, c.post(ctx, "/test", map[string]string{"a": "b"}, nil))
	close(ids)
	first, second := <-ids, <-ids
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestClient_Do_DecodesErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RunIDHeader, "run-7")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"FMT_001","message":"缺少「二、」標記","format":{"marker":"二、","violation":"missing","position":-1}}`))
	})

	err := c.post(context.Background(), "/x", struct{}{}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsFormat())
	assert.Equal(t, "FMT_001", apiErr.Code)
	assert.Equal(t, "run-7", apiErr.RunID)
	require.NotNil(t, apiErr.Format)
	assert.Equal(t, "二、", apiErr.Format.Marker)
	assert.Equal(t, -1, apiErr.Format.Position)
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestClient_Do_PlainTextError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
	}, WithRetryMax(0))

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsThrottled())
	assert.Equal(t, "Too many requests", apiErr.Message)
}

func TestClient_Do_RetriesGetOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"runs":[]}`))
	})

	runs, err := c.Drafts().Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Do_RetryExhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithRetryMax(2))

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Do_PostIsNotRetriedOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set(RunIDHeader, "run-1")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"code":"GEN_002","message":"draft generation aborted"}`))
	})

	_, err := c.Drafts().Create(context.Background(), &DraftRequest{Query: "q"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "run-1", apiErr.RunID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Do_AbortedDraftCarriesPartialDraft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"code":"GEN_002","message":"draft generation aborted","run_id":"run-4",` +
			`"draft":{"facts":"一、緣被告駕車","law_section":"二、按民法第184條","state":"FAILED"}}`))
	})

	_, err := c.Drafts().Create(context.Background(), &DraftRequest{Query: "q"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "run-4", apiErr.RunID)
	require.NotNil(t, apiErr.Draft)
	assert.Equal(t, "一、緣被告駕車", apiErr.Draft.Facts)
	assert.Equal(t, "FAILED", apiErr.Draft.State)
}

func TestClient_Do_ThrottledPostIsRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"laws":2}`))
	})

	start := time.Now()
	n, err := c.Ingest().Laws(context.Background(), "第1條：a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	logger := &testLogger{}
	c, _ := NewClient(server.URL, WithRetryMax(1), WithRetryWait(time.Millisecond, 2*time.Millisecond), WithLogger(logger))
	err := c.get(context.Background(), "/x", nil)
	assert.Error(t, err)
	assert.Greater(t, atomic.LoadInt32(&logger.count), int32(1))
}

func TestClient_Do_Context(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.get(canceled, "/x", nil), context.Canceled)

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.get(short, "/x", nil), context.DeadlineExceeded)
}

func TestAPIError_Methods(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 404}).IsNotFound())
	assert.True(t, (&APIError{StatusCode: 422}).IsFormat())
	assert.True(t, (&APIError{StatusCode: 429}).IsThrottled())
	assert.True(t, (&APIError{StatusCode: 503}).IsServerError())
	assert.False(t, (&APIError{StatusCode: 400}).IsServerError())

	msg := (&APIError{Code: "RET_001", StatusCode: 404, Message: "no similar cases", RequestID: "ID"}).Error()
	assert.Equal(t, "tlrag: RET_001 (HTTP 404): no similar cases [request_id=ID]", msg)
}

func TestDraftsClient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/drafts/":
			var req DraftRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "fact", req.SearchType)
			if assert.NotNil(t, req.ReferenceCaseID) {
				assert.Equal(t, int64(4), *req.ReferenceCaseID)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"run_id":"r1","status":"degraded","draft":{"text":"一、...","totals":[{"plaintiff_id":"甲","amount":1200}],"degraded_stages":["facts"],"trace":{"events":[{"from":"FACTS_PENDING","to":"FACTS_OK","stage":"facts","at":"2024-05-01T08:00:00Z"}]}}}`))
		case r.URL.Path == "/api/v1/drafts/runs/r1":
			_, _ = w.Write([]byte(`{"id":"r1","status":"completed","law_numbers":["184"],"started_at":"2024-05-01T08:00:00Z"}`))
		case r.URL.Path == "/api/v1/drafts/runs":
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"runs":[{"id":"r1"},{"id":"r0"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	ref := int64(4)
	res, err := c.Drafts().Create(ctx, &DraftRequest{Query: "一、事實", SearchType: "fact", ReferenceCaseID: &ref})
	require.NoError(t, err)
	assert.Equal(t, "r1", res.RunID)
	assert.True(t, res.Degraded())
	require.Len(t, res.Draft.Totals, 1)
	assert.Equal(t, 1200.0, res.Draft.Totals[0].Amount)
	assert.Equal(t, "FACTS_OK", res.Draft.Trace.Events[0].To)

	run, err := c.Drafts().Run(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"184"}, run.LawNumbers)
	assert.Equal(t, 2024, run.StartedAt.Year())

	runs, err := c.Drafts().Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	_, err = c.Drafts().Create(ctx, &DraftRequest{})
	assert.Error(t, err)
	_, err = c.Drafts().Run(ctx, "")
	assert.Error(t, err)
}

func TestIngestClient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		async := r.URL.Query().Get("async") == "true"
		switch r.URL.Path {
		case "/api/v1/ingest/lawyer-inputs":
			assert.JSONEq(t, `{"text":"一、A 二、B 三、C"}`, string(body))
			if async {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte(`{"request_id":"q1","event_id":"e1"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"case_id":9,"case_type":"數名被告","chunks":4,"by_type":{"fact":1}}`))
		case "/api/v1/ingest/indictments":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"case_id":3,"law_numbers":["184","191-2"]}`))
		case "/api/v1/ingest/indictments/batch":
			assert.JSONEq(t, `{"items":[{"text":"a"},{"text":"b","used_laws":"第184條"}]}`, string(body))
			_, _ = w.Write([]byte(`{"items":[{"index":0,"error":"缺少「二、」標記"},{"index":1,"result":{"case_id":4,"law_numbers":["184"]}}]}`))
		case "/api/v1/ingest/laws":
			// a server without a broker answers inline
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"laws":12}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	res, err := c.Ingest().LawyerInput(ctx, "一、A 二、B 三、C")
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.CaseID)
	assert.Equal(t, 1, res.ByType["fact"])

	acc, err := c.Ingest().QueueLawyerInput(ctx, "一、A 二、B 三、C")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "e1", acc.EventID)

	ind, err := c.Ingest().Indictment(ctx, IndictmentRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"184", "191-2"}, ind.LawNumbers)

	items, err := c.Ingest().Indictments(ctx, []IndictmentRequest{{Text: "a"}, {Text: "b", UsedLaws: "第184條"}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.NotEmpty(t, items[0].Error)
	assert.Equal(t, int64(4), items[1].Result.CaseID)

	acc, err = c.Ingest().QueueLaws(ctx, "第1條：a")
	require.NoError(t, err)
	assert.Nil(t, acc)

	_, err = c.Ingest().LawyerInput(ctx, " ")
	assert.Error(t, err)
	_, err = c.Ingest().Indictments(ctx, nil)
	assert.Error(t, err)
}

func TestCasesClient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/search":
			_, _ = w.Write([]byte(`{"hits":[{"case_id":2,"chunk_id":"2-fact-0","text":"t","text_type":"fact","score":0.91}]}`))
		case "/api/v1/retrieve":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"RET_001","message":"no similar cases"}`))
		case "/api/v1/validate":
			_, _ = w.Write([]byte(`{"valid":1,"invalid":1,"reports":[{"line":1,"valid":true,"message":"ok"},{"line":2,"valid":false,"message":"缺少「三、」標記","marker":"三、","violation":"missing"}]}`))
		}
	})
	ctx := context.Background()

	hits, err := c.Cases().Search(ctx, &SearchRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "fact", hits[0].Type)

	_, err = c.Cases().Retrieve(ctx, &SearchRequest{Query: "q"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "RET_001", apiErr.Code)

	res, err := c.Cases().Validate(ctx, KindUserInput, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, "三、", res.Reports[1].Marker)

	_, err = c.Cases().Validate(ctx, "pdf", nil)
	assert.Error(t, err)
}
