package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

var sourceFields = []string{"case_id", "chunk_id", "text", "text_type", "case_type"}

type Searcher struct {
	client *Client
	logger logging.Logger
}

func NewSearcher(client *Client, logger logging.Logger) *Searcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Searcher{client: client, logger: logger}
}

// BuildKNNQuery renders the filtered kNN request body.
func BuildKNNQuery(q chunk.SearchQuery) map[string]any {
	filters := []any{map[string]any{"term": map[string]any{"text_type": string(q.Type)}}}
	if q.CaseType != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"case_type": q.CaseType}})
	}
	return map[string]any{
		"size":    q.K,
		"_source": sourceFields,
		"query": map[string]any{
			"knn": map[string]any{
				"embedding": map[string]any{
					"vector": q.Vector,
					"k":      q.K,
					"filter": map[string]any{"bool": map[string]any{"filter": filters}},
				},
			},
		},
	}
}

// Search returns the K nearest chunks of the requested type, best first.
func (s *Searcher) Search(ctx context.Context, q chunk.SearchQuery) ([]chunk.SearchHit, error) {
	if q.K < 1 {
		return nil, errors.Newf(errors.ErrCodeValidation, "k must be >= 1, got %d", q.K)
	}
	if len(q.Vector) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "query vector is empty")
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := s.search(ctx, "knn_search", BuildKNNQuery(q), &out); err != nil {
		return nil, err
	}

	hits := make([]chunk.SearchHit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		t, ok := chunk.ParseType(h.Source.TextType)
		if !ok {
			s.logger.Warn("Skipping hit with unknown text type", logging.String("chunk_id", h.Source.ChunkID), logging.String("text_type", h.Source.TextType))
			continue
		}
		hits = append(hits, chunk.SearchHit{
			CaseID:  h.Source.CaseID,
			ChunkID: h.Source.ChunkID,
			Text:    h.Source.Text,
			Type:    t,
			Score:   h.Score,
		})
	}
	s.logger.Debug("kNN search completed",
		logging.String("text_type", string(q.Type)),
		logging.Int("k", q.K),
		logging.Int("hits", len(hits)))
	return hits, nil
}

// MaxCaseID aggregates the largest stored case id.
func (s *Searcher) MaxCaseID(ctx context.Context) (int64, bool, error) {
	body := map[string]any{
		"size":  0,
		"query": map[string]any{"match_all": map[string]any{}},
		"aggs":  map[string]any{"max_case_id": map[string]any{"max": map[string]any{"field": "case_id"}}},
	}
	var out struct {
		Aggregations struct {
			MaxCaseID struct {
				Value *float64 `json:"value"`
			} `json:"max_case_id"`
		} `json:"aggregations"`
	}
	err := s.search(ctx, "max_case_id", body, &out)
	if errors.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if out.Aggregations.MaxCaseID.Value == nil {
		return 0, false, nil
	}
	return int64(*out.Aggregations.MaxCaseID.Value), true, nil
}

// CountChunks counts the stored chunks of one type for a case; ingestion
// derives the next sequence number from it.
func (s *Searcher) CountChunks(ctx context.Context, caseID int64, t chunk.Type) (int, error) {
	body, _ := json.Marshal(map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"term": map[string]any{"case_id": caseID}},
					map[string]any{"prefix": map[string]any{"chunk_id": fmt.Sprintf("%d-%s", caseID, t)}},
				},
			},
		},
	})
	resp, err := s.client.do(ctx, "count", opensearchapi.CountRequest{
		Index: []string{s.client.Index()},
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.IsError() {
		return 0, responseError(resp, "count")
	}

	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode count response")
	}
	return out.Count, nil
}

func (s *Searcher) search(ctx context.Context, operation string, body map[string]any, dest any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal search body")
	}
	resp, err := s.client.do(ctx, operation, opensearchapi.SearchRequest{
		Index: []string{s.client.Index()},
		Body:  bytes.NewReader(data),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errors.Newf(errors.ErrCodeNotFound, "index %s not found", s.client.Index())
	}
	if resp.IsError() {
		return responseError(resp, operation)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}
	return nil
}

// Store is the OpenSearch implementation of chunk.Index.
type Store struct {
	*Indexer
	*Searcher
}

var _ chunk.Index = (*Store)(nil)

func NewStore(client *Client, batchSize int, logger logging.Logger) *Store {
	return &Store{
		Indexer:  NewIndexer(client, batchSize, "wait_for", logger),
		Searcher: NewSearcher(client, logger),
	}
}
