package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

var ErrDimensionMismatch = errors.New(errors.ErrCodeEmbeddingShape, "index embedding dimension does not match the model")

// Document is the stored form of an indexed chunk.
type Document struct {
	CaseID    int64     `json:"case_id"`
	ChunkID   string    `json:"chunk_id"`
	Text      string    `json:"text"`
	TextType  string    `json:"text_type"`
	CaseType  string    `json:"case_type,omitempty"`
	Embedding []float32 `json:"embedding"`
}

func toDocument(c chunk.IndexedChunk) Document {
	return Document{
		CaseID:    c.CaseID,
		ChunkID:   c.ID(),
		Text:      c.Text,
		TextType:  string(c.Type),
		CaseType:  c.CaseType,
		Embedding: c.Embedding,
	}
}

// IndexMapping declares a cosine knn_vector field of the given
// dimensionality. The lucene engine is used because it supports filtered
// kNN queries.
func IndexMapping(dims int) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"knn":              true,
				"refresh_interval": "1s",
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"case_id":   map[string]any{"type": "long"},
				"chunk_id":  map[string]any{"type": "keyword"},
				"text":      map[string]any{"type": "text"},
				"text_type": map[string]any{"type": "keyword"},
				"case_type": map[string]any{"type": "keyword"},
				"embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": dims,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "cosinesimil",
						"engine":     "lucene",
					},
				},
			},
		},
	}
}

// Indexer writes chunk documents. It implements the write half of
// chunk.Index; Searcher implements the read half.
type Indexer struct {
	client    *Client
	batchSize int
	refresh   string
	logger    logging.Logger
}

// NewIndexer builds an Indexer. refresh is passed to every write
// ("wait_for" keeps CountChunks consistent with the write that preceded it).
func NewIndexer(client *Client, batchSize int, refresh string, logger logging.Logger) *Indexer {
	if batchSize <= 0 {
		batchSize = 500
	}
	if refresh == "" {
		refresh = "wait_for"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Indexer{client: client, batchSize: batchSize, refresh: refresh, logger: logger}
}

// EnsureIndex creates the index when missing. An existing index must have
// the same embedding dimension.
func (i *Indexer) EnsureIndex(ctx context.Context, dims int) error {
	if dims <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "embedding dimension must be positive, got %d", dims)
	}
	index := i.client.Index()

	current, exists, err := i.currentDims(ctx)
	if err != nil {
		return err
	}
	if exists {
		if current != dims {
			return ErrDimensionMismatch.WithDetail(fmt.Sprintf("index %s has %d, model produces %d", index, current, dims))
		}
		return nil
	}

	body, err := json.Marshal(IndexMapping(dims))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	resp, err := i.client.do(ctx, "create_index", opensearchapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return responseError(resp, "create index")
	}

	i.logger.Info("Index created", logging.String("index", index), logging.Int("dimension", dims))
	return nil
}

func (i *Indexer) currentDims(ctx context.Context) (int, bool, error) {
	index := i.client.Index()
	resp, err := i.client.do(ctx, "get_mapping", opensearchapi.IndicesGetMappingRequest{Index: []string{index}})
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.IsError() {
		return 0, false, responseError(resp, "get mapping")
	}

	var mapping map[string]struct {
		Mappings struct {
			Properties struct {
				Embedding struct {
					Dimension int `json:"dimension"`
				} `json:"embedding"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mapping); err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode index mapping")
	}
	m, ok := mapping[index]
	if !ok {
		return 0, false, nil
	}
	return m.Mappings.Properties.Embedding.Dimension, true, nil
}

// DeleteIndex drops the whole index. A missing index is not an error.
func (i *Indexer) DeleteIndex(ctx context.Context) error {
	resp, err := i.client.do(ctx, "delete_index", opensearchapi.IndicesDeleteRequest{Index: []string{i.client.Index()}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.IsError() && resp.StatusCode != http.StatusNotFound {
		return responseError(resp, "delete index")
	}
	i.logger.Warn("Index deleted", logging.String("index", i.client.Index()))
	return nil
}

// Upsert writes chunks keyed by their composite chunk id, so re-ingesting a
// case overwrites rather than duplicates.
func (i *Indexer) Upsert(ctx context.Context, chunks []chunk.IndexedChunk) error {
	for start := 0; start < len(chunks); start += i.batchSize {
		end := start + i.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := i.bulk(ctx, chunks[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (i *Indexer) bulk(ctx context.Context, batch []chunk.IndexedChunk) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range batch {
		doc := toDocument(c)
		meta := map[string]any{"index": map[string]any{"_index": i.client.Index(), "_id": doc.ChunkID}}
		if err := enc.Encode(meta); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode bulk action")
		}
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode document")
		}
	}

	resp, err := i.client.do(ctx, "bulk", opensearchapi.BulkRequest{
		Body:    bytes.NewReader(buf.Bytes()),
		Refresh: i.refresh,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return responseError(resp, "bulk index")
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode bulk response")
	}
	if !bulkResp.Errors {
		i.logger.Debug("Bulk index completed", logging.Int("documents", len(batch)))
		return nil
	}

	var failed []string
	var firstReason string
	for _, item := range bulkResp.Items {
		for _, v := range item {
			if v.Status >= 300 {
				failed = append(failed, v.ID)
				if firstReason == "" {
					firstReason = v.Error.Type + ": " + v.Error.Reason
				}
			}
		}
	}
	i.logger.Error("Bulk index had failures", logging.Strings("chunk_ids", failed), logging.String("reason", firstReason))
	return errors.Newf(errors.ErrCodeSearchIndexError, "%d of %d documents failed to index: %s", len(failed), len(batch), firstReason)
}

// DeleteCase removes every chunk of a case.
func (i *Indexer) DeleteCase(ctx context.Context, caseID int64) (int64, error) {
	body, _ := json.Marshal(map[string]any{
		"query": map[string]any{"term": map[string]any{"case_id": caseID}},
	})
	refresh := true
	resp, err := i.client.do(ctx, "delete_by_query", opensearchapi.DeleteByQueryRequest{
		Index:   []string{i.client.Index()},
		Body:    bytes.NewReader(body),
		Refresh: &refresh,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return 0, responseError(resp, "delete by query")
	}

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode delete response")
	}
	i.logger.Info("Deleted case chunks", logging.CaseID(caseID), logging.Int64("deleted", out.Deleted))
	return out.Deleted, nil
}

func responseError(resp *opensearchapi.Response, action string) error {
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Reason != "" {
		return errors.Newf(errors.ErrCodeSearchIndexError, "%s failed: %s - %s", action, errResp.Error.Type, errResp.Error.Reason)
	}
	return errors.Newf(errors.ErrCodeSearchIndexError, "%s failed with status %d", action, resp.StatusCode)
}
