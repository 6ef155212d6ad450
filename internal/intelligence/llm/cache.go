package llm

import (
	"context"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
)

// BatchEmbedder is satisfied by Embedder and by test doubles.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorCache stores embeddings keyed by model and text. GetMany returns a
// slice aligned with texts where misses are nil.
type VectorCache interface {
	GetMany(ctx context.Context, model string, texts []string) ([][]float32, error)
	SetMany(ctx context.Context, model string, texts []string, vectors [][]float32) error
}

// CachingEmbedder serves repeated sentences from a VectorCache and only
// sends misses to the wrapped embedder. Cache failures degrade to misses.
type CachingEmbedder struct {
	inner   BatchEmbedder
	cache   VectorCache
	model   string
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

func NewCachingEmbedder(inner BatchEmbedder, cache VectorCache, model string, logger logging.Logger, metrics *prometheus.AppMetrics) *CachingEmbedder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CachingEmbedder{inner: inner, cache: cache, model: model, logger: logger, metrics: metrics}
}

func (c *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	cached, err := c.cache.GetMany(ctx, c.model, texts)
	if err != nil || len(cached) != len(texts) {
		if err != nil {
			c.logger.Warn("embedding cache read failed", logging.Err(err))
		}
		cached = make([][]float32, len(texts))
	}

	var missIdx []int
	var missTexts []string
	for i, v := range cached {
		hit := v != nil
		c.metrics.RecordCacheAccess("embedding", hit)
		if !hit {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	c.metrics.RecordEmbeddings("cache", len(texts)-len(missIdx))
	if len(missIdx) == 0 {
		return cached, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		cached[i] = fresh[j]
	}
	if err := checkDimensions(cached); err != nil {
		return nil, err
	}

	if err := c.cache.SetMany(ctx, c.model, missTexts, fresh); err != nil {
		c.logger.Warn("embedding cache write failed", logging.Err(err), logging.Int("vectors", len(fresh)))
	}
	return cached, nil
}
