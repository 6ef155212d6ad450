package llm

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Embedder turns texts into vectors through the embeddings API.
type Embedder struct {
	api        *openai.Client
	model      string
	dimensions int
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	logger     logging.Logger
	metrics    *prometheus.AppMetrics
}

// NewEmbedder builds an Embedder. Retry settings come from llmCfg.
func NewEmbedder(cfg config.EmbeddingConfig, llmCfg config.LLMConfig, logger logging.Logger, metrics *prometheus.AppMetrics) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, pkgerrors.InvalidParam("embedding model is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = config.DefaultEmbedBatch
	}
	return &Embedder{
		api:        newOpenAIClient(cfg.BaseURL, cfg.APIKey, llmCfg.Timeout),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batch,
		maxRetries: llmCfg.MaxRetries,
		retryDelay: llmCfg.RetryBackoff,
		logger:     logger.Named("embedder"),
		metrics:    metrics,
	}, nil
}

// Model returns the embedding model name, used as part of cache keys.
func (e *Embedder) Model() string { return e.model }

// EmbedBatch embeds texts in request-sized batches. The output is aligned
// with texts and every vector has the same length; any failure discards
// the whole result.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	if err := checkDimensions(out); err != nil {
		return nil, err
	}
	e.metrics.RecordEmbeddings("remote", len(out))
	return out, nil
}

func (e *Embedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	}

	var failure *Failure
	attempts := 0
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff(e.retryDelay, attempt)); err != nil {
				return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeEmbeddingFailed, "embedding cancelled")
			}
		}
		attempts = attempt + 1

		start := time.Now()
		resp, err := e.api.CreateEmbeddings(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			vecs, shapeErr := alignEmbeddings(resp.Data, len(texts))
			e.metrics.RecordLLMCall(e.model, "embed", shapeErr == nil, elapsed)
			if shapeErr != nil {
				return nil, shapeErr
			}
			return vecs, nil
		}

		e.metrics.RecordLLMCall(e.model, "embed", false, elapsed)
		failure = classify(err, pkgerrors.ErrCodeEmbeddingFailed)
		e.logger.Warn("embedding attempt failed",
			logging.Int("attempt", attempts),
			logging.Int("texts", len(texts)),
			logging.String("reason", failure.Message))
		if !failure.Retryable {
			break
		}
	}
	return nil, Result{Attempts: attempts, Failure: failure}.Err()
}

// alignEmbeddings orders vectors by their response index.
func alignEmbeddings(data []openai.Embedding, want int) ([][]float32, error) {
	if len(data) != want {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeEmbeddingShape, "expected %d embeddings, got %d", want, len(data))
	}
	out := make([][]float32, want)
	for _, d := range data {
		if d.Index < 0 || d.Index >= want || out[d.Index] != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrCodeEmbeddingShape, "embedding index %d out of range or repeated", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func checkDimensions(vecs [][]float32) error {
	for i, v := range vecs {
		if len(v) == 0 {
			return pkgerrors.Newf(pkgerrors.ErrCodeEmbeddingShape, "embedding %d is empty", i)
		}
		if len(v) != len(vecs[0]) {
			return pkgerrors.Newf(pkgerrors.ErrCodeEmbeddingShape, "embedding %d has %d dimensions, expected %d", i, len(v), len(vecs[0]))
		}
	}
	return nil
}
