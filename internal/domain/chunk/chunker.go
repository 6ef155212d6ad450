package chunk

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Embedder produces one vector per input text in a single call.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkerConfig tunes SemanticChunker.
type ChunkerConfig struct {
	// Percentile is the share of adjacent links kept intact. 70 cuts at the
	// weakest 30% of adjacent similarities.
	Percentile    int
	MinChunkChars int
	MaxChunkChars int
	// Joiner is placed between sentences of a chunk and appended at the end.
	Joiner string
}

// DefaultChunkerConfig returns the tuned production defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{Percentile: 70, MinChunkChars: 50, MaxChunkChars: 230, Joiner: "。"}
}

// SemanticChunker groups sentences at low-similarity boundaries subject to
// length bounds.
type SemanticChunker struct {
	cfg      ChunkerConfig
	embedder Embedder
	splitter *Splitter
	logger   logging.Logger
}

// NewSemanticChunker validates cfg and builds a chunker.
func NewSemanticChunker(cfg ChunkerConfig, embedder Embedder, splitter *Splitter, logger logging.Logger) (*SemanticChunker, error) {
	if embedder == nil {
		return nil, pkgerrors.InvalidParam("chunker: embedder is required")
	}
	if cfg.Percentile < 0 || cfg.Percentile > 100 {
		return nil, pkgerrors.InvalidParam("chunker: percentile must be within [0, 100]")
	}
	if cfg.MaxChunkChars < 1 || cfg.MinChunkChars < 0 || cfg.MinChunkChars > cfg.MaxChunkChars {
		return nil, pkgerrors.InvalidParam("chunker: require 0 <= min_chunk_chars <= max_chunk_chars and max_chunk_chars >= 1")
	}
	if cfg.Joiner == "" {
		cfg.Joiner = "。"
	}
	if splitter == nil {
		splitter = NewSplitter("")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SemanticChunker{cfg: cfg, embedder: embedder, splitter: splitter, logger: logger}, nil
}

// ChunkText splits text into sentences and chunks them.
func (c *SemanticChunker) ChunkText(ctx context.Context, text string) ([]string, error) {
	return c.Chunk(ctx, c.splitter.Split(text))
}

// Chunk groups sentences into chunk texts. Any embedding failure aborts the
// whole pass; no partial result is returned.
func (c *SemanticChunker) Chunk(ctx context.Context, sentences []Sentence) ([]string, error) {
	switch len(sentences) {
	case 0:
		return nil, nil
	case 1:
		return []string{sentences[0].Text + c.cfg.Joiner}, nil
	}

	embedded, err := c.embed(ctx, sentences)
	if err != nil {
		return nil, err
	}

	sims := AdjacentSimilarities(embedded)
	scores := make([]float64, len(sims))
	for i, s := range sims {
		scores[i] = s.Score
	}
	threshold := Threshold(scores, c.cfg.Percentile)

	chunks := c.group(sentences, scores, threshold)
	c.logger.Debug("chunked text",
		logging.Int("sentences", len(sentences)),
		logging.Int("chunks", len(chunks)),
		logging.Float64("threshold", threshold))
	return chunks, nil
}

func (c *SemanticChunker) embed(ctx context.Context, sentences []Sentence) ([]EmbeddedSentence, error) {
	vectors, err := c.embedder.EmbedBatch(ctx, Texts(sentences))
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeEmbeddingFailed, "chunker: embedding sentences")
	}
	if len(vectors) != len(sentences) {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeEmbeddingFailed,
			"chunker: embedder returned %d vectors for %d sentences", len(vectors), len(sentences))
	}

	dim := len(vectors[0])
	out := make([]EmbeddedSentence, len(sentences))
	for i, v := range vectors {
		if len(v) != dim || dim == 0 {
			return nil, pkgerrors.Newf(pkgerrors.ErrCodeEmbeddingShape,
				"chunker: embedding %d has dimension %d, expected %d", i, len(v), dim)
		}
		out[i] = EmbeddedSentence{Sentence: sentences[i], Embedding: v}
	}
	return out, nil
}

// group walks the sentences once. scores[i] links sentence i and i+1.
func (c *SemanticChunker) group(sentences []Sentence, scores []float64, threshold float64) []string {
	var chunks []string
	flush := func(from, to int) {
		parts := make([]string, 0, to-from)
		for _, s := range sentences[from:to] {
			parts = append(parts, s.Text)
		}
		chunks = append(chunks, strings.Join(parts, c.cfg.Joiner)+c.cfg.Joiner)
	}

	start, count := 0, 0
	for i, s := range sentences {
		n := utf8.RuneCountInString(s.Text)
		if i > start && count+n > c.cfg.MaxChunkChars {
			flush(start, i)
			start, count = i, n
		} else {
			count += n
		}

		if i < len(scores) && scores[i] < threshold && count >= c.cfg.MinChunkChars {
			flush(start, i+1)
			start, count = i+1, 0
		}
	}
	if start < len(sentences) {
		flush(start, len(sentences))
	}
	return chunks
}

// AdjacentSimilarities returns the cosine similarity of every neighbouring
// pair; the result has len(sentences)-1 entries.
func AdjacentSimilarities(sentences []EmbeddedSentence) []AdjacentSimilarity {
	if len(sentences) < 2 {
		return nil
	}
	out := make([]AdjacentSimilarity, len(sentences)-1)
	for i := 0; i+1 < len(sentences); i++ {
		out[i] = AdjacentSimilarity{Index: i, Score: CosineSimilarity(sentences[i].Embedding, sentences[i+1].Embedding)}
	}
	return out
}

// Threshold returns the similarity below which a boundary may be placed.
// The sorted scores are indexed at floor(len*(100-percentile)/100), clamped
// to the last element. An empty input yields -Inf so nothing falls below it.
func Threshold(scores []float64, percentile int) float64 {
	if len(scores) == 0 {
		return math.Inf(-1)
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	cutoff := len(sorted) * (100 - percentile) / 100
	if cutoff >= len(sorted) {
		cutoff = len(sorted) - 1
	}
	if cutoff < 0 {
		cutoff = 0
	}
	return sorted[cutoff]
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
