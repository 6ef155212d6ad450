package chunk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	fn      func(text string) []float32
	err     error
	calls   int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = f.fn(t)
	}
	return out, nil
}

func newTestChunker(t *testing.T, cfg ChunkerConfig, emb Embedder) *SemanticChunker {
	t.Helper()
	c, err := NewSemanticChunker(cfg, emb, nil, nil)
	require.NoError(t, err)
	return c
}

func sentencesOf(texts ...string) []Sentence {
	out := make([]Sentence, len(texts))
	for i, t := range texts {
		out[i] = Sentence{Text: t, Position: i}
	}
	return out
}

func TestNewSemanticChunker_Validation(t *testing.T) {
	emb := &fakeEmbedder{}
	_, err := NewSemanticChunker(DefaultChunkerConfig(), nil, nil, nil)
	assert.Error(t, err)

	bad := DefaultChunkerConfig()
	bad.Percentile = 101
	_, err = NewSemanticChunker(bad, emb, nil, nil)
	assert.Error(t, err)

	bad = DefaultChunkerConfig()
	bad.MinChunkChars = 300
	_, err = NewSemanticChunker(bad, emb, nil, nil)
	assert.Error(t, err)
}

func TestChunk_ZeroAndOneSentence(t *testing.T) {
	emb := &fakeEmbedder{}
	c := newTestChunker(t, DefaultChunkerConfig(), emb)

	got, err := c.Chunk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Chunk(context.Background(), sentencesOf("只有一句"))
	require.NoError(t, err)
	assert.Equal(t, []string{"只有一句。"}, got)
	assert.Zero(t, emb.calls)
}

func TestChunk_SplitsAtTopicChange(t *testing.T) {
	topicA, topicB := []float32{1, 0}, []float32{0, 1}
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"a1": topicA, "a2": topicA, "a3": topicA, "b1": topicB, "b2": topicB,
	}}
	cfg := ChunkerConfig{Percentile: 70, MinChunkChars: 0, MaxChunkChars: 230, Joiner: "。"}
	c := newTestChunker(t, cfg, emb)

	got, err := c.Chunk(context.Background(), sentencesOf("a1", "a2", "a3", "b1", "b2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a1。a2。a3。", "b1。b2。"}, got)
	assert.Equal(t, 1, emb.calls, "sentences are embedded in one batch")
}

func TestChunk_MinCharsGatesSemanticSplit(t *testing.T) {
	topicA, topicB := []float32{1, 0}, []float32{0, 1}
	emb := &fakeEmbedder{vectors: map[string][]float32{"a1": topicA, "a2": topicA, "b1": topicB, "b2": topicB}}
	sentences := sentencesOf("a1", "a2", "b1", "b2")

	split := newTestChunker(t, ChunkerConfig{Percentile: 50, MinChunkChars: 0, MaxChunkChars: 230}, emb)
	got, err := split.Chunk(context.Background(), sentences)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1。a2。", "b1。b2。"}, got)

	gated := newTestChunker(t, ChunkerConfig{Percentile: 50, MinChunkChars: 100, MaxChunkChars: 230}, emb)
	got, err = gated.Chunk(context.Background(), sentences)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1。a2。b1。b2。"}, got)
}

func TestChunk_MaxCharsForcesSplit(t *testing.T) {
	same := func(string) []float32 { return []float32{1, 1} }
	cfg := ChunkerConfig{Percentile: 70, MinChunkChars: 0, MaxChunkChars: 25}
	c := newTestChunker(t, cfg, &fakeEmbedder{fn: same})

	s := strings.Repeat("字", 10)
	got, err := c.Chunk(context.Background(), sentencesOf(s, s, s, s, s))
	require.NoError(t, err)
	assert.Equal(t, []string{s + "。" + s + "。", s + "。" + s + "。", s + "。"}, got)
}

func TestChunk_OversizedSentenceKeptWhole(t *testing.T) {
	same := func(string) []float32 { return []float32{1} }
	cfg := ChunkerConfig{Percentile: 50, MinChunkChars: 0, MaxChunkChars: 3}
	c := newTestChunker(t, cfg, &fakeEmbedder{fn: same})

	got, err := c.Chunk(context.Background(), sentencesOf("很長很長的句子", "短"))
	require.NoError(t, err)
	assert.Equal(t, []string{"很長很長的句子。", "短。"}, got)
}

func TestChunk_EmbeddingFailureAborts(t *testing.T) {
	c := newTestChunker(t, DefaultChunkerConfig(), &fakeEmbedder{err: errors.New("connection refused")})

	got, err := c.Chunk(context.Background(), sentencesOf("甲", "乙"))
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, pkgerrors.IsExternal(err))
}

func TestChunk_DimensionMismatch(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"甲": {1, 0}, "乙": {1, 0, 0}}}
	c := newTestChunker(t, DefaultChunkerConfig(), emb)

	_, err := c.Chunk(context.Background(), sentencesOf("甲", "乙"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeEmbeddingShape))
}

func TestChunk_ContentPreservedForEveryPercentile(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vec := func(string) []float32 {
		return []float32{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}
	}

	for n := 2; n <= 12; n += 5 {
		texts := make([]string, n)
		for i := range texts {
			texts[i] = fmt.Sprintf("第%d句%s", i, strings.Repeat("文", rng.Intn(40)+1))
		}
		want := strings.Join(texts, "")

		for p := 0; p <= 100; p += 10 {
			cfg := ChunkerConfig{Percentile: p, MinChunkChars: 20, MaxChunkChars: 60}
			c := newTestChunker(t, cfg, &fakeEmbedder{fn: vec})

			got, err := c.Chunk(context.Background(), sentencesOf(texts...))
			require.NoError(t, err)
			assert.Equal(t, want, strings.ReplaceAll(strings.Join(got, ""), "。", ""), "n=%d p=%d", n, p)

			for _, ch := range got {
				body := strings.TrimSuffix(ch, "。")
				if !strings.Contains(body, "。") {
					continue // single sentence may exceed the bound
				}
				assert.LessOrEqual(t, utf8.RuneCountInString(strings.ReplaceAll(body, "。", "")), 60)
			}
		}
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	vec := func(s string) []float32 { return []float32{float32(len(s)), 1} }
	c := newTestChunker(t, ChunkerConfig{Percentile: 70, MinChunkChars: 5, MaxChunkChars: 40}, &fakeEmbedder{fn: vec})

	text := "被告駕駛自小客車，行經路口未減速。撞擊原告機車，原告倒地受傷，送醫急救。"
	first, err := c.ChunkText(context.Background(), text)
	require.NoError(t, err)
	second, err := c.ChunkText(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestThreshold(t *testing.T) {
	scores := []float64{0.9, 0.1, 0.5, 0.7, 0.3}
	assert.Equal(t, 0.3, Threshold(scores, 70))  // cutoff 1
	assert.Equal(t, 0.1, Threshold(scores, 100)) // cutoff 0
	assert.Equal(t, 0.9, Threshold(scores, 0))   // clamped
	assert.True(t, math.IsInf(Threshold(nil, 50), -1))
	assert.Equal(t, []float64{0.9, 0.1, 0.5, 0.7, 0.3}, scores, "input must not be reordered")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 1}))
}

func TestAdjacentSimilarities(t *testing.T) {
	in := []EmbeddedSentence{
		{Embedding: []float32{1, 0}}, {Embedding: []float32{1, 0}}, {Embedding: []float32{0, 1}},
	}
	got := AdjacentSimilarities(in)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[1].Index)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.InDelta(t, 0.0, got[1].Score, 1e-9)
	assert.Nil(t, AdjacentSimilarities(in[:1]))
}
