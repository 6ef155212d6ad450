package chunk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
)

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type countingRecorder struct{ reasons []string }

func (r *countingRecorder) RecordClassifierFallback(reason string) {
	r.reasons = append(r.reasons, reason)
}

func TestClassifier_KeywordMatching(t *testing.T) {
	cases := map[string]Type{
		"fact":                       TypeFact,
		"  Compensation ":            TypeCompensation,
		"'injuries'":                 TypeInjury,
		"injury":                     TypeInjury,
		"LAW":                        TypeLaw,
		"fact or compensation":       TypeFact,
		"law, then compensation":     TypeLaw,
		"compensation due to injury": TypeCompensation,
	}
	for reply, want := range cases {
		gen := &mockGenerator{}
		gen.On("Generate", mock.Anything, mock.Anything).Return(reply, nil)
		c := NewClassifier(gen, DefaultClassifierConfig(), nil, nil)
		assert.Equal(t, want, c.Classify(context.Background(), "text"), reply)
	}
}

func TestClassifier_CustomPriority(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("fact and injury", nil)
	c := NewClassifier(gen, ClassifierConfig{Default: TypeFact, Priority: []Type{TypeInjury, TypeFact}}, nil, nil)
	assert.Equal(t, TypeInjury, c.Classify(context.Background(), "x"))
}

func TestClassifier_FallbackIsLoggedAndCounted(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rec := &countingRecorder{}

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("我不確定", nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("status 500")).Once()

	c := NewClassifier(gen, DefaultClassifierConfig(), logging.NewLoggerFromCore(core), rec)
	assert.Equal(t, TypeFact, c.Classify(context.Background(), "模糊"))
	assert.Equal(t, TypeFact, c.Classify(context.Background(), "失敗"))

	assert.Equal(t, []string{"no_keyword", "call_failed"}, rec.reasons)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "no_keyword", logs.All()[0].ContextMap()["reason"])
	gen.AssertExpectations(t)
}

func TestClassifier_ConfiguredDefault(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("???", nil)
	c := NewClassifier(gen, ClassifierConfig{Default: TypeCompensation}, nil, nil)
	assert.Equal(t, TypeCompensation, c.Classify(context.Background(), "x"))
}

func TestClassifier_Idempotent(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("injuries", nil)
	c := NewClassifier(gen, DefaultClassifierConfig(), nil, nil)

	first := c.Classify(context.Background(), "原告受有骨折")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(context.Background(), "原告受有骨折"))
	}
}

func TestClassificationPrompt_EmbedsText(t *testing.T) {
	assert.Contains(t, ClassificationPrompt("原告受傷"), "Text: 原告受傷")
}
