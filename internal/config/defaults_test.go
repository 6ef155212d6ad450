package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, 70, cfg.Chunking.Percentile)
	assert.Equal(t, 50, cfg.Chunking.MinChunkChars)
	assert.Equal(t, 230, cfg.Chunking.MaxChunkChars)
	assert.Equal(t, "，。", cfg.Chunking.Delimiters)
	assert.Equal(t, "。", cfg.Chunking.Joiner)
	assert.Equal(t, 3, cfg.Parser.IndictmentTolerance())
	assert.Equal(t, 10, cfg.Parser.UserInputTolerance())
	assert.Equal(t, 5, cfg.Generation.FactsMaxAttempts)
	assert.Equal(t, 5, cfg.Generation.CompensationMaxAttempts)
	assert.Equal(t, 3, cfg.Generation.CalcTagsMaxAttempts)
	assert.Equal(t, 5, cfg.Generation.SummaryMaxAttempts)
	assert.Equal(t, []string{"fact", "law", "compensation", "injury"}, cfg.Classifier.Priority)
	assert.Equal(t, "fact", cfg.Classifier.DefaultCategory)
	assert.Equal(t, DefaultIndexName, cfg.OpenSearch.Index)
	assert.Equal(t, cfg.LLM.BaseURL, cfg.Embedding.BaseURL)
	assert.Equal(t, 0, cfg.Retrieval.LawThreshold)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 9999, WriteTimeout: time.Minute},
		Chunking: ChunkingConfig{Percentile: 0, MaxChunkChars: 100},
		LLM:      LLMConfig{BaseURL: "http://llm:8000/v1"},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 0, cfg.Chunking.Percentile, "explicit zero percentile is kept when the section is set")
	assert.Equal(t, 100, cfg.Chunking.MaxChunkChars)
	assert.Equal(t, "http://llm:8000/v1", cfg.Embedding.BaseURL)
}

func TestApplyDefaults_ZeroLeadToleranceIsKept(t *testing.T) {
	zero := 0
	cfg := &Config{Parser: ParserConfig{IndictmentLeadTolerance: &zero}}
	ApplyDefaults(cfg)

	assert.Equal(t, 0, cfg.Parser.IndictmentTolerance())
	assert.Equal(t, DefaultUserInputLeadTolerance, cfg.Parser.UserInputTolerance())
	assert.Equal(t, DefaultIndictmentLeadTolerance, ParserConfig{}.IndictmentTolerance())
}

func TestApplyDefaults_PriorityIsCopied(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Classifier.Priority[0] = "mutated"
	assert.Equal(t, "fact", DefaultClassifierPriority[0])
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
