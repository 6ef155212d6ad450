// Package config defines the configuration structures for TrafficLaw-RAG.
// No I/O lives in this file, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP API tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`

	// MaxConcurrentDrafts bounds in-flight drafting requests; extra
	// requests wait for a slot.
	MaxConcurrentDrafts int `mapstructure:"max_concurrent_drafts"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // debug | info | warn | error
	Format      string   `mapstructure:"format"` // json | console
	OutputPaths []string `mapstructure:"output_paths"`
}

// LLMConfig configures the OpenAI-compatible text-generation endpoint.
// Ollama exposes one under /v1.
type LLMConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Temperature  float32       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// EmbeddingConfig configures the embedding endpoint and its cache.
type EmbeddingConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	BatchSize  int           `mapstructure:"batch_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// ChunkingConfig configures sentence splitting and semantic chunking.
type ChunkingConfig struct {
	// Percentile is the share of adjacent links kept intact; the weakest
	// (100-Percentile)% become candidate boundaries.
	Percentile    int    `mapstructure:"percentile"`
	MinChunkChars int    `mapstructure:"min_chunk_chars"`
	MaxChunkChars int    `mapstructure:"max_chunk_chars"`
	Delimiters    string `mapstructure:"delimiters"`
	Joiner        string `mapstructure:"joiner"`
}

// ClassifierConfig configures chunk classification.
type ClassifierConfig struct {
	DefaultCategory string   `mapstructure:"default_category"`
	Priority        []string `mapstructure:"priority"`
}

// ParserConfig configures the document structure parser layouts. An unset
// tolerance takes the default; an explicit 0 requires the first marker at
// the very start of the text.
type ParserConfig struct {
	IndictmentLeadTolerance *int `mapstructure:"indictment_lead_tolerance"`
	UserInputLeadTolerance  *int `mapstructure:"user_input_lead_tolerance"`
}

// IndictmentTolerance returns the indictment lead tolerance in runes.
func (p ParserConfig) IndictmentTolerance() int {
	return intOr(p.IndictmentLeadTolerance, DefaultIndictmentLeadTolerance)
}

// UserInputTolerance returns the user input lead tolerance in runes.
func (p ParserConfig) UserInputTolerance() int {
	return intOr(p.UserInputLeadTolerance, DefaultUserInputLeadTolerance)
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// GenerationConfig holds the per-stage retry budgets of the drafting
// state machine.
type GenerationConfig struct {
	FactsMaxAttempts        int `mapstructure:"facts_max_attempts"`
	CompensationMaxAttempts int `mapstructure:"compensation_max_attempts"`
	CalcTagsMaxAttempts     int `mapstructure:"calc_tags_max_attempts"`
	SummaryMaxAttempts      int `mapstructure:"summary_max_attempts"`
	// ReviewLaws cross-checks voted laws against keyword suggestions
	// before drafting.
	ReviewLaws bool `mapstructure:"review_laws"`
}

// RetrievalConfig configures similar-case retrieval.
type RetrievalConfig struct {
	TopK       int    `mapstructure:"top_k"`
	SearchType string `mapstructure:"search_type"` // full | fact
	// LawThreshold is the minimum citation count. Zero derives it from TopK.
	LawThreshold int `mapstructure:"law_threshold"`
}

// Neo4jConfig holds graph-store connection parameters.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	Database              string        `mapstructure:"database"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
}

// OpenSearchConfig holds search-index connection parameters.
type OpenSearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	Index              string   `mapstructure:"index"`
	BulkBatchSize      int      `mapstructure:"bulk_batch_size"`
}

// RedisConfig holds embedding-cache and lock connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	Enabled      bool          `mapstructure:"enabled"`
}

// KafkaConfig holds ingestion-event broker parameters.
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	GroupID     string   `mapstructure:"group_id"`
	IngestTopic string   `mapstructure:"ingest_topic"`
	EventsTopic string   `mapstructure:"events_topic"`
	Enabled     bool     `mapstructure:"enabled"`
}

// MinIOConfig holds draft-archive object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Enabled   bool   `mapstructure:"enabled"`
}

// PostgresConfig holds draft-run history store parameters.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	Enabled  bool   `mapstructure:"enabled"`
}

// DSN renders the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Parser     ParserConfig     `mapstructure:"parser"`
	Generation GenerationConfig `mapstructure:"generation"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// Validate performs semantic validation of a fully-populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.Server.MaxConcurrentDrafts < 1 {
		return fmt.Errorf("config: server.max_concurrent_drafts must be >= 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.LLM.BaseURL == "" || c.LLM.Model == "" {
		return fmt.Errorf("config: llm.base_url and llm.model are required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("config: embedding.model is required")
	}
	if c.Embedding.BatchSize < 1 {
		return fmt.Errorf("config: embedding.batch_size must be >= 1, got %d", c.Embedding.BatchSize)
	}

	ch := c.Chunking
	if ch.Percentile < 0 || ch.Percentile > 100 {
		return fmt.Errorf("config: chunking.percentile %d is out of range [0, 100]", ch.Percentile)
	}
	if ch.MaxChunkChars < 1 {
		return fmt.Errorf("config: chunking.max_chunk_chars must be >= 1, got %d", ch.MaxChunkChars)
	}
	if ch.MinChunkChars < 0 || ch.MinChunkChars > ch.MaxChunkChars {
		return fmt.Errorf("config: chunking.min_chunk_chars %d must be within [0, max_chunk_chars=%d]",
			ch.MinChunkChars, ch.MaxChunkChars)
	}
	if ch.Delimiters == "" {
		return fmt.Errorf("config: chunking.delimiters must not be empty")
	}

	if c.Parser.IndictmentTolerance() < 0 || c.Parser.UserInputTolerance() < 0 {
		return fmt.Errorf("config: parser lead tolerances must be >= 0")
	}

	g := c.Generation
	for name, n := range map[string]int{
		"facts_max_attempts":        g.FactsMaxAttempts,
		"compensation_max_attempts": g.CompensationMaxAttempts,
		"calc_tags_max_attempts":    g.CalcTagsMaxAttempts,
		"summary_max_attempts":      g.SummaryMaxAttempts,
	} {
		if n < 1 {
			return fmt.Errorf("config: generation.%s must be >= 1, got %d", name, n)
		}
	}

	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("config: retrieval.top_k must be >= 1, got %d", c.Retrieval.TopK)
	}
	switch c.Retrieval.SearchType {
	case "full", "fact":
	default:
		return fmt.Errorf("config: retrieval.search_type %q is invalid; expected full|fact", c.Retrieval.SearchType)
	}
	if c.Retrieval.LawThreshold < 0 {
		return fmt.Errorf("config: retrieval.law_threshold must be >= 0, got %d", c.Retrieval.LawThreshold)
	}

	if c.Neo4j.URI == "" {
		return fmt.Errorf("config: neo4j.uri is required")
	}
	if len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses must contain at least one address")
	}
	if c.OpenSearch.Index == "" {
		return fmt.Errorf("config: opensearch.index is required")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" || c.Kafka.IngestTopic == "" {
			return fmt.Errorf("config: kafka.group_id and kafka.ingest_topic are required")
		}
	}
	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return fmt.Errorf("config: minio.endpoint and minio.bucket are required when minio is enabled")
	}
	if c.Postgres.Enabled && (c.Postgres.Host == "" || c.Postgres.DBName == "") {
		return fmt.Errorf("config: postgres.host and postgres.db_name are required when postgres is enabled")
	}

	return nil
}
