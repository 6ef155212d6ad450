package config

import "time"

const (
	DefaultServerPort = 8080
	// DefaultMaxConcurrentDrafts matches a single local LLM backend.
	DefaultMaxConcurrentDrafts = 4

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultLLMBaseURL  = "http://localhost:11434/v1"
	DefaultLLMModel    = "kenneth85/llama-3-taiwan:8b-instruct-dpo"
	DefaultLLMTimeout  = 120 * time.Second
	DefaultLLMRetries  = 3
	DefaultLLMBackoff  = 2 * time.Second
	DefaultEmbedModel  = "kenneth85/llama-3-taiwan:8b-instruct-dpo"
	DefaultEmbedBatch  = 32
	DefaultEmbedTTL    = 30 * 24 * time.Hour
	DefaultPercentile  = 70
	DefaultMinChunk    = 50
	DefaultMaxChunk    = 230
	DefaultDelimiters  = "，。"
	DefaultChunkJoiner = "。"

	DefaultClassifierCategory = "fact"

	DefaultIndictmentLeadTolerance = 3
	DefaultUserInputLeadTolerance  = 10

	DefaultFactsMaxAttempts        = 5
	DefaultCompensationMaxAttempts = 5
	DefaultCalcTagsMaxAttempts     = 3
	DefaultSummaryMaxAttempts      = 5

	DefaultTopK       = 5
	DefaultSearchType = "full"

	DefaultNeo4jURI       = "bolt://localhost:7687"
	DefaultOpenSearchAddr = "https://localhost:9200"
	DefaultIndexName      = "ts_text_embeddings"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "tlrag:"

	DefaultKafkaBroker      = "localhost:9092"
	DefaultKafkaGroupID     = "tlrag-ingest"
	DefaultKafkaIngestTopic = "tlrag.case.ingest"
	DefaultKafkaEventsTopic = "tlrag.case.events"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "tlrag-drafts"

	DefaultPostgresHost = "localhost"
	DefaultPostgresPort = 5432
	DefaultPostgresDB   = "tlrag"

	DefaultMetricsNamespace = "tlrag"
	DefaultMetricsPath      = "/metrics"
)

// DefaultClassifierPriority is the order in which category keywords are
// matched against a classification reply.
var DefaultClassifierPriority = []string{"fact", "law", "compensation", "injury"}

// NewDefaultConfig returns a Config with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields in cfg. Explicitly set fields win.
// It runs after unmarshalling and before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// drafting runs several LLM round trips inside one request
		cfg.Server.WriteTimeout = 10 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 1 << 20
	}
	if cfg.Server.MaxConcurrentDrafts == 0 {
		cfg.Server.MaxConcurrentDrafts = DefaultMaxConcurrentDrafts
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = DefaultLLMBaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultLLMTimeout
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = DefaultLLMRetries
	}
	if cfg.LLM.RetryBackoff == 0 {
		cfg.LLM.RetryBackoff = DefaultLLMBackoff
	}

	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbedModel
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = DefaultEmbedBatch
	}
	if cfg.Embedding.CacheTTL == 0 {
		cfg.Embedding.CacheTTL = DefaultEmbedTTL
	}

	// Percentile 0 is a legal explicit value, so only the all-zero section is
	// treated as unset.
	if cfg.Chunking == (ChunkingConfig{}) {
		cfg.Chunking.Percentile = DefaultPercentile
	}
	if cfg.Chunking.MinChunkChars == 0 {
		cfg.Chunking.MinChunkChars = DefaultMinChunk
	}
	if cfg.Chunking.MaxChunkChars == 0 {
		cfg.Chunking.MaxChunkChars = DefaultMaxChunk
	}
	if cfg.Chunking.Delimiters == "" {
		cfg.Chunking.Delimiters = DefaultDelimiters
	}
	if cfg.Chunking.Joiner == "" {
		cfg.Chunking.Joiner = DefaultChunkJoiner
	}

	if cfg.Classifier.DefaultCategory == "" {
		cfg.Classifier.DefaultCategory = DefaultClassifierCategory
	}
	if len(cfg.Classifier.Priority) == 0 {
		cfg.Classifier.Priority = append([]string(nil), DefaultClassifierPriority...)
	}

	if cfg.Parser.IndictmentLeadTolerance == nil {
		v := DefaultIndictmentLeadTolerance
		cfg.Parser.IndictmentLeadTolerance = &v
	}
	if cfg.Parser.UserInputLeadTolerance == nil {
		v := DefaultUserInputLeadTolerance
		cfg.Parser.UserInputLeadTolerance = &v
	}

	if cfg.Generation.FactsMaxAttempts == 0 {
		cfg.Generation.FactsMaxAttempts = DefaultFactsMaxAttempts
	}
	if cfg.Generation.CompensationMaxAttempts == 0 {
		cfg.Generation.CompensationMaxAttempts = DefaultCompensationMaxAttempts
	}
	if cfg.Generation.CalcTagsMaxAttempts == 0 {
		cfg.Generation.CalcTagsMaxAttempts = DefaultCalcTagsMaxAttempts
	}
	if cfg.Generation.SummaryMaxAttempts == 0 {
		cfg.Generation.SummaryMaxAttempts = DefaultSummaryMaxAttempts
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.SearchType == "" {
		cfg.Retrieval.SearchType = DefaultSearchType
	}

	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = DefaultNeo4jURI
	}
	if cfg.Neo4j.MaxConnectionPoolSize == 0 {
		cfg.Neo4j.MaxConnectionPoolSize = 50
	}
	if cfg.Neo4j.ConnectionTimeout == 0 {
		cfg.Neo4j.ConnectionTimeout = 30 * time.Second
	}

	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddr}
	}
	if cfg.OpenSearch.Index == "" {
		cfg.OpenSearch.Index = DefaultIndexName
	}
	if cfg.OpenSearch.BulkBatchSize == 0 {
		cfg.OpenSearch.BulkBatchSize = 500
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.IngestTopic == "" {
		cfg.Kafka.IngestTopic = DefaultKafkaIngestTopic
	}
	if cfg.Kafka.EventsTopic == "" {
		cfg.Kafka.EventsTopic = DefaultKafkaEventsTopic
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultPostgresHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Postgres.DBName == "" {
		cfg.Postgres.DBName = DefaultPostgresDB
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = 10
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
