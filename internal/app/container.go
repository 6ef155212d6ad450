// Package app is the composition root. It turns a Config into connected
// stores and the three application services, and owns their shutdown.
package app

import (
	"context"
	"time"

	"github.com/turtacn/TrafficLaw-RAG/internal/application/drafting"
	"github.com/turtacn/TrafficLaw-RAG/internal/application/ingestion"
	"github.com/turtacn/TrafficLaw-RAG/internal/application/retrieval"
	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/casefile"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/chunk"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/draft"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/law"
	neo4jdriver "github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/database/neo4j"
	neo4jrepo "github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/database/neo4j/repositories"
	pgconn "github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/database/postgres"
	pgrepo "github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/database/postgres/repositories"
	redisclient "github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/database/redis"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/search/opensearch"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/storage/minio"
	"github.com/turtacn/TrafficLaw-RAG/internal/intelligence/llm"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// EventSource is stamped on every event this process publishes.
const EventSource = "tlrag"

const caseIDLockName = "case-id"

// Check probes one dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Container holds every long-lived collaborator of one process. Optional
// stores (redis, kafka, minio, postgres) are nil when disabled.
type Container struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	LLM      *llm.Client
	Embedder llm.BatchEmbedder
	Graph    *neo4jdriver.Driver
	Search   *opensearch.Client
	Index    *opensearch.Store
	Redis    *redisclient.Client
	Objects  *minio.Client
	Postgres *pgconn.Connection
	Producer *kafka.Producer

	Cases   casefile.Repository
	Laws    law.Repository
	Queries casefile.QueryRepository
	Runs    draft.RunRepository

	IndictmentParser *document.Parser
	UserInputParser  *document.Parser

	Ingestion *ingestion.Service
	Retrieval *retrieval.Service
	Drafting  *drafting.Service
}

// Build connects every configured store and assembles the services. On
// failure everything opened so far is closed again.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Container, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Container{Config: cfg, Logger: logger}
	if err := c.build(ctx); err != nil {
		c.Close(context.Background())
		return nil, err
	}
	logger.Info("Container ready",
		logging.Bool("redis", c.Redis != nil),
		logging.Bool("kafka", c.Producer != nil),
		logging.Bool("minio", c.Objects != nil),
		logging.Bool("postgres", c.Postgres != nil))
	return c, nil
}

func (c *Container) build(ctx context.Context) error {
	cfg := c.Config

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
			ConstLabels:          map[string]string{"version": config.Version},
		}, c.Logger)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "metrics collector")
		}
		c.Collector = collector
		c.Metrics = prometheus.NewAppMetrics(collector)
	}

	if err := c.buildStores(ctx); err != nil {
		return err
	}
	if err := c.buildIntelligence(); err != nil {
		return err
	}
	return c.buildServices()
}

func (c *Container) buildStores(ctx context.Context) error {
	cfg := c.Config

	graph, err := neo4jdriver.NewDriver(cfg.Neo4j, c.Logger.Named("neo4j"), c.Metrics)
	if err != nil {
		return err
	}
	c.Graph = graph
	if err := neo4jdriver.EnsureSchema(ctx, graph); err != nil {
		return err
	}
	c.Cases = neo4jrepo.NewNeo4jCaseRepo(graph, c.Logger)
	c.Laws = neo4jrepo.NewNeo4jLawRepo(graph, c.Logger)
	c.Queries = neo4jrepo.NewNeo4jQueryRepo(graph, c.Logger)

	search, err := opensearch.NewClient(cfg.OpenSearch, c.Logger.Named("opensearch"), c.Metrics)
	if err != nil {
		return err
	}
	c.Search = search
	c.Index = opensearch.NewStore(search, cfg.OpenSearch.BulkBatchSize, c.Logger)
	if err := c.Index.EnsureIndex(ctx, cfg.Embedding.Dimensions); err != nil {
		return err
	}

	if cfg.Redis.Enabled {
		if c.Redis, err = redisclient.NewClient(cfg.Redis, c.Logger.Named("redis")); err != nil {
			return err
		}
	}

	if cfg.MinIO.Enabled {
		if c.Objects, err = minio.NewClient(cfg.MinIO, c.Logger.Named("minio"), c.Metrics); err != nil {
			return err
		}
		if err := c.Objects.EnsureBucket(ctx); err != nil {
			return err
		}
	}

	if cfg.Postgres.Enabled {
		if c.Postgres, err = pgconn.NewConnection(cfg.Postgres, c.Logger.Named("postgres"), c.Metrics); err != nil {
			return err
		}
		if err := c.Postgres.RunMigrations(); err != nil {
			return err
		}
		c.Runs = pgrepo.NewPostgresDraftRunRepo(c.Postgres, c.Logger)
	}

	if cfg.Kafka.Enabled {
		if c.Producer, err = kafka.NewProducer(cfg.Kafka, EventSource, c.Logger.Named("kafka"), c.Metrics); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) buildIntelligence() error {
	cfg := c.Config

	client, err := llm.NewClient(cfg.LLM, c.Logger.Named("llm"), c.Metrics)
	if err != nil {
		return err
	}
	c.LLM = client

	embedder, err := llm.NewEmbedder(cfg.Embedding, cfg.LLM, c.Logger.Named("embedder"), c.Metrics)
	if err != nil {
		return err
	}
	c.Embedder = embedder
	if c.Redis != nil {
		cache := redisclient.NewEmbeddingCache(c.Redis, cfg.Embedding.CacheTTL, c.Logger)
		c.Embedder = llm.NewCachingEmbedder(embedder, cache, embedder.Model(), c.Logger.Named("embedder"), c.Metrics)
	}
	return nil
}

func (c *Container) buildServices() error {
	cfg := c.Config

	chunker, err := chunk.NewSemanticChunker(chunk.ChunkerConfig{
		Percentile:    cfg.Chunking.Percentile,
		MinChunkChars: cfg.Chunking.MinChunkChars,
		MaxChunkChars: cfg.Chunking.MaxChunkChars,
		Joiner:        cfg.Chunking.Joiner,
	}, c.Embedder, chunk.NewSplitter(cfg.Chunking.Delimiters), c.Logger)
	if err != nil {
		return err
	}

	var recorder chunk.FallbackRecorder
	if c.Metrics != nil {
		recorder = c.Metrics
	}
	classifier := chunk.NewClassifier(c.LLM, ClassifierConfig(cfg.Classifier), c.Logger, recorder)
	caseTypes := casefile.NewTypeClassifier(c.LLM, c.Logger)

	c.IndictmentParser = document.NewIndictmentParser(cfg.Parser.IndictmentTolerance())
	c.UserInputParser = document.NewUserInputParser(cfg.Parser.UserInputTolerance())

	deps := ingestion.Deps{
		Chunker:          chunker,
		Classifier:       classifier,
		CaseTypes:        caseTypes,
		Embedder:         c.Embedder,
		Index:            c.Index,
		Cases:            c.Cases,
		Laws:             c.Laws,
		IndictmentParser: c.IndictmentParser,
		Logger:           c.Logger,
		Metrics:          c.Metrics,
	}
	if c.Redis != nil {
		deps.IDLock = redisclient.NewMutex(c.Redis, caseIDLockName, c.Logger,
			redisclient.WithLockTTL(time.Minute))
	}
	c.Ingestion = ingestion.NewService(deps)

	c.Retrieval = retrieval.NewService(c.Embedder, c.Index, c.Laws, c.Cases, cfg.Retrieval, c.Logger)

	sd := drafting.ServiceDeps{
		Parser:       c.UserInputParser,
		Queries:      c.Queries,
		CaseTypes:    caseTypes,
		Retriever:    c.Retrieval,
		Orchestrator: drafting.NewOrchestrator(c.LLM, cfg.Generation, c.Logger, c.Metrics),
		Logger:       c.Logger,
		Metrics:      c.Metrics,
	}
	if cfg.Generation.ReviewLaws {
		sd.Reviewer = drafting.NewLawReviewer(c.LLM, c.Laws, c.Logger)
	}
	if c.Objects != nil {
		sd.Archive = minio.NewDraftArchive(c.Objects, c.Logger)
	}
	if c.Runs != nil {
		sd.Runs = c.Runs
	}
	c.Drafting = drafting.NewService(sd)
	return nil
}

// ClassifierConfig maps the configured category names onto chunk types.
// Unknown names are skipped; an empty result falls back to the defaults.
func ClassifierConfig(cfg config.ClassifierConfig) chunk.ClassifierConfig {
	out := chunk.DefaultClassifierConfig()
	if t, ok := chunk.ParseType(cfg.DefaultCategory); ok {
		out.Default = t
	}
	var priority []chunk.Type
	for _, name := range cfg.Priority {
		if t, ok := chunk.ParseType(name); ok {
			priority = append(priority, t)
		}
	}
	if len(priority) > 0 {
		out.Priority = priority
	}
	return out
}

// NewIngestConsumer opens a consumer on the ingest topic. Kafka must be
// enabled.
func (c *Container) NewIngestConsumer() (*kafka.Consumer, error) {
	if !c.Config.Kafka.Enabled {
		return nil, errors.New(errors.ErrCodeValidation, "kafka is disabled")
	}
	return kafka.NewConsumer(c.Config.Kafka, c.Logger.Named("kafka"), c.Metrics)
}

// Checks lists a probe for every connected store.
func (c *Container) Checks() []Check {
	checks := []Check{
		{Name: "neo4j", Probe: c.Graph.HealthCheck},
		{Name: "opensearch", Probe: c.Search.HealthCheck},
	}
	if c.Redis != nil {
		checks = append(checks, Check{Name: "redis", Probe: c.Redis.HealthCheck})
	}
	if c.Objects != nil {
		checks = append(checks, Check{Name: "minio", Probe: c.Objects.HealthCheck})
	}
	if c.Postgres != nil {
		checks = append(checks, Check{Name: "postgres", Probe: c.Postgres.HealthCheck})
	}
	return checks
}

// Close releases every store in reverse order of construction.
func (c *Container) Close(ctx context.Context) {
	closeWith := func(name string, fn func() error) {
		if err := fn(); err != nil {
			c.Logger.Warn("Close failed", logging.String("component", name), logging.Err(err))
		}
	}
	if c.Producer != nil {
		closeWith("kafka", c.Producer.Close)
	}
	if c.Postgres != nil {
		closeWith("postgres", c.Postgres.Close)
	}
	if c.Objects != nil {
		closeWith("minio", c.Objects.Close)
	}
	if c.Redis != nil {
		closeWith("redis", c.Redis.Close)
	}
	if c.Graph != nil {
		closeWith("neo4j", func() error { return c.Graph.Close(ctx) })
	}
}
