// Command apiserver serves the drafting, ingestion, search and validation
// REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/TrafficLaw-RAG/internal/app"
	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/TrafficLaw-RAG/internal/interfaces/http"
	"github.com/turtacn/TrafficLaw-RAG/internal/interfaces/http/handlers"
	"github.com/turtacn/TrafficLaw-RAG/internal/interfaces/http/middleware"
)

const buildTimeout = 2 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: TLRAG_ environment only)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadWithEnvFiles(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := app.NewLogger(cfg.Log, "apiserver")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("API server failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	buildCtx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	c, err := app.Build(buildCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	server := httpserver.NewServer(cfg.Server, newRouter(c), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	logger.Info("Starting TrafficLaw-RAG API server",
		logging.String("version", config.Version),
		logging.String("addr", server.Addr()),
		logging.Bool("async_ingest", c.Producer != nil))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", logging.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}
	return server.Shutdown(context.Background())
}

func newRouter(c *app.Container) http.Handler {
	cfg := c.Config
	maxBody := cfg.Server.MaxBodySize

	checkers := make([]handlers.HealthChecker, 0, 5)
	for _, chk := range c.Checks() {
		checkers = append(checkers, handlers.CheckFunc(chk.Name, chk.Probe))
	}

	var publisher handlers.Publisher
	if c.Producer != nil {
		publisher = c.Producer
	}

	return httpserver.NewRouter(httpserver.RouterConfig{
		DraftHandler:    handlers.NewDraftHandler(c.Drafting, named(c, "draft"), maxBody),
		IngestHandler:   handlers.NewIngestHandler(c.Ingestion, publisher, cfg.Kafka.IngestTopic, named(c, "ingest"), maxBody),
		SearchHandler:   handlers.NewSearchHandler(c.Retrieval, named(c, "search"), maxBody),
		ValidateHandler: handlers.NewValidateHandler(c.IndictmentParser, c.UserInputParser, named(c, "validate"), maxBody),
		HealthHandler:   handlers.NewHealthHandler(config.Version, c.Metrics, checkers...),

		Logger:              c.Logger.Named("http"),
		Metrics:             c.Metrics,
		MetricsCollector:    c.Collector,
		MetricsPath:         cfg.Metrics.Path,
		Logging:             middleware.DefaultLoggingConfig(),
		MaxConcurrentDrafts: cfg.Server.MaxConcurrentDrafts,
	})
}

func named(c *app.Container, name string) logging.Logger {
	return c.Logger.Named(name)
}
