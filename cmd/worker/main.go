// Command worker consumes queued ingest requests from Kafka, runs them
// through the ingestion pipeline and publishes the outcome events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/TrafficLaw-RAG/internal/app"
	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/interfaces/consumer"
	httpserver "github.com/turtacn/TrafficLaw-RAG/internal/interfaces/http"
	"github.com/turtacn/TrafficLaw-RAG/internal/interfaces/http/handlers"
)

const (
	buildTimeout      = 2 * time.Minute
	defaultHealthPort = 8081
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: TLRAG_ environment only)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	consumers := flag.Int("consumers", 1, "number of consumers in the group")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the health and metrics endpoints")
	flag.Parse()

	cfg, err := config.LoadWithEnvFiles(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Kafka.Enabled {
		fmt.Fprintln(os.Stderr, "kafka.enabled must be true to run the worker")
		os.Exit(1)
	}
	if *consumers < 1 {
		*consumers = 1
	}

	logger, err := app.NewLogger(cfg.Log, "worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger, *consumers, *healthPort); err != nil {
		logger.Error("Worker failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger, consumers, healthPort int) error {
	buildCtx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	c, err := app.Build(buildCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	var publisher consumer.Publisher
	if c.Producer != nil {
		publisher = c.Producer
	}
	handler := consumer.NewIngestHandler(c.Ingestion, publisher, cfg.Kafka.EventsTopic, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := newHealthServer(c, healthPort)
	go func() {
		if err := health.ListenAndServe(); err != nil {
			logger.Error("Health server failed", logging.Err(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < consumers; i++ {
		kc, err := c.NewIngestConsumer()
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			defer kc.Close()
			return kc.Run(gctx, handler.Handle)
		})
	}

	logger.Info("Starting TrafficLaw-RAG worker",
		logging.String("version", config.Version),
		logging.String("topic", cfg.Kafka.IngestTopic),
		logging.Int("consumers", consumers))

	err = g.Wait()
	if shutdownErr := health.Shutdown(context.Background()); shutdownErr != nil {
		logger.Warn("Health server shutdown failed", logging.Err(shutdownErr))
	}
	logger.Info("Worker stopped")
	return err
}

func newHealthServer(c *app.Container, port int) *httpserver.Server {
	checkers := make([]handlers.HealthChecker, 0, 5)
	for _, chk := range c.Checks() {
		checkers = append(checkers, handlers.CheckFunc(chk.Name, chk.Probe))
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(config.Version, c.Metrics, checkers...),
		MetricsCollector: c.Collector,
		MetricsPath:      c.Config.Metrics.Path,
	})
	return httpserver.NewServer(config.ServerConfig{
		Port:            port,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}, router, c.Logger.Named("health"))
}
