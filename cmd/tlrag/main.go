// Command tlrag is the command line client: ingestion, drafting, search,
// run history and offline format validation.
package main

import (
	"context"
	"os"

	"github.com/turtacn/TrafficLaw-RAG/internal/app"
	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(connect); err != nil {
		os.Exit(1)
	}
}

// connect builds the full container. Kafka is never needed by the CLI.
func connect(ctx context.Context, cfg *config.Config, logger logging.Logger) (*cli.Services, error) {
	cfg.Kafka.Enabled = false
	cfg.Metrics.Enabled = false

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &cli.Services{
		Drafter:   c.Drafting,
		Ingester:  c.Ingestion,
		Retriever: c.Retrieval,
		Close:     c.Close,
	}, nil
}
