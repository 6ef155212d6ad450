package app

import (
	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
)

// NewLogger builds the process logger from the log section and names it
// after the binary.
func NewLogger(cfg config.LogConfig, name string) (logging.Logger, error) {
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      cfg.Format,
		OutputPaths: cfg.OutputPaths,
	})
	if err != nil {
		return nil, err
	}
	if name != "" {
		logger = logger.Named(name)
	}
	return logger, nil
}
