package llm

import (
	"context"
	"math/rand"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

const maxBackoff = 30 * time.Second

// newOpenAIClient builds a go-openai client for an arbitrary base URL.
func newOpenAIClient(baseURL, apiKey string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// backoff returns base*2^(attempt-1) with up to 25% jitter, capped at 30s.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	if attempt > 20 {
		attempt = 20
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client generates text through the chat completions API.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
	logger      logging.Logger
	metrics     *prometheus.AppMetrics
}

// NewClient builds a Client from cfg. metrics may be nil.
func NewClient(cfg config.LLMConfig, logger logging.Logger, metrics *prometheus.AppMetrics) (*Client, error) {
	if cfg.Model == "" {
		return nil, pkgerrors.InvalidParam("llm model is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		api:         newOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryBackoff,
		logger:      logger.Named("llm"),
		metrics:     metrics,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends prompt as a single user message, retrying transient
// failures up to the configured budget.
func (c *Client) Complete(ctx context.Context, prompt string) Result {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var res Result
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff(c.retryDelay, attempt)); err != nil {
				res.Failure = classify(err, pkgerrors.ErrCodeLLMUnavailable)
				return res
			}
		}
		res.Attempts = attempt + 1

		start := time.Now()
		resp, err := c.api.CreateChatCompletion(ctx, req)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			res.Failure = classify(err, pkgerrors.ErrCodeLLMUnavailable)
		case len(resp.Choices) == 0:
			res.Failure = emptyFailure(pkgerrors.ErrCodeLLMBadResponse, "no completion choices returned")
		default:
			res.Text = resp.Choices[0].Message.Content
			res.FinishReason = string(resp.Choices[0].FinishReason)
			res.Failure = nil
		}
		c.metrics.RecordLLMCall(c.model, "generate", res.Failure == nil, elapsed)

		if res.Failure == nil {
			c.logger.Debug("completion received",
				logging.Int("attempt", res.Attempts),
				logging.Int("chars", len([]rune(res.Text))),
				logging.Duration("elapsed", elapsed))
			return res
		}
		c.logger.Warn("completion attempt failed",
			logging.Int("attempt", res.Attempts),
			logging.Int("status", res.Failure.StatusCode),
			logging.String("reason", res.Failure.Message))
		if !res.Failure.Retryable {
			return res
		}
	}
	return res
}

// Generate returns the completion text or an ExternalServiceError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	res := c.Complete(ctx, prompt)
	if !res.OK() {
		return "", res.Err()
	}
	return res.Text, nil
}
