package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

var ErrConnectionFailed = errors.New(errors.ErrCodeSearchIndexError, "opensearch connection failed")

// Client manages the OpenSearch connection for one index.
type Client struct {
	client  *opensearch.Client
	index   string
	logger  logging.Logger
	metrics *prometheus.AppMetrics
	healthy atomic.Bool
}

// NewClient connects and pings the cluster. metrics may be nil.
func NewClient(cfg config.OpenSearchConfig, logger logging.Logger, metrics *prometheus.AppMetrics) (*Client, error) {
	transport := &http.Transport{MaxIdleConnsPerHost: 10}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		MaxRetries:    3,
		RetryBackoff:  func(i int) time.Duration { return time.Duration(i) * 100 * time.Millisecond },
		Transport:     transport,
		RetryOnStatus: []int{502, 503, 504, 429},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchIndexError, "failed to create opensearch client")
	}

	c := newClient(client, cfg.Index, logger, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		return nil, ErrConnectionFailed.WithCause(err)
	}

	logger.Info("Connected to OpenSearch", logging.Strings("addresses", cfg.Addresses), logging.String("index", cfg.Index))
	return c, nil
}

func newClient(client *opensearch.Client, index string, logger logging.Logger, metrics *prometheus.AppMetrics) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{client: client, index: index, logger: logger, metrics: metrics}
}

func (c *Client) Index() string { return c.index }

// Ping checks the connection to OpenSearch.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		c.setHealthy(false)
		c.logger.Warn("OpenSearch ping failed", logging.Err(err))
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		c.setHealthy(false)
		c.logger.Warn("OpenSearch ping returned error status", logging.Int("status", resp.StatusCode))
		return errors.Newf(errors.ErrCodeSearchIndexError, "ping returned status %d", resp.StatusCode)
	}

	c.setHealthy(true)
	return nil
}

// HealthCheck satisfies the readiness probe.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndexError, "opensearch unreachable")
	}
	return nil
}

func (c *Client) IsHealthy() bool { return c.healthy.Load() }

func (c *Client) setHealthy(ok bool) {
	c.healthy.Store(ok)
	c.metrics.SetHealth("opensearch", ok)
}

// do runs req and records its latency under operation.
func (c *Client) do(ctx context.Context, operation string, req opensearchapi.Request) (*opensearchapi.Response, error) {
	start := time.Now()
	resp, err := req.Do(ctx, c.client)
	if err == nil && resp.IsError() && resp.StatusCode != http.StatusNotFound {
		c.metrics.RecordStoreOp("opensearch", operation, time.Since(start), errors.New(errors.ErrCodeSearchIndexError, resp.Status()))
	} else {
		c.metrics.RecordStoreOp("opensearch", operation, time.Since(start), err)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeSearchIndexError, "opensearch %s request failed", operation)
	}
	return resp, nil
}
