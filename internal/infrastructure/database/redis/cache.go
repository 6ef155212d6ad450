package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// EmbeddingCache stores sentence vectors under
// <prefix>emb:<model>:<sha256(text)>. Identical concurrent batch reads share
// one MGET.
type EmbeddingCache struct {
	client *Client
	ttl    time.Duration
	logger logging.Logger
	group  singleflight.Group
}

func NewEmbeddingCache(client *Client, ttl time.Duration, log logging.Logger) *EmbeddingCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &EmbeddingCache{client: client, ttl: ttl, logger: log}
}

func (c *EmbeddingCache) key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.client.Key("emb", model, hex.EncodeToString(sum[:]))
}

func (c *EmbeddingCache) keys(model string, texts []string) []string {
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(model, t)
	}
	return keys
}

// GetMany returns vectors aligned with texts; misses and undecodable entries
// are nil.
func (c *EmbeddingCache) GetMany(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.client.isClosed() {
		return nil, ErrClientClosed
	}

	keys := c.keys(model, texts)
	v, err, _ := c.group.Do(strings.Join(keys, ","), func() (any, error) {
		return c.client.rdb.MGet(ctx, keys...).Result()
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read embeddings from cache")
	}

	raw := v.([]any)
	out := make([][]float32, len(texts))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil {
			c.logger.Warn("Dropping undecodable cached embedding", logging.String("key", keys[i]), logging.Err(err))
			continue
		}
		out[i] = vec
	}
	return out, nil
}

// SetMany writes all vectors in one pipeline.
func (c *EmbeddingCache) SetMany(ctx context.Context, model string, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return errors.Newf(errors.ErrCodeValidation, "got %d texts and %d vectors", len(texts), len(vectors))
	}
	if len(texts) == 0 {
		return nil
	}
	if c.client.isClosed() {
		return ErrClientClosed
	}

	_, err := c.client.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, t := range texts {
			data, err := json.Marshal(vectors[i])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode embedding")
			}
			p.Set(ctx, c.key(model, t), string(data), c.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write embeddings to cache")
	}
	return nil
}
