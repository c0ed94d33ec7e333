// Package cache is the Redis store for precomputed clinical note summaries.
// Reads and writes go through a circuit breaker; while Redis is failing the
// cache behaves as a permanent miss and callers fall back to the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/clinrx/clinrx/internal/platform/metrics"
)

// redisClient is the subset of *redis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type Cache struct {
	client  redisClient
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewClient parses a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func New(client redisClient, ttl time.Duration, logger zerolog.Logger) *Cache {
	c := &Cache{client: client, ttl: ttl, logger: logger}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return c
}

// Key builds the summary key {schema}:{admission}:{kind}.
func Key(schema string, admission int64, kind string) string {
	return fmt.Sprintf("%s:%d:%s", schema, admission, kind)
}

// Get decodes the value at key into dst. It reports false on a miss, on a
// corrupt entry and whenever Redis is unavailable.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		metrics.NoteCacheTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	data, _ := res.([]byte)
	if data == nil {
		metrics.NoteCacheTotal.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.NoteCacheTotal.WithLabelValues("miss").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("dropping corrupt cache entry")
		c.Delete(ctx, key)
		return false
	}
	metrics.NoteCacheTotal.WithLabelValues("hit").Inc()
	return true
}

// Set stores v as JSON for the configured TTL. Failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}

// Ping reports whether Redis answers; a nil cache is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
