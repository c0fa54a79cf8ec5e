package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// WindowCache stores JSON values keyed by a time window. Entries are
// namespaced by a generation counter; Invalidate bumps the counter so every
// existing entry becomes unreachable at once and later expires.
type WindowCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewWindowCache(client *redis.Client, prefix string, ttl time.Duration) *WindowCache {
	return &WindowCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *WindowCache) generationKey() string {
	return c.prefix + ":gen"
}

// Key builds the entry key for a window in a given generation.
func Key(prefix string, gen int64, start, end time.Time) string {
	return fmt.Sprintf("%s:g%d:%d:%d", prefix, gen, start.UnixNano(), end.UnixNano())
}

func (c *WindowCache) generation(ctx context.Context) (int64, error) {
	raw, err := c.client.Get(ctx, c.generationKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// Get decodes the cached value for the window into dst and reports a hit.
// The returned generation must be passed to Set so a value loaded before an
// Invalidate is never stored under the newer generation.
func (c *WindowCache) Get(ctx context.Context, start, end time.Time, dst any) (int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return 0, false, err
	}
	raw, err := c.client.Get(ctx, Key(c.prefix, gen, start, end)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, false, nil
	}
	if err != nil {
		return gen, false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return gen, false, err
	}
	return gen, true, nil
}

func (c *WindowCache) Set(ctx context.Context, gen int64, start, end time.Time, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(c.prefix, gen, start, end), payload, c.ttl).Err()
}

func (c *WindowCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, c.generationKey()).Err()
}
