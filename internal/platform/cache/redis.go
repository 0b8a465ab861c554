package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client wraps a Redis connection used for short-lived counters and badges.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	return &Client{rdb: rdb, logger: logger}, nil
}

// GetInt returns the cached integer for key and whether it was present.
// Cache errors are logged and reported as a miss.
func (c *Client) GetInt(ctx context.Context, key string) (int, bool) {
	val, err := c.rdb.Get(ctx, key).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Redis GET failed", "key", key, "error", err)
		}
		return 0, false
	}
	return val, true
}

// SetInt stores an integer under key with the given TTL. Best-effort.
func (c *Client) SetInt(ctx context.Context, key string, val int, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis SET failed", "key", key, "error", err)
	}
}

// Delete removes keys. Best-effort.
func (c *Client) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis DEL failed", "keys", keys, "error", err)
	}
}

// Close closes the underlying Redis connection.
func (c *Client) Close() {
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("Failed to close redis client", "error", err)
	}
}
