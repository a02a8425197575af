// Package store wraps the shared Redis state store: key layout, the
// round-state and ancillary-key persistence, the wager hash scripts, and the
// per-market gameloop lease. Every structure here is owned by the market,
// not by any process instance.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evetabi/plinko/internal/config"
	"github.com/redis/go-redis/v9"
)

// Client is the shared state store handle used by all components.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store.NewClient: ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing go-redis client. Used by tests and by
// callers that manage the connection themselves.
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis exposes the raw client for components that need primitive commands
// (atomic increments, hash reads). Prefer the typed methods where one exists.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// ──────────────────────────────────────────────────────────────────────────────
// Generic JSON helpers
// ──────────────────────────────────────────────────────────────────────────────

// SetJSON marshals v and stores it under key with the given TTL.
// A zero TTL stores the key without expiry.
func (c *Client) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store.SetJSON %s: marshal: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store.SetJSON %s: %w", key, err)
	}
	return nil
}

// GetJSON loads key and unmarshals it into out. Returns (false, nil) when the
// key does not exist.
func (c *Client) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store.GetJSON %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("store.GetJSON %s: unmarshal: %w", key, err)
	}
	return true, nil
}

// Delete removes the given keys. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("store.Delete: %w", err)
	}
	return nil
}
