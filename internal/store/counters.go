package store

import (
	"context"
	"fmt"
)

// Hash-counter primitives used by the RTP tracker. Redis performs the
// increments server-side, so concurrent writers from any instance are safe
// without coordination.

// HIncrByFloat atomically increments a float hash field and returns the new value.
func (c *Client) HIncrByFloat(ctx context.Context, key, field string, incr float64) (float64, error) {
	v, err := c.rdb.HIncrByFloat(ctx, key, field, incr).Result()
	if err != nil {
		return 0, fmt.Errorf("store.HIncrByFloat %s.%s: %w", key, field, err)
	}
	return v, nil
}

// HIncrBy atomically increments an integer hash field and returns the new value.
func (c *Client) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	v, err := c.rdb.HIncrBy(ctx, key, field, incr).Result()
	if err != nil {
		return 0, fmt.Errorf("store.HIncrBy %s.%s: %w", key, field, err)
	}
	return v, nil
}

// HGetAll reads all fields of a hash. Missing keys yield an empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("store.HGetAll %s: %w", key, err)
	}
	return m, nil
}
