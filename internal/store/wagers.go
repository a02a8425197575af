package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evetabi/plinko/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Wager hash operations. The hash is keyed by playerId and each field holds
// the player's serialized wager list for the round. Mutation goes through
// the append/remove scripts only.

// AppendWager atomically appends a wager to the player's list in the round's
// wager hash. Returns the new list length.
func (c *Client) AppendWager(ctx context.Context, market, roundID string, w *domain.Wager, ttl time.Duration) (int, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return 0, fmt.Errorf("store.AppendWager: marshal: %w", err)
	}
	n, err := appendWagerScript.Run(ctx, c.rdb,
		[]string{BetsKey(market, roundID)},
		w.PlayerID, string(data), ttl.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("store.AppendWager %s/%s: %w", market, roundID, err)
	}
	return n, nil
}

// RemoveWager atomically removes the wager with the given transaction id from
// the player's list. Returns the removed wager, or domain.ErrWagerNotFound
// when no wager matched.
func (c *Client) RemoveWager(ctx context.Context, market, roundID, playerID, transactionID string) (*domain.Wager, error) {
	raw, err := removeWagerScript.Run(ctx, c.rdb,
		[]string{BetsKey(market, roundID)},
		playerID, transactionID).Text()
	if err == redis.Nil {
		return nil, domain.ErrWagerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.RemoveWager %s/%s: %w", market, roundID, err)
	}
	var w domain.Wager
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("store.RemoveWager: unmarshal removed wager: %w", err)
	}
	return &w, nil
}

// AllWagers reads the full wager hash for a round: playerId → wager list.
// Returns an empty map when the hash does not exist.
func (c *Client) AllWagers(ctx context.Context, market, roundID string) (map[string][]domain.Wager, error) {
	fields, err := c.rdb.HGetAll(ctx, BetsKey(market, roundID)).Result()
	if err != nil {
		return nil, fmt.Errorf("store.AllWagers %s/%s: %w", market, roundID, err)
	}
	out := make(map[string][]domain.Wager, len(fields))
	for playerID, raw := range fields {
		var list []domain.Wager
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("store.AllWagers: unmarshal list for player %s: %w", playerID, err)
		}
		out[playerID] = list
	}
	return out, nil
}

// DeleteWagers removes the round's wager hash.
func (c *Client) DeleteWagers(ctx context.Context, market, roundID string) error {
	return c.Delete(ctx, BetsKey(market, roundID))
}
