package store

import (
	"context"
	"fmt"
	"time"

	"github.com/evetabi/plinko/internal/domain"
)

// Round-scoped persistence. The round-state blob is written whole on every
// phase transition; ancillary keys carry a TTL so they expire a few minutes
// after the round ends.

// SaveRoundState persists the authoritative round-state blob for a market.
// The blob has no TTL: the latest state must survive until the next write.
func (c *Client) SaveRoundState(ctx context.Context, market string, state *domain.RoundState) error {
	return c.SetJSON(ctx, StateKey(market), state, 0)
}

// LoadRoundState reads a market's round-state blob.
// Returns domain.ErrNoRound when no blob exists.
func (c *Client) LoadRoundState(ctx context.Context, market string) (*domain.RoundState, error) {
	var state domain.RoundState
	found, err := c.GetJSON(ctx, StateKey(market), &state)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrNoRound
	}
	return &state, nil
}

// SaveStockList persists the round's selected symbol names.
func (c *Client) SaveStockList(ctx context.Context, market, roundID string, symbols []string, ttl time.Duration) error {
	return c.SetJSON(ctx, StocksKey(market, roundID), symbols, ttl)
}

// SaveStartSnapshot persists the snapshot captured at ACCUMULATION entry.
func (c *Client) SaveStartSnapshot(ctx context.Context, market, roundID string, snap *domain.Snapshot, ttl time.Duration) error {
	return c.SetJSON(ctx, StartSnapKey(market, roundID), snap, ttl)
}

// LoadStartSnapshot reads the round's start snapshot, or (nil, nil) when it
// is missing — the caller falls back to the end snapshot.
func (c *Client) LoadStartSnapshot(ctx context.Context, market, roundID string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	found, err := c.GetJSON(ctx, StartSnapKey(market, roundID), &snap)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

// SaveResults persists the per-symbol outcome array written at DROPPING entry.
func (c *Client) SaveResults(ctx context.Context, market, roundID string, results []domain.SymbolResult, ttl time.Duration) error {
	return c.SetJSON(ctx, ResultsKey(market, roundID), results, ttl)
}

// LoadResults reads the round's result array. Returns (nil, nil) when absent.
func (c *Client) LoadResults(ctx context.Context, market, roundID string) ([]domain.SymbolResult, error) {
	var results []domain.SymbolResult
	found, err := c.GetJSON(ctx, ResultsKey(market, roundID), &results)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return results, nil
}

// DeleteRoundKeys removes the round's ancillary keys after payout or refund.
func (c *Client) DeleteRoundKeys(ctx context.Context, market, roundID string) error {
	err := c.Delete(ctx,
		ResultsKey(market, roundID),
		BetsKey(market, roundID),
		StocksKey(market, roundID),
		StartSnapKey(market, roundID),
	)
	if err != nil {
		return fmt.Errorf("store.DeleteRoundKeys %s/%s: %w", market, roundID, err)
	}
	return nil
}
