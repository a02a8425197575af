// Package rtp implements the Return-To-Player governor: durable per-market
// counters and the multiplier-slot decision engine that biases outcomes
// toward the configured long-run payout ratio.
package rtp

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
	"github.com/evetabi/plinko/internal/store"
)

// Hash fields of the per-market counter key.
const (
	fieldTotalBet  = "totalBet"
	fieldTotalWon  = "totalWon"
	fieldPlayCount = "playCount"
)

// ──────────────────────────────────────────────────────────────────────────────
// Counters — the store capability the tracker needs
// ──────────────────────────────────────────────────────────────────────────────

// Counters is the minimal store interface the tracker depends on.
// Implemented by store.Client; tests supply an in-memory fake.
type Counters interface {
	HIncrByFloat(ctx context.Context, key, field string, incr float64) (float64, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// ──────────────────────────────────────────────────────────────────────────────
// Tracker
// ──────────────────────────────────────────────────────────────────────────────

// Tracker maintains the durable RTP counters for each market. It is pure
// telemetry from the round's perspective: every operation swallows store
// errors with a logged warning so a counter glitch can never fail a round.
type Tracker struct {
	counters Counters
	cfg      *config.RTPConfig
	logger   *slog.Logger
}

// NewTracker creates a Tracker.
func NewTracker(counters Counters, cfg *config.RTPConfig, logger *slog.Logger) *Tracker {
	return &Tracker{counters: counters, cfg: cfg, logger: logger}
}

// RecordBet registers a placed wager. When the play count has reached the
// configured limit the counters are reset first, so very old history cannot
// pin the governor forever. Both increments are independently atomic.
func (t *Tracker) RecordBet(ctx context.Context, market string, amount float64) {
	key := store.RTPKey(market)

	if t.cfg.LimitPlayCount > 0 {
		m := t.Metrics(ctx, market)
		if m.PlayCount >= t.cfg.LimitPlayCount {
			t.logger.Info("rtp counters reached play-count limit, resetting",
				"market", market, "playCount", m.PlayCount, "limit", t.cfg.LimitPlayCount)
			t.Reset(ctx, market)
		}
	}

	if _, err := t.counters.HIncrByFloat(ctx, key, fieldTotalBet, amount); err != nil {
		t.logger.Warn("rtp: recordBet totalBet increment failed", "market", market, "err", err)
	}
	if _, err := t.counters.HIncrBy(ctx, key, fieldPlayCount, 1); err != nil {
		t.logger.Warn("rtp: recordBet playCount increment failed", "market", market, "err", err)
	}
}

// RecordWin registers the total amount paid to a player for a round.
func (t *Tracker) RecordWin(ctx context.Context, market string, amount float64) {
	if amount <= 0 {
		return
	}
	if _, err := t.counters.HIncrByFloat(ctx, store.RTPKey(market), fieldTotalWon, amount); err != nil {
		t.logger.Warn("rtp: recordWin increment failed", "market", market, "err", err)
	}
}

// Metrics reads the market's counters and derives the current RTP.
// On store failure it logs and returns zero metrics.
func (t *Tracker) Metrics(ctx context.Context, market string) domain.RTPMetrics {
	fields, err := t.counters.HGetAll(ctx, store.RTPKey(market))
	if err != nil {
		t.logger.Warn("rtp: metrics read failed", "market", market, "err", err)
		return domain.RTPMetrics{}
	}

	m := domain.RTPMetrics{
		TotalBet:  parseFloat(fields[fieldTotalBet]),
		TotalWon:  parseFloat(fields[fieldTotalWon]),
		PlayCount: parseInt(fields[fieldPlayCount]),
	}
	m.CurrentRTP = domain.ComputeRTP(m.TotalBet, m.TotalWon)
	return m
}

// HasEnoughData reports whether the governor has seen enough plays to act.
func (t *Tracker) HasEnoughData(m domain.RTPMetrics) bool {
	return m.PlayCount >= t.cfg.ThresholdPlayCount
}

// Reset deletes the market's counters.
func (t *Tracker) Reset(ctx context.Context, market string) {
	if err := t.counters.Delete(ctx, store.RTPKey(market)); err != nil {
		t.logger.Warn("rtp: reset failed", "market", market, "err", err)
	}
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
