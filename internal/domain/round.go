// Package domain defines the core business entities and types for the
// Plinko market-synchronized wagering engine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// Phase represents the lifecycle state of a market's current round.
type Phase string

const (
	PhaseBetting      Phase = "BETTING"      // accepting wagers; live prices shown
	PhaseAccumulation Phase = "ACCUMULATION" // start prices frozen; no wagers
	PhaseDropping     Phase = "DROPPING"     // results computed and announced
	PhasePayout       Phase = "PAYOUT"       // payouts processed
	PhasePaused       Phase = "PAUSED"       // market unhealthy; no round running
)

// IsValid returns true if the phase is one of the five recognised states.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseBetting, PhaseAccumulation, PhaseDropping, PhasePayout, PhasePaused:
		return true
	}
	return false
}

// CanWager returns true while wagers may be placed or cancelled.
func (p Phase) CanWager() bool {
	return p == PhaseBetting
}

// ──────────────────────────────────────────────────────────────────────────────
// Stock — one symbol inside a round
// ──────────────────────────────────────────────────────────────────────────────

// Stock is the per-symbol entry of a round-state blob. Pointer fields are nil
// until the phase that populates them: StartPrice at ACCUMULATION entry, and
// Delta / MultiplierIndex / Multiplier at DROPPING entry.
type Stock struct {
	Symbol          string   `json:"symbol"`
	CurrentPrice    *float64 `json:"currentPrice,omitempty"`
	StartPrice      *float64 `json:"startPrice,omitempty"`
	Delta           *float64 `json:"delta,omitempty"`
	MultiplierIndex *int     `json:"multiplierIndex,omitempty"`
	Multiplier      *float64 `json:"multiplier,omitempty"`
}

// ──────────────────────────────────────────────────────────────────────────────
// RoundState — the authoritative per-market blob
// ──────────────────────────────────────────────────────────────────────────────

// RoundState is the serialized authoritative description of a market's
// current round. Each phase transition writes a complete new blob; fields
// are never patched in place.
type RoundState struct {
	Phase      Phase   `json:"phase"`
	RoundID    string  `json:"roundId"`
	ServerTime int64   `json:"serverTime"` // epoch ms at blob creation
	EndTime    int64   `json:"endTime"`    // epoch ms when the phase ends
	Stocks     []Stock `json:"stocks"`
	CanUnbet   bool    `json:"canUnbet"`
	Message    string  `json:"message,omitempty"`
	NextCheck  int64   `json:"nextCheck,omitempty"` // epoch ms of the next health recheck; PAUSED only
}

// Expired returns true once the phase's end time has passed.
func (r *RoundState) Expired(now time.Time) bool {
	return now.UnixMilli() >= r.EndTime
}

// TimeLeft returns the duration until the phase ends, or 0 if already past.
func (r *RoundState) TimeLeft(now time.Time) time.Duration {
	left := time.Duration(r.EndTime-now.UnixMilli()) * time.Millisecond
	if left < 0 {
		return 0
	}
	return left
}

// ──────────────────────────────────────────────────────────────────────────────
// Snapshot — market-data view consumed from the feed
// ──────────────────────────────────────────────────────────────────────────────

// SymbolPrice is one symbol's reading inside a snapshot.
type SymbolPrice struct {
	Price float64 `json:"price"`
}

// Snapshot is a point-in-time capture of the market-data feed for a market.
type Snapshot struct {
	Symbols    map[string]SymbolPrice `json:"symbols"`
	CapturedAt time.Time              `json:"capturedAt"`
}

// Fresh returns true when the snapshot was captured within maxAge of now.
func (s *Snapshot) Fresh(now time.Time, maxAge time.Duration) bool {
	if s == nil || s.CapturedAt.IsZero() {
		return false
	}
	return now.Sub(s.CapturedAt) <= maxAge
}

// PriceOf returns the snapshot price for a symbol, or (0, false) if absent.
func (s *Snapshot) PriceOf(symbol string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	sp, ok := s.Symbols[symbol]
	return sp.Price, ok
}

// ──────────────────────────────────────────────────────────────────────────────
// SymbolResult — DROPPING outcome for one symbol
// ──────────────────────────────────────────────────────────────────────────────

// SymbolResult is the decision-engine outcome for one symbol in a round.
// Reason is a short tag for audit logs (e.g. "green_high", "red").
type SymbolResult struct {
	Symbol          string  `json:"symbol"`
	Delta           float64 `json:"delta"`
	MultiplierIndex int     `json:"multiplierIndex"`
	Multiplier      float64 `json:"multiplier"`
	Reason          string  `json:"reason"`
}

// MultiplierOf returns the multiplier a results array assigns to a symbol,
// or 0 if the symbol is not in the results.
func MultiplierOf(results []SymbolResult, symbol string) float64 {
	for _, r := range results {
		if r.Symbol == symbol {
			return r.Multiplier
		}
	}
	return 0
}

// ──────────────────────────────────────────────────────────────────────────────
// Delta arithmetic
// ──────────────────────────────────────────────────────────────────────────────

// PriceDelta computes the percentage change from start to end, rounded to
// 3 decimal places. A non-positive start price yields 0 so a dead feed can
// never produce a divide-by-zero or a phantom move.
func PriceDelta(start, end float64) float64 {
	if start <= 0 {
		return 0
	}
	s := decimal.NewFromFloat(start)
	e := decimal.NewFromFloat(end)
	delta := e.Sub(s).Div(s).Mul(decimal.NewFromInt(100)).Round(3)
	f, _ := delta.Float64()
	return f
}
