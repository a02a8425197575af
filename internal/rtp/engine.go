package rtp

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// MetricsSource — the tracker capability the engine needs
// ──────────────────────────────────────────────────────────────────────────────

// MetricsSource supplies the governor inputs. Implemented by Tracker.
type MetricsSource interface {
	Metrics(ctx context.Context, market string) domain.RTPMetrics
	HasEnoughData(m domain.RTPMetrics) bool
}

// ──────────────────────────────────────────────────────────────────────────────
// Engine
// ──────────────────────────────────────────────────────────────────────────────

// Delta is one symbol's percentage price change between the round's start
// and end snapshots.
type Delta struct {
	Symbol string
	Value  float64
}

// Engine selects a multiplier-slot index per symbol from the sign of its
// delta and the market's current RTP standing. It never mutates state; the
// caller persists the results.
type Engine struct {
	zones   Zones
	desired float64
	metrics MetricsSource
	logger  *slog.Logger

	// Non-cryptographic PRNG; guarded because many market loops share one engine.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine builds an Engine with zones derived from the configured
// multiplier array and a PRNG seeded from the platform entropy source.
func NewEngine(cfg *config.Config, metrics MetricsSource, logger *slog.Logger) *Engine {
	var seed int64
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return &Engine{
		zones:   DeriveZones(cfg.Game.Multipliers),
		desired: cfg.RTP.Desired,
		metrics: metrics,
		logger:  logger,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// SetRand injects a deterministic random source post-construction.
// Intended for tests.
func (e *Engine) SetRand(r *rand.Rand) {
	e.mu.Lock()
	e.rng = r
	e.mu.Unlock()
}

// Zones exposes the derived partition (read-only, for logging and tests).
func (e *Engine) Zones() Zones {
	return e.zones
}

// ──────────────────────────────────────────────────────────────────────────────
// Decide
// ──────────────────────────────────────────────────────────────────────────────

// Decide selects one multiplier slot per symbol.
//
// Selection policy per symbol:
//
//	delta < 0            → uniform RED, always
//	delta = 0, ungoverned → uniform YELLOW
//	delta = 0, RTP low    → uniform YELLOW high
//	delta = 0, RTP high   → uniform YELLOW low
//	delta > 0, ungoverned → uniform GREEN
//	delta > 0, RTP low    → uniform GREEN high
//	delta > 0, RTP high   → uniform GREEN low
//
// "Ungoverned" covers both playCount below the threshold and currentRTP
// exactly equal to the desired target. An empty subset falls back to its
// full zone.
func (e *Engine) Decide(ctx context.Context, market string, deltas []Delta) []domain.SymbolResult {
	m := e.metrics.Metrics(ctx, market)
	governed := e.metrics.HasEnoughData(m) && m.CurrentRTP != e.desired
	rtpLow := m.CurrentRTP < e.desired

	results := make([]domain.SymbolResult, 0, len(deltas))
	for _, d := range deltas {
		idx, reason := e.pick(d.Value, governed, rtpLow)
		results = append(results, domain.SymbolResult{
			Symbol:          d.Symbol,
			Delta:           d.Value,
			MultiplierIndex: idx,
			Multiplier:      e.zones.Multipliers[idx],
			Reason:          reason,
		})
		e.logger.Debug("rtp decision",
			"market", market, "symbol", d.Symbol, "delta", d.Value,
			"index", idx, "multiplier", e.zones.Multipliers[idx],
			"reason", reason, "currentRTP", m.CurrentRTP, "playCount", m.PlayCount)
	}
	return results
}

// pick applies the selection table for one delta.
func (e *Engine) pick(delta float64, governed, rtpLow bool) (int, string) {
	switch {
	case delta < 0:
		if len(e.zones.Red) == 0 {
			return e.zones.lowestIndex(), "red_fallback"
		}
		return e.uniform(e.zones.Red), "red"

	case delta == 0:
		return e.governedPick(e.zones.Yellow, e.zones.YellowHigh, e.zones.YellowLow,
			governed, rtpLow, "yellow")

	default:
		return e.governedPick(e.zones.Green, e.zones.GreenHigh, e.zones.GreenLow,
			governed, rtpLow, "green")
	}
}

// governedPick chooses from a zone or one of its subsets per the governor
// state, falling back to the full zone when the subset is empty.
func (e *Engine) governedPick(zone, high, low []int, governed, rtpLow bool, tag string) (int, string) {
	if len(zone) == 0 {
		zone = e.zones.nonRed()
		if len(zone) == 0 {
			return e.zones.lowestIndex(), tag + "_fallback"
		}
	}
	if !governed {
		return e.uniform(zone), tag
	}
	subset := low
	suffix := "_low"
	if rtpLow {
		subset = high
		suffix = "_high"
	}
	if len(subset) == 0 {
		return e.uniform(zone), tag
	}
	return e.uniform(subset), tag + suffix
}

// uniform draws one index from the candidate set.
func (e *Engine) uniform(candidates []int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return candidates[e.rng.Intn(len(candidates))]
}
