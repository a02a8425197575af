package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/evetabi/plinko/internal/domain"
)

// TestPriceDelta validates the percentage-change arithmetic used at
// DROPPING entry. No I/O — pure arithmetic.
//
//	Scenario:
//	  A: 100.00 → 100.45  →  +0.45 %
//	  B: 200.00 → 199.80  →  −0.10 %
//	  C: 50.00  → 50.00   →   0.00 %
func TestPriceDelta(t *testing.T) {
	cases := []struct {
		name       string
		start, end float64
		want       float64
	}{
		{"rise", 100.00, 100.45, 0.45},
		{"fall", 200.00, 199.80, -0.1},
		{"flat", 50.00, 50.00, 0},
		{"zero start", 0, 123.45, 0},
		{"negative start", -10, 5, 0},
		{"rounds to 3 places", 3, 4, 33.333}, // 1/3 × 100 = 33.3333…
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.PriceDelta(tc.start, tc.end)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("PriceDelta(%v, %v) = %v, want %v", tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestPhaseCanWager(t *testing.T) {
	if !domain.PhaseBetting.CanWager() {
		t.Error("BETTING must accept wagers")
	}
	for _, p := range []domain.Phase{
		domain.PhaseAccumulation, domain.PhaseDropping, domain.PhasePayout, domain.PhasePaused,
	} {
		if p.CanWager() {
			t.Errorf("%s must not accept wagers", p)
		}
	}
	if domain.Phase("UNKNOWN").IsValid() {
		t.Error("unknown phase reported valid")
	}
}

func TestRoundStateTiming(t *testing.T) {
	now := time.Now()
	state := &domain.RoundState{
		ServerTime: now.UnixMilli(),
		EndTime:    now.Add(5 * time.Second).UnixMilli(),
	}

	if state.Expired(now) {
		t.Error("state expired before its end time")
	}
	if !state.Expired(now.Add(5 * time.Second)) {
		t.Error("state not expired at its end time")
	}

	left := state.TimeLeft(now)
	if left <= 4*time.Second || left > 5*time.Second {
		t.Errorf("TimeLeft = %v, want ~5s", left)
	}
	if got := state.TimeLeft(now.Add(time.Minute)); got != 0 {
		t.Errorf("TimeLeft after expiry = %v, want 0", got)
	}
}

func TestMultiplierOf(t *testing.T) {
	results := []domain.SymbolResult{
		{Symbol: "BTC", Multiplier: 4},
		{Symbol: "ETH", Multiplier: 0},
	}
	if got := domain.MultiplierOf(results, "BTC"); got != 4 {
		t.Errorf("BTC multiplier = %v, want 4", got)
	}
	if got := domain.MultiplierOf(results, "ETH"); got != 0 {
		t.Errorf("ETH multiplier = %v, want 0", got)
	}
	if got := domain.MultiplierOf(results, "SOL"); got != 0 {
		t.Errorf("absent symbol multiplier = %v, want 0", got)
	}
}

func TestSnapshotFreshness(t *testing.T) {
	now := time.Now()

	var nilSnap *domain.Snapshot
	if nilSnap.Fresh(now, time.Minute) {
		t.Error("nil snapshot reported fresh")
	}

	snap := &domain.Snapshot{
		Symbols:    map[string]domain.SymbolPrice{"BTC": {Price: 87000}},
		CapturedAt: now.Add(-3 * time.Second),
	}
	if !snap.Fresh(now, 5*time.Second) {
		t.Error("3s-old snapshot not fresh within 5s window")
	}
	if snap.Fresh(now, 2*time.Second) {
		t.Error("3s-old snapshot fresh within 2s window")
	}

	if price, ok := snap.PriceOf("BTC"); !ok || price != 87000 {
		t.Errorf("PriceOf(BTC) = %v, %v", price, ok)
	}
	if _, ok := snap.PriceOf("DOGE"); ok {
		t.Error("PriceOf for absent symbol reported ok")
	}
}
