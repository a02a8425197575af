package rtp_test

import (
	"context"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
	"github.com/evetabi/plinko/internal/rtp"
)

// fakeMetrics is an in-memory MetricsSource with a fixed reading.
type fakeMetrics struct {
	m         domain.RTPMetrics
	threshold int64
}

func (f *fakeMetrics) Metrics(_ context.Context, _ string) domain.RTPMetrics { return f.m }
func (f *fakeMetrics) HasEnoughData(m domain.RTPMetrics) bool                { return m.PlayCount >= f.threshold }

func newTestEngine(t *testing.T, metrics *fakeMetrics) *rtp.Engine {
	t.Helper()
	cfg := &config.Config{
		Game: config.GameConfig{Multipliers: []float64{4, 2, 1.4, 0, 0.5, 0, 1.2, 1.5, 5}},
		RTP:  config.RTPConfig{Desired: 96.5, ThresholdPlayCount: 100},
	}
	e := rtp.NewEngine(cfg, metrics, slog.Default())
	e.SetRand(rand.New(rand.NewSource(1)))
	return e
}

// decideMany runs Decide repeatedly for one delta and collects the picked
// indices and reasons.
func decideMany(e *rtp.Engine, delta float64, n int) (indices map[int]int, reasons map[string]int) {
	indices = make(map[int]int)
	reasons = make(map[string]int)
	for i := 0; i < n; i++ {
		res := e.Decide(context.Background(), "CryptoStream", []rtp.Delta{{Symbol: "BTC", Value: delta}})
		indices[res[0].MultiplierIndex]++
		reasons[res[0].Reason]++
	}
	return indices, reasons
}

func assertSubset(t *testing.T, name string, got map[int]int, allowed []int) {
	t.Helper()
	ok := make(map[int]bool, len(allowed))
	for _, v := range allowed {
		ok[v] = true
	}
	for idx := range got {
		if !ok[idx] {
			t.Errorf("%s: picked index %d outside allowed set %v", name, idx, allowed)
		}
	}
}

// TestDecideNegativeDeltaAlwaysRed: a falling symbol lands in the loss zone
// no matter what the governor says.
func TestDecideNegativeDeltaAlwaysRed(t *testing.T) {
	for _, m := range []domain.RTPMetrics{
		{},                                     // no history
		{PlayCount: 1250, CurrentRTP: 94.2},    // governed, RTP low
		{PlayCount: 1500, CurrentRTP: 98.2},    // governed, RTP high
		{PlayCount: 100000, CurrentRTP: 150.0}, // far over target
	} {
		e := newTestEngine(t, &fakeMetrics{m: m, threshold: 100})
		indices, reasons := decideMany(e, -0.25, 50)
		assertSubset(t, "red", indices, []int{3, 5})
		if reasons["red"] != 50 {
			t.Errorf("reasons = %v, want 50×red", reasons)
		}
	}
}

// TestDecideGovernedLow: RTP 94.2 after 1 250 plays is below the 96.5
// target, so the governor pushes rising symbols into the strong half of
// GREEN {0, 8} and flat symbols into the strong half of YELLOW {2, 6}.
func TestDecideGovernedLow(t *testing.T) {
	e := newTestEngine(t, &fakeMetrics{
		m:         domain.RTPMetrics{PlayCount: 1250, CurrentRTP: 94.2},
		threshold: 100,
	})

	upIdx, upReasons := decideMany(e, 0.45, 100)
	assertSubset(t, "green high", upIdx, []int{0, 8})
	if upReasons["green_high"] != 100 {
		t.Errorf("up reasons = %v, want 100×green_high", upReasons)
	}

	flatIdx, flatReasons := decideMany(e, 0, 100)
	assertSubset(t, "yellow high", flatIdx, []int{2, 6})
	if flatReasons["yellow_high"] != 100 {
		t.Errorf("flat reasons = %v, want 100×yellow_high", flatReasons)
	}
}

// TestDecideGovernedHigh: RTP 98.2 after 1 500 plays is above target, so
// rising symbols draw from the weak half of GREEN {1, 7} and flat symbols
// from the weak half of YELLOW {4}.
func TestDecideGovernedHigh(t *testing.T) {
	e := newTestEngine(t, &fakeMetrics{
		m:         domain.RTPMetrics{PlayCount: 1500, CurrentRTP: 98.2},
		threshold: 100,
	})

	upIdx, upReasons := decideMany(e, 0.30, 100)
	assertSubset(t, "green low", upIdx, []int{1, 7})
	if upReasons["green_low"] != 100 {
		t.Errorf("up reasons = %v, want 100×green_low", upReasons)
	}

	flatIdx, _ := decideMany(e, 0, 50)
	assertSubset(t, "yellow low", flatIdx, []int{4})
	if len(flatIdx) != 1 || flatIdx[4] != 50 {
		t.Errorf("flat indices = %v, want 50×{4}", flatIdx)
	}
}

// TestDecideUngoverned: below the play-count threshold (or exactly on
// target) the full zone is used.
func TestDecideUngoverned(t *testing.T) {
	t.Run("below threshold", func(t *testing.T) {
		e := newTestEngine(t, &fakeMetrics{
			m:         domain.RTPMetrics{PlayCount: 10, CurrentRTP: 40},
			threshold: 100,
		})
		upIdx, upReasons := decideMany(e, 0.2, 200)
		assertSubset(t, "green full", upIdx, []int{0, 1, 7, 8})
		if upReasons["green"] != 200 {
			t.Errorf("up reasons = %v, want 200×green", upReasons)
		}
		flatIdx, _ := decideMany(e, 0, 200)
		assertSubset(t, "yellow full", flatIdx, []int{2, 4, 6})
	})

	t.Run("exactly on target", func(t *testing.T) {
		e := newTestEngine(t, &fakeMetrics{
			m:         domain.RTPMetrics{PlayCount: 5000, CurrentRTP: 96.5},
			threshold: 100,
		})
		upIdx, upReasons := decideMany(e, 0.2, 100)
		assertSubset(t, "green full", upIdx, []int{0, 1, 7, 8})
		if upReasons["green"] != 100 {
			t.Errorf("up reasons = %v, want 100×green", upReasons)
		}
	})
}

// TestDecideMultipleSymbols checks one Decide call carries every delta
// through with its own outcome.
func TestDecideMultipleSymbols(t *testing.T) {
	e := newTestEngine(t, &fakeMetrics{threshold: 100})

	results := e.Decide(context.Background(), "CryptoStream", []rtp.Delta{
		{Symbol: "BTC", Value: 0.45},
		{Symbol: "ETH", Value: -0.1},
		{Symbol: "SOL", Value: 0},
	})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	multipliers := []float64{4, 2, 1.4, 0, 0.5, 0, 1.2, 1.5, 5}
	for _, r := range results {
		if r.Multiplier != multipliers[r.MultiplierIndex] {
			t.Errorf("%s: multiplier %v does not match index %d", r.Symbol, r.Multiplier, r.MultiplierIndex)
		}
	}
	if results[1].MultiplierIndex != 3 && results[1].MultiplierIndex != 5 {
		t.Errorf("falling ETH landed on index %d, want a red slot", results[1].MultiplierIndex)
	}
}
