package rtp_test

import (
	"context"
	"log/slog"
	"strconv"
	"testing"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/rtp"
)

// fakeCounters is an in-memory Counters implementation.
type fakeCounters struct {
	hashes map[string]map[string]string
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{hashes: make(map[string]map[string]string)}
}

func (f *fakeCounters) hash(key string) map[string]string {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	return h
}

func (f *fakeCounters) HIncrByFloat(_ context.Context, key, field string, incr float64) (float64, error) {
	h := f.hash(key)
	cur, _ := strconv.ParseFloat(h[field], 64)
	cur += incr
	h[field] = strconv.FormatFloat(cur, 'f', -1, 64)
	return cur, nil
}

func (f *fakeCounters) HIncrBy(_ context.Context, key, field string, incr int64) (int64, error) {
	h := f.hash(key)
	cur, _ := strconv.ParseInt(h[field], 10, 64)
	cur += incr
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (f *fakeCounters) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeCounters) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.hashes, k)
	}
	return nil
}

func newTestTracker(counters *fakeCounters, limit int64) *rtp.Tracker {
	cfg := &config.RTPConfig{
		Desired:            96.5,
		ThresholdPlayCount: 100,
		LimitPlayCount:     limit,
	}
	return rtp.NewTracker(counters, cfg, slog.Default())
}

func TestTrackerRecordAndRead(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	tr := newTestTracker(counters, 100000)

	tr.RecordBet(ctx, "CryptoStream", 50)
	tr.RecordBet(ctx, "CryptoStream", 30)
	tr.RecordWin(ctx, "CryptoStream", 60)
	tr.RecordWin(ctx, "CryptoStream", 0) // no-op

	m := tr.Metrics(ctx, "CryptoStream")
	if m.TotalBet != 80 {
		t.Errorf("totalBet = %v, want 80", m.TotalBet)
	}
	if m.TotalWon != 60 {
		t.Errorf("totalWon = %v, want 60", m.TotalWon)
	}
	if m.PlayCount != 2 {
		t.Errorf("playCount = %v, want 2", m.PlayCount)
	}
	if m.CurrentRTP != 75 {
		t.Errorf("currentRTP = %v, want 75 (60/80 × 100)", m.CurrentRTP)
	}

	if tr.HasEnoughData(m) {
		t.Error("2 plays reported as enough for a threshold of 100")
	}
}

// TestTrackerResetAtLimit validates the auto-reset that keeps stale history
// from pinning the governor.
//
//	Counters before: playCount = 1 000, totalBet = 50 000, totalWon = 48 000
//	Limit = 1 000, then RecordBet(50)
//	Counters after: playCount = 1, totalBet = 50, totalWon = 0
func TestTrackerResetAtLimit(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	tr := newTestTracker(counters, 1000)

	key := "plinko:rtp:CryptoStream"
	counters.hashes[key] = map[string]string{
		"playCount": "1000",
		"totalBet":  "50000",
		"totalWon":  "48000",
	}

	tr.RecordBet(ctx, "CryptoStream", 50)

	m := tr.Metrics(ctx, "CryptoStream")
	if m.PlayCount != 1 {
		t.Errorf("playCount = %v, want 1", m.PlayCount)
	}
	if m.TotalBet != 50 {
		t.Errorf("totalBet = %v, want 50", m.TotalBet)
	}
	if m.TotalWon != 0 {
		t.Errorf("totalWon = %v, want 0", m.TotalWon)
	}
}

func TestTrackerMetricsPerMarket(t *testing.T) {
	ctx := context.Background()
	counters := newFakeCounters()
	tr := newTestTracker(counters, 100000)

	tr.RecordBet(ctx, "CryptoStream", 100)
	tr.RecordBet(ctx, "TechStream", 25)

	if m := tr.Metrics(ctx, "CryptoStream"); m.TotalBet != 100 {
		t.Errorf("CryptoStream totalBet = %v, want 100", m.TotalBet)
	}
	if m := tr.Metrics(ctx, "TechStream"); m.TotalBet != 25 {
		t.Errorf("TechStream totalBet = %v, want 25", m.TotalBet)
	}
}
