package store_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/evetabi/plinko/internal/store"
	"github.com/redis/go-redis/v9"
)

// newTestStore backs a store.Client with an in-process Redis. The Lua scripts
// run verbatim, so these tests exercise the real atomic paths.
func newTestStore(t *testing.T) (*store.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return store.NewClientFromRedis(rdb), mr
}

// TestLeaseExclusivity: while one instance holds a market's lease, every
// other instance must be denied, and the holder must be able to extend.
func TestLeaseExclusivity(t *testing.T) {
	client, _ := newTestStore(t)
	ctx := context.Background()
	ttl := 10 * time.Second

	a := store.NewLease(client, "instance-a", slog.Default())
	b := store.NewLease(client, "instance-b", slog.Default())

	if !a.AcquireOrExtend(ctx, "CryptoStream", ttl) {
		t.Fatal("first acquire on an unheld lease was denied")
	}
	if b.AcquireOrExtend(ctx, "CryptoStream", ttl) {
		t.Fatal("second instance became leader while the lease was held")
	}
	if !a.AcquireOrExtend(ctx, "CryptoStream", ttl) {
		t.Error("holder could not extend its own lease")
	}
	if b.AcquireOrExtend(ctx, "CryptoStream", ttl) {
		t.Error("extend by the holder did not keep the other instance out")
	}

	// Leases are per market: the same loser leads elsewhere.
	if !b.AcquireOrExtend(ctx, "TechStream", ttl) {
		t.Error("lease on one market blocked an unrelated market")
	}
}

// TestLeaseExpiry: a dead leader's lease lapses by TTL and another instance
// takes over; the old holder must not silently reclaim it.
func TestLeaseExpiry(t *testing.T) {
	client, mr := newTestStore(t)
	ctx := context.Background()
	ttl := 10 * time.Second

	a := store.NewLease(client, "instance-a", slog.Default())
	b := store.NewLease(client, "instance-b", slog.Default())

	if !a.AcquireOrExtend(ctx, "CryptoStream", ttl) {
		t.Fatal("initial acquire failed")
	}

	mr.FastForward(ttl + time.Second)

	if !b.AcquireOrExtend(ctx, "CryptoStream", ttl) {
		t.Fatal("expired lease could not be claimed by a new instance")
	}
	if a.AcquireOrExtend(ctx, "CryptoStream", ttl) {
		t.Error("previous holder reclaimed a lease now held by another instance")
	}
}
