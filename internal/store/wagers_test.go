package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evetabi/plinko/internal/domain"
)

func testWager(tx string, amount float64, symbols ...string) *domain.Wager {
	return &domain.Wager{
		TransactionID: tx,
		PlayerID:      "p-1",
		SessionToken:  "tok-1",
		Currency:      "USD",
		Amount:        amount,
		Symbols:       symbols,
		PlacedAt:      time.Now().UTC(),
	}
}

// TestWagerAppendRemoveRoundTrip: appending two wagers and removing the first
// by transaction id must return it intact and leave only the second in the
// hash. A repeated removal of the same id is a not-found, never a double
// mutation.
func TestWagerAppendRemoveRoundTrip(t *testing.T) {
	client, mr := newTestStore(t)
	ctx := context.Background()
	ttl := 300 * time.Second

	n, err := client.AppendWager(ctx, "CryptoStream", "round-1", testWager("tx-1", 40.5, "BTC", "ETH"), ttl)
	if err != nil || n != 1 {
		t.Fatalf("first append: n=%d err=%v, want 1", n, err)
	}
	n, err = client.AppendWager(ctx, "CryptoStream", "round-1", testWager("tx-2", 25, "SOL"), ttl)
	if err != nil || n != 2 {
		t.Fatalf("second append: n=%d err=%v, want 2", n, err)
	}
	if mr.TTL("plinko:bets:CryptoStream:round-1") <= 0 {
		t.Error("wager hash carries no TTL")
	}

	removed, err := client.RemoveWager(ctx, "CryptoStream", "round-1", "p-1", "tx-1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.TransactionID != "tx-1" || removed.Amount != 40.5 || len(removed.Symbols) != 2 {
		t.Errorf("removed wager = %+v, want tx-1 of 40.5 on 2 symbols", removed)
	}

	if _, err := client.RemoveWager(ctx, "CryptoStream", "round-1", "p-1", "tx-1"); !errors.Is(err, domain.ErrWagerNotFound) {
		t.Errorf("second removal of tx-1: err = %v, want ErrWagerNotFound", err)
	}

	all, err := client.AllWagers(ctx, "CryptoStream", "round-1")
	if err != nil {
		t.Fatalf("all wagers: %v", err)
	}
	if len(all["p-1"]) != 1 || all["p-1"][0].TransactionID != "tx-2" {
		t.Errorf("surviving wagers = %+v, want only tx-2", all["p-1"])
	}

	// Removing the last wager deletes the player's hash field entirely.
	if _, err := client.RemoveWager(ctx, "CryptoStream", "round-1", "p-1", "tx-2"); err != nil {
		t.Fatalf("remove tx-2: %v", err)
	}
	all, err = client.AllWagers(ctx, "CryptoStream", "round-1")
	if err != nil {
		t.Fatalf("all wagers after drain: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("hash not empty after last removal: %+v", all)
	}
}

// TestWagerRemoveUnknownPlayer: a removal against a player with no list is a
// not-found and must leave other players' lists untouched.
func TestWagerRemoveUnknownPlayer(t *testing.T) {
	client, _ := newTestStore(t)
	ctx := context.Background()
	ttl := 300 * time.Second

	if _, err := client.AppendWager(ctx, "CryptoStream", "round-1", testWager("tx-1", 10, "BTC"), ttl); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := client.RemoveWager(ctx, "CryptoStream", "round-1", "p-ghost", "tx-1"); !errors.Is(err, domain.ErrWagerNotFound) {
		t.Errorf("err = %v, want ErrWagerNotFound", err)
	}

	all, err := client.AllWagers(ctx, "CryptoStream", "round-1")
	if err != nil {
		t.Fatalf("all wagers: %v", err)
	}
	if len(all["p-1"]) != 1 {
		t.Errorf("unrelated player's list was disturbed: %+v", all)
	}
}

// TestWagerAppendNeverOverwrites: appends interleaved across players land in
// separate hash fields and each list keeps every entry.
func TestWagerAppendNeverOverwrites(t *testing.T) {
	client, _ := newTestStore(t)
	ctx := context.Background()
	ttl := 300 * time.Second

	w1 := testWager("tx-1", 10, "BTC")
	w2 := testWager("tx-2", 20, "ETH")
	w2.PlayerID = "p-2"
	w3 := testWager("tx-3", 30, "SOL")

	for _, w := range []*domain.Wager{w1, w2, w3} {
		if _, err := client.AppendWager(ctx, "CryptoStream", "round-1", w, ttl); err != nil {
			t.Fatalf("append %s: %v", w.TransactionID, err)
		}
	}

	all, err := client.AllWagers(ctx, "CryptoStream", "round-1")
	if err != nil {
		t.Fatalf("all wagers: %v", err)
	}
	if len(all["p-1"]) != 2 || len(all["p-2"]) != 1 {
		t.Fatalf("lists = p-1:%d p-2:%d, want 2 and 1", len(all["p-1"]), len(all["p-2"]))
	}
	if all["p-1"][0].TransactionID != "tx-1" || all["p-1"][1].TransactionID != "tx-3" {
		t.Errorf("p-1 list order = %+v, want tx-1 then tx-3", all["p-1"])
	}
}
