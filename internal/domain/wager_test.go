package domain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/evetabi/plinko/internal/domain"
)

func validWager() *domain.Wager {
	return &domain.Wager{
		TransactionID: "tx-1",
		PlayerID:      "p-1",
		Amount:        50,
		Symbols:       []string{"BTC", "ETH"},
	}
}

func TestWagerValidate(t *testing.T) {
	if err := validWager().Validate(); err != nil {
		t.Fatalf("valid wager rejected: %v", err)
	}

	t.Run("amount", func(t *testing.T) {
		for _, amount := range []float64{0, -1} {
			w := validWager()
			w.Amount = amount
			if err := w.Validate(); !errors.Is(err, domain.ErrInvalidAmount) {
				t.Errorf("amount %v: got %v, want ErrInvalidAmount", amount, err)
			}
		}
	})

	t.Run("selection", func(t *testing.T) {
		cases := []struct {
			name    string
			symbols []string
		}{
			{"empty", nil},
			{"duplicate", []string{"BTC", "BTC"}},
			{"blank entry", []string{"BTC", ""}},
			{"too many", make([]string, domain.MaxWagerSymbols+1)},
		}
		// Give the "too many" case distinct non-empty names.
		for i := range cases[3].symbols {
			cases[3].symbols[i] = string(rune('A' + i%26))
			if i >= 26 {
				cases[3].symbols[i] += "2"
			}
		}
		for _, tc := range cases {
			w := validWager()
			w.Symbols = tc.symbols
			if err := w.Validate(); !errors.Is(err, domain.ErrInvalidSelection) {
				t.Errorf("%s: got %v, want ErrInvalidSelection", tc.name, err)
			}
		}
	})
}

// TestComputeRTP pins the counter → percentage derivation.
//
//	totalBet = 50 000, totalWon = 48 000  →  96.0 %
func TestComputeRTP(t *testing.T) {
	if got := domain.ComputeRTP(50000, 48000); math.Abs(got-96.0) > 1e-9 {
		t.Errorf("ComputeRTP = %v, want 96.0", got)
	}
	if got := domain.ComputeRTP(0, 100); got != 0 {
		t.Errorf("ComputeRTP with zero bets = %v, want 0", got)
	}
}

func TestSessionAuthenticated(t *testing.T) {
	var nilSess *domain.Session
	if nilSess.Authenticated() {
		t.Error("nil session reported authenticated")
	}
	if (&domain.Session{PlayerID: "p-1"}).Authenticated() {
		t.Error("session without token reported authenticated")
	}
	if !(&domain.Session{PlayerID: "p-1", SessionToken: "tok"}).Authenticated() {
		t.Error("complete session reported unauthenticated")
	}
}
