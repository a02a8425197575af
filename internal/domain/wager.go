package domain

import (
	"time"
)

// MaxWagerSymbols is the upper bound on distinct symbols per wager.
const MaxWagerSymbols = 20

// ──────────────────────────────────────────────────────────────────────────────
// Session — authenticated socket identity
// ──────────────────────────────────────────────────────────────────────────────

// Session identifies an authenticated player on a realtime connection.
// Currency is normalized to a plain string at the ledger boundary.
type Session struct {
	PlayerID     string `json:"playerId"`
	TenantID     string `json:"tenantId"`
	SessionToken string `json:"sessionToken"`
	Currency     string `json:"currency"`
	Market       string `json:"market"`
}

// Authenticated returns true when the session carries a usable identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.PlayerID != "" && s.SessionToken != ""
}

// ──────────────────────────────────────────────────────────────────────────────
// Wager
// ──────────────────────────────────────────────────────────────────────────────

// Wager is a player's stake on one or more symbols within a single round.
// It is appended to the round's wager hash only after a successful wallet
// debit, and destroyed when the round ends or on refund.
type Wager struct {
	TransactionID string    `json:"transactionId"`
	PlayerID      string    `json:"playerId"`
	TenantID      string    `json:"tenantId"`
	SessionToken  string    `json:"sessionToken"`
	Currency      string    `json:"currency"`
	Amount        float64   `json:"amount"`
	Symbols       []string  `json:"symbols"`
	PlacedAt      time.Time `json:"placedAt"`
}

// Validate checks the wager's stake and symbol selection.
// Returns ErrInvalidAmount or ErrInvalidSelection on violation.
func (w *Wager) Validate() error {
	if w.Amount <= 0 {
		return ErrInvalidAmount
	}
	if len(w.Symbols) == 0 || len(w.Symbols) > MaxWagerSymbols {
		return ErrInvalidSelection
	}
	seen := make(map[string]struct{}, len(w.Symbols))
	for _, sym := range w.Symbols {
		if sym == "" {
			return ErrInvalidSelection
		}
		if _, dup := seen[sym]; dup {
			return ErrInvalidSelection
		}
		seen[sym] = struct{}{}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// RTP metrics
// ──────────────────────────────────────────────────────────────────────────────

// RTPMetrics is the read model of a market's durable RTP counters.
type RTPMetrics struct {
	TotalBet   float64 `json:"totalBet"`
	TotalWon   float64 `json:"totalWon"`
	PlayCount  int64   `json:"playCount"`
	CurrentRTP float64 `json:"currentRTP"` // totalWon/totalBet × 100, 0 when totalBet == 0
}

// ComputeRTP derives the current RTP percentage from the raw counters.
func ComputeRTP(totalBet, totalWon float64) float64 {
	if totalBet <= 0 {
		return 0
	}
	return totalWon / totalBet * 100
}

// ──────────────────────────────────────────────────────────────────────────────
// Payout read models
// ──────────────────────────────────────────────────────────────────────────────

// BetBreakdown is the per-wager line item inside a payout event.
type BetBreakdown struct {
	BetID      string   `json:"betId"`
	Symbols    []string `json:"symbols"`
	Wager      float64  `json:"wager"`
	Payout     float64  `json:"payout"`
	Multiplier float64  `json:"multiplier"` // payout / wager
}

// PayoutSummary aggregates one player's results for a round.
type PayoutSummary struct {
	RoundID     string         `json:"roundId"`
	Currency    string         `json:"currency"`
	TotalWager  float64        `json:"totalWager"`
	TotalPayout float64        `json:"totalPayout"`
	NetProfit   float64        `json:"netProfit"`
	Bets        []BetBreakdown `json:"bets"`
}
