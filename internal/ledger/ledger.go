// Package ledger is the round-scoped wager store: placement and cancellation
// of bets during the BETTING phase, with the wallet debit/credit ordering
// the payout pipeline depends on.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
	"github.com/evetabi/plinko/internal/wallet"
	"github.com/google/uuid"
)

// GameName tags wallet metadata so the gateway can attribute transactions.
const GameName = "plinko"

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into Ledger to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// RoundStore is the minimal state-store interface the ledger needs.
// Implemented by store.Client.
type RoundStore interface {
	LoadRoundState(ctx context.Context, market string) (*domain.RoundState, error)
	AppendWager(ctx context.Context, market, roundID string, w *domain.Wager, ttl time.Duration) (int, error)
	RemoveWager(ctx context.Context, market, roundID, playerID, transactionID string) (*domain.Wager, error)
}

// BetRecorder is the RTP-tracker capability the ledger needs.
// Implemented by rtp.Tracker.
type BetRecorder interface {
	RecordBet(ctx context.Context, market string, amount float64)
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────────────────────────────────

// Ledger orchestrates wager placement and cancellation. Money moves through
// the wallet gateway first; only a successfully debited wager enters the
// round's wager hash, so the payout pipeline can trust every entry it reads.
type Ledger struct {
	store    RoundStore
	gateway  wallet.Gateway
	recorder BetRecorder
	cfg      *config.GameConfig
	logger   *slog.Logger
}

// NewLedger creates a Ledger.
func NewLedger(store RoundStore, gateway wallet.Gateway, recorder BetRecorder,
	cfg *config.GameConfig, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:    store,
		gateway:  gateway,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// PlaceBetResult is the reply to an accepted wager.
type PlaceBetResult struct {
	Status        string  `json:"status"` // "ACCEPTED"
	NewBalance    float64 `json:"newBalance"`
	RoundID       string  `json:"roundId"`
	TransactionID string  `json:"transactionId"`
}

// CancelBetResult is the reply to a successful cancellation.
type CancelBetResult struct {
	Status       string  `json:"status"` // "CANCELLED"
	RefundAmount float64 `json:"refundAmount"`
	NewBalance   float64 `json:"newBalance"`
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet validates the request, debits the wallet, and appends the wager
// to the round's hash. The append runs as an atomic store-side script, so
// after PlaceBet returns the wager is visible to the round's payout pipeline
// regardless of what happens to the connection.
func (l *Ledger) PlaceBet(ctx context.Context, sess *domain.Session, amount float64, symbols []string) (*PlaceBetResult, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrAuthRequired
	}

	// ── 1. Round must be accepting wagers ────────────────────────────────────
	state, err := l.store.LoadRoundState(ctx, sess.Market)
	if err != nil {
		return nil, domain.ErrBettingClosed
	}
	if !state.Phase.CanWager() {
		return nil, domain.ErrBettingClosed
	}

	// ── 2. Input validation ──────────────────────────────────────────────────
	w := &domain.Wager{
		TransactionID: uuid.NewString(),
		PlayerID:      sess.PlayerID,
		TenantID:      sess.TenantID,
		SessionToken:  sess.SessionToken,
		Currency:      sess.Currency,
		Amount:        amount,
		Symbols:       symbols,
		PlacedAt:      time.Now().UTC(),
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	// ── 3. Debit first — money before bookkeeping ────────────────────────────
	res, err := l.gateway.Debit(ctx, wallet.DebitRequest{
		SessionToken:  sess.SessionToken,
		BetAmount:     amount,
		Currency:      sess.Currency,
		TransactionID: w.TransactionID,
		PlayerID:      sess.PlayerID,
		TenantID:      sess.TenantID,
		Metadata: wallet.Metadata{
			"game":     GameName,
			"roundId":  state.RoundID,
			"symbols":  symbols,
			"tenantId": sess.TenantID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ledger.PlaceBet: %w", err)
	}

	// ── 4. Telemetry before visibility ───────────────────────────────────────
	l.recorder.RecordBet(ctx, sess.Market, amount)

	// ── 5. Append to the round's wager hash ──────────────────────────────────
	if _, err := l.store.AppendWager(ctx, sess.Market, state.RoundID, w, l.cfg.RoundKeyTTL); err != nil {
		// The debit already happened; give the money back and surface failure.
		l.refundAfterLedgerError(sess, w, state.RoundID)
		return nil, fmt.Errorf("ledger.PlaceBet: append wager: %w", err)
	}

	l.logger.Info("wager placed",
		"market", sess.Market, "roundId", state.RoundID,
		"playerId", sess.PlayerID, "txId", w.TransactionID,
		"amount", amount, "symbols", symbols)

	return &PlaceBetResult{
		Status:        "ACCEPTED",
		NewBalance:    res.NewBalance,
		RoundID:       state.RoundID,
		TransactionID: w.TransactionID,
	}, nil
}

// refundAfterLedgerError compensates a debit whose wager never reached the
// hash. Best-effort: a second failure leaves a reconciliation trail.
func (l *Ledger) refundAfterLedgerError(sess *domain.Session, w *domain.Wager, roundID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.gateway.Credit(ctx, wallet.CreditRequest{
		SessionToken:  sess.SessionToken,
		WinAmount:     w.Amount,
		Currency:      w.Currency,
		TransactionID: uuid.NewString(),
		PlayerID:      sess.PlayerID,
		TenantID:      sess.TenantID,
		Type:          wallet.CreditTypeRefund,
		Metadata: wallet.Metadata{
			"game":          GameName,
			"reason":        "ledger_error",
			"originalRound": roundID,
			"originalBetId": w.TransactionID,
		},
	})
	if err != nil {
		l.logger.Error("debited wager lost and refund failed — manual reconciliation required",
			"critical", true,
			"market", sess.Market, "playerId", sess.PlayerID,
			"txId", w.TransactionID, "amount", w.Amount, "err", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// CancelBet
// ──────────────────────────────────────────────────────────────────────────────

// CancelBet removes the player's wager and refunds the stake. Removal runs
// as an atomic store-side script; the refund credit follows. A refund
// failure after removal is logged at critical severity — the debit has
// already happened and the wager is gone.
func (l *Ledger) CancelBet(ctx context.Context, sess *domain.Session, transactionID string) (*CancelBetResult, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrAuthRequired
	}

	// ── 1. Cancellation is only possible while betting is open ───────────────
	state, err := l.store.LoadRoundState(ctx, sess.Market)
	if err != nil {
		return nil, domain.ErrBettingClosed
	}
	if !state.Phase.CanWager() {
		return nil, domain.ErrBettingClosed
	}

	// ── 2. Atomic remove ─────────────────────────────────────────────────────
	removed, err := l.store.RemoveWager(ctx, sess.Market, state.RoundID, sess.PlayerID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ledger.CancelBet: %w", err)
	}

	// ── 3. Refund the stake ──────────────────────────────────────────────────
	res, err := l.gateway.Credit(ctx, wallet.CreditRequest{
		SessionToken:  sess.SessionToken,
		WinAmount:     removed.Amount,
		Currency:      removed.Currency,
		TransactionID: uuid.NewString(),
		PlayerID:      sess.PlayerID,
		TenantID:      sess.TenantID,
		Type:          wallet.CreditTypeRefund,
		Metadata: wallet.Metadata{
			"game":          GameName,
			"reason":        "user_cancel",
			"originalBetId": removed.TransactionID,
		},
	})
	if err != nil {
		l.logger.Error("wager removed but refund credit failed — manual reconciliation required",
			"critical", true,
			"market", sess.Market, "playerId", sess.PlayerID,
			"txId", transactionID, "amount", removed.Amount, "err", err)
		return nil, domain.ErrCancellationFailed
	}

	l.logger.Info("wager cancelled",
		"market", sess.Market, "roundId", state.RoundID,
		"playerId", sess.PlayerID, "txId", transactionID, "refund", removed.Amount)

	return &CancelBetResult{
		Status:       "CANCELLED",
		RefundAmount: removed.Amount,
		NewBalance:   res.NewBalance,
	}, nil
}
