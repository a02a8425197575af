// Package payout settles a finished round: it reads the persisted results
// and the round's wager hash, computes per-player and per-bet payouts,
// credits the wallet, notifies players, and feeds the RTP counters.
package payout

import (
	"context"
	"log/slog"
	"sync"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
	"github.com/evetabi/plinko/internal/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into the pipeline
// ──────────────────────────────────────────────────────────────────────────────

// RoundReader is the state-store capability the pipeline needs.
// Implemented by store.Client.
type RoundReader interface {
	LoadResults(ctx context.Context, market, roundID string) ([]domain.SymbolResult, error)
	AllWagers(ctx context.Context, market, roundID string) (map[string][]domain.Wager, error)
	DeleteRoundKeys(ctx context.Context, market, roundID string) error
	DeleteWagers(ctx context.Context, market, roundID string) error
}

// WinRecorder is the RTP-tracker capability the pipeline needs.
// Implemented by rtp.Tracker.
type WinRecorder interface {
	RecordWin(ctx context.Context, market string, amount float64)
}

// Notifier delivers the aggregated payout event to a player's balance room.
// Implemented by ws.Hub.
type Notifier interface {
	NotifyPayout(playerID string, summary *domain.PayoutSummary)
}

// ──────────────────────────────────────────────────────────────────────────────
// Pipeline
// ──────────────────────────────────────────────────────────────────────────────

// Pipeline processes one round's payouts. The scheduler runs it as a
// detached task at PAYOUT entry; it never blocks a scheduler tick.
type Pipeline struct {
	store    RoundReader
	gateway  wallet.Gateway
	recorder WinRecorder
	notifier Notifier
	workers  int
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline with bounded credit parallelism.
func NewPipeline(store RoundReader, gateway wallet.Gateway, recorder WinRecorder,
	notifier Notifier, cfg *config.GameConfig, logger *slog.Logger) *Pipeline {
	workers := cfg.PayoutWorkers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		store:    store,
		gateway:  gateway,
		recorder: recorder,
		notifier: notifier,
		workers:  workers,
		logger:   logger,
	}
}

// Run settles the round. Credit failures are logged per bet and never abort
// the round; the player still receives the computed totals. The wager hash
// and results key are deleted only after every credit has completed.
func (p *Pipeline) Run(ctx context.Context, market, roundID string) {
	results, err := p.store.LoadResults(ctx, market, roundID)
	if err != nil {
		p.logger.Error("payout: load results failed", "market", market, "roundId", roundID, "err", err)
		return
	}
	wagers, err := p.store.AllWagers(ctx, market, roundID)
	if err != nil {
		p.logger.Error("payout: load wagers failed", "market", market, "roundId", roundID, "err", err)
		return
	}
	if len(results) == 0 || len(wagers) == 0 {
		// Nothing to settle; make sure stray entries cannot leak into a
		// future round.
		if err := p.store.DeleteWagers(ctx, market, roundID); err != nil {
			p.logger.Warn("payout: cleanup of empty round failed", "market", market, "err", err)
		}
		return
	}

	// Credit fan-out with bounded parallelism. The semaphore spans all
	// players so the gateway sees at most `workers` in-flight credits.
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.workers)

	for playerID, list := range wagers {
		summary := p.settlePlayer(ctx, market, roundID, playerID, list, results, &wg, sem)

		if p.notifier != nil {
			p.notifier.NotifyPayout(playerID, summary)
		}
		// One RecordWin per player with the player's round total; the sum
		// across players equals the round's total payout.
		p.recorder.RecordWin(ctx, market, summary.TotalPayout)

		p.logger.Info("player settled",
			"market", market, "roundId", roundID, "playerId", playerID,
			"totalWager", summary.TotalWager, "totalPayout", summary.TotalPayout)
	}

	wg.Wait()

	if err := p.store.DeleteRoundKeys(ctx, market, roundID); err != nil {
		p.logger.Warn("payout: round cleanup failed", "market", market, "roundId", roundID, "err", err)
	}
}

// settlePlayer computes one player's breakdown and issues their win credits.
func (p *Pipeline) settlePlayer(ctx context.Context, market, roundID, playerID string,
	list []domain.Wager, results []domain.SymbolResult,
	wg *sync.WaitGroup, sem chan struct{}) *domain.PayoutSummary {

	summary := &domain.PayoutSummary{
		RoundID: roundID,
		Bets:    make([]domain.BetBreakdown, 0, len(list)),
	}

	totalWager := decimal.Zero
	totalPayout := decimal.Zero

	for _, w := range list {
		if summary.Currency == "" {
			summary.Currency = w.Currency
		}

		betWin := betPayout(&w, results)
		winF, _ := betWin.Float64()

		amt := decimal.NewFromFloat(w.Amount)
		totalWager = totalWager.Add(amt)
		totalPayout = totalPayout.Add(betWin)

		multiplier := decimal.Zero
		if !amt.IsZero() {
			multiplier = betWin.Div(amt).Round(4)
		}
		mF, _ := multiplier.Float64()

		summary.Bets = append(summary.Bets, domain.BetBreakdown{
			BetID:      w.TransactionID,
			Symbols:    w.Symbols,
			Wager:      w.Amount,
			Payout:     winF,
			Multiplier: mF,
		})

		if winF > 0 {
			wg.Add(1)
			go p.creditWin(ctx, market, w, winF, wg, sem)
		}
	}

	summary.TotalWager, _ = totalWager.Round(2).Float64()
	summary.TotalPayout, _ = totalPayout.Round(2).Float64()
	summary.NetProfit = summary.TotalPayout - summary.TotalWager
	return summary
}

// creditWin issues a single win credit under the shared semaphore.
// Attempted once; failure is logged for reconciliation, not retried.
func (p *Pipeline) creditWin(ctx context.Context, market string, w domain.Wager,
	amount float64, wg *sync.WaitGroup, sem chan struct{}) {
	defer wg.Done()
	sem <- struct{}{}
	defer func() { <-sem }()

	_, err := p.gateway.Credit(ctx, wallet.CreditRequest{
		SessionToken:  w.SessionToken,
		WinAmount:     amount,
		Currency:      w.Currency,
		TransactionID: uuid.NewString(),
		PlayerID:      w.PlayerID,
		TenantID:      w.TenantID,
		Type:          wallet.CreditTypeWin,
		Metadata: wallet.Metadata{
			"game":      "plinko",
			"wagerTxId": w.TransactionID,
		},
	})
	if err != nil {
		p.logger.Error("win credit failed — manual reconciliation required",
			"critical", true,
			"market", market, "playerId", w.PlayerID,
			"wagerTxId", w.TransactionID, "amount", amount, "err", err)
	}
}

// betPayout computes a single wager's payout:
//
//	betPerSymbol = amount / len(symbols)
//	payout       = Σ betPerSymbol × multiplier(symbol)
//
// A symbol missing from the results contributes 0.
func betPayout(w *domain.Wager, results []domain.SymbolResult) decimal.Decimal {
	if len(w.Symbols) == 0 {
		return decimal.Zero
	}
	perSymbol := decimal.NewFromFloat(w.Amount).Div(decimal.NewFromInt(int64(len(w.Symbols))))

	total := decimal.Zero
	for _, sym := range w.Symbols {
		mult := domain.MultiplierOf(results, sym)
		if mult == 0 {
			continue
		}
		total = total.Add(perSymbol.Mul(decimal.NewFromFloat(mult)))
	}
	return total.Round(2)
}
