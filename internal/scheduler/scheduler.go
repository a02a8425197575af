// Package scheduler runs one round loop per market. Every loop is a single
// goroutine with exactly one pending tick; each tick re-acquires the market
// lease, checks feed health, and either waits, transitions the round to its
// next phase, or trips the circuit breaker.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
	"github.com/evetabi/plinko/internal/feed"
	"github.com/evetabi/plinko/internal/rtp"
	"github.com/evetabi/plinko/internal/wallet"
	"github.com/evetabi/plinko/internal/ws"
	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tick cadence
// ──────────────────────────────────────────────────────────────────────────────

const (
	maxTickInterval   = 1 * time.Second // cap between ticks inside a phase
	notLeaderInterval = 5 * time.Second // re-check cadence while another node leads
	unhealthyInterval = 2 * time.Second // re-check cadence while the feed is down
	errorInterval     = 5 * time.Second // backoff after a tick error or panic
	settleTimeout     = 60 * time.Second
)

// ──────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces
// ──────────────────────────────────────────────────────────────────────────────

// StateStore is the persistence surface a round loop drives.
// Implemented by store.Client.
type StateStore interface {
	SaveRoundState(ctx context.Context, market string, state *domain.RoundState) error
	LoadRoundState(ctx context.Context, market string) (*domain.RoundState, error)
	SaveStockList(ctx context.Context, market, roundID string, symbols []string, ttl time.Duration) error
	SaveStartSnapshot(ctx context.Context, market, roundID string, snap *domain.Snapshot, ttl time.Duration) error
	LoadStartSnapshot(ctx context.Context, market, roundID string) (*domain.Snapshot, error)
	SaveResults(ctx context.Context, market, roundID string, results []domain.SymbolResult, ttl time.Duration) error
	AllWagers(ctx context.Context, market, roundID string) (map[string][]domain.Wager, error)
	DeleteWagers(ctx context.Context, market, roundID string) error
}

// LeaseManager gates round-state writes to a single node per market.
// Implemented by store.Lease.
type LeaseManager interface {
	AcquireOrExtend(ctx context.Context, market string, ttl time.Duration) bool
}

// Decider turns the round's price deltas into per-symbol outcomes.
// Implemented by rtp.Engine.
type Decider interface {
	Decide(ctx context.Context, market string, deltas []rtp.Delta) []domain.SymbolResult
}

// Settler runs one round's payout processing.
// Implemented by payout.Pipeline.
type Settler interface {
	Run(ctx context.Context, market, roundID string)
}

// Broadcaster is the hub surface the loops push events through.
// Implemented by ws.Hub.
type Broadcaster interface {
	BroadcastRoundState(market string, state *domain.RoundState)
	BroadcastMarketStatus(market, status, reason string)
	BroadcastRoundCancelled(market, message string)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler owns the per-market round loops. Start(ctx) launches one
// goroutine per configured market; cancel the context to stop them.
type Scheduler struct {
	store   StateStore
	lease   LeaseManager
	feed    feed.Provider
	engine  Decider
	settler Settler
	gateway wallet.Gateway
	hub     Broadcaster
	cfg     *config.Config
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	store StateStore,
	lease LeaseManager,
	provider feed.Provider,
	engine Decider,
	settler Settler,
	gateway wallet.Gateway,
	hub Broadcaster,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		store:   store,
		lease:   lease,
		feed:    provider,
		engine:  engine,
		settler: settler,
		gateway: gateway,
		hub:     hub,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches one round loop per configured market. It returns
// immediately; the loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, market := range s.cfg.Game.Markets {
		go s.marketLoop(ctx, market)
	}
	s.logger.Info("scheduler started", "markets", s.cfg.Game.Markets)
}

// marketLoop drives one market. A single timer guarantees at most one
// pending tick; each tick returns the delay until the next one.
func (s *Scheduler) marketLoop(ctx context.Context, market string) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("round loop shutting down", "market", market)
			return
		case <-timer.C:
		}
		timer.Reset(s.safeTick(ctx, market, rng))
	}
}

// safeTick wraps tick with panic recovery so a single bad tick cannot kill
// the market's loop.
func (s *Scheduler) safeTick(ctx context.Context, market string, rng *rand.Rand) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("PANIC recovered in round loop", "market", market, "panic", r)
			next = errorInterval
		}
	}()
	return s.tick(ctx, market, rng)
}

// ──────────────────────────────────────────────────────────────────────────────
// tick
// ──────────────────────────────────────────────────────────────────────────────

// tick performs one scheduling decision for the market and returns the delay
// until the next tick.
func (s *Scheduler) tick(ctx context.Context, market string, rng *rand.Rand) time.Duration {
	// ── 1. Leadership ─────────────────────────────────────────────────────────
	if !s.lease.AcquireOrExtend(ctx, market, s.cfg.Game.LeaseTTL) {
		return notLeaderInterval
	}

	// ── 2. Feed health ────────────────────────────────────────────────────────
	snap, err := s.feed.Snapshot(ctx, market)
	if err != nil || !snap.Fresh(time.Now(), s.cfg.Feed.FreshnessWindow) {
		s.tripBreaker(ctx, market)
		return unhealthyInterval
	}

	// ── 3. Round state ────────────────────────────────────────────────────────
	state, err := s.store.LoadRoundState(ctx, market)
	if errors.Is(err, domain.ErrNoRound) {
		return s.enterBetting(ctx, market, snap, rng)
	}
	if err != nil {
		s.logger.Error("load round state failed", "market", market, "err", err)
		return errorInterval
	}

	if state.Phase == domain.PhasePaused {
		s.logger.Info("feed recovered, reopening market", "market", market)
		s.hub.BroadcastMarketStatus(market, ws.MarketStatusOpen, "market data recovered")
		return s.enterBetting(ctx, market, snap, rng)
	}

	// ── 4. Wait or transition ─────────────────────────────────────────────────
	now := time.Now()
	if !state.Expired(now) {
		if left := state.TimeLeft(now); left < maxTickInterval {
			return left
		}
		return maxTickInterval
	}

	switch state.Phase {
	case domain.PhaseBetting:
		return s.enterAccumulation(ctx, market, state, snap)
	case domain.PhaseAccumulation:
		return s.enterDropping(ctx, market, state, snap)
	case domain.PhaseDropping:
		return s.enterPayout(ctx, market, state)
	case domain.PhasePayout:
		return s.enterBetting(ctx, market, snap, rng)
	default:
		s.logger.Error("unknown phase, restarting round", "market", market, "phase", state.Phase)
		return s.enterBetting(ctx, market, snap, rng)
	}
}

// publish persists the blob, then broadcasts it. The store write comes
// first: a reconnecting client must never see a state the store does not
// already hold.
func (s *Scheduler) publish(ctx context.Context, market string, state *domain.RoundState) error {
	if err := s.store.SaveRoundState(ctx, market, state); err != nil {
		return err
	}
	s.hub.BroadcastRoundState(market, state)
	return nil
}

// tickAfter returns the delay to the next tick inside a freshly entered phase.
func tickAfter(state *domain.RoundState) time.Duration {
	if left := state.TimeLeft(time.Now()); left < maxTickInterval {
		return left
	}
	return maxTickInterval
}

// ──────────────────────────────────────────────────────────────────────────────
// Phase entries
// ──────────────────────────────────────────────────────────────────────────────

// enterBetting opens a fresh round: new round id, random symbol draw from
// the snapshot, live prices attached.
func (s *Scheduler) enterBetting(ctx context.Context, market string, snap *domain.Snapshot, rng *rand.Rand) time.Duration {
	symbols := pickSymbols(snap, s.cfg.Game.StockCount, rng)
	if len(symbols) == 0 {
		s.logger.Error("snapshot has no symbols, cannot open round", "market", market)
		return errorInterval
	}

	roundID := uuid.NewString()
	if err := s.store.SaveStockList(ctx, market, roundID, symbols, s.cfg.Game.RoundKeyTTL); err != nil {
		s.logger.Error("save stock list failed", "market", market, "err", err)
		return errorInterval
	}

	stocks := make([]domain.Stock, len(symbols))
	for i, sym := range symbols {
		price, _ := snap.PriceOf(sym)
		p := price
		stocks[i] = domain.Stock{Symbol: sym, CurrentPrice: &p}
	}

	now := time.Now()
	state := &domain.RoundState{
		Phase:      domain.PhaseBetting,
		RoundID:    roundID,
		ServerTime: now.UnixMilli(),
		EndTime:    now.Add(s.cfg.Game.BetTime).UnixMilli(),
		Stocks:     stocks,
		CanUnbet:   true,
	}
	if err := s.publish(ctx, market, state); err != nil {
		s.logger.Error("publish BETTING failed", "market", market, "err", err)
		return errorInterval
	}

	s.logger.Info("round opened",
		"market", market, "roundId", roundID, "symbols", symbols)
	return tickAfter(state)
}

// enterAccumulation freezes start prices: the snapshot taken here is the
// baseline every delta is measured against.
func (s *Scheduler) enterAccumulation(ctx context.Context, market string, prev *domain.RoundState, snap *domain.Snapshot) time.Duration {
	if err := s.store.SaveStartSnapshot(ctx, market, prev.RoundID, snap, s.cfg.Game.RoundKeyTTL); err != nil {
		s.logger.Error("save start snapshot failed", "market", market, "err", err)
		return errorInterval
	}

	stocks := make([]domain.Stock, len(prev.Stocks))
	for i, st := range prev.Stocks {
		stocks[i] = domain.Stock{Symbol: st.Symbol}
		price, ok := snap.PriceOf(st.Symbol)
		if !ok && st.CurrentPrice != nil {
			price = *st.CurrentPrice
		}
		p := price
		stocks[i].CurrentPrice = &p
		start := price
		stocks[i].StartPrice = &start
	}

	now := time.Now()
	state := &domain.RoundState{
		Phase:      domain.PhaseAccumulation,
		RoundID:    prev.RoundID,
		ServerTime: now.UnixMilli(),
		EndTime:    now.Add(s.cfg.Game.DeltaTime).UnixMilli(),
		Stocks:     stocks,
	}
	if err := s.publish(ctx, market, state); err != nil {
		s.logger.Error("publish ACCUMULATION failed", "market", market, "err", err)
		return errorInterval
	}
	return tickAfter(state)
}

// enterDropping computes deltas against the start snapshot, runs the
// decision engine, and persists the results the payout pipeline will read.
func (s *Scheduler) enterDropping(ctx context.Context, market string, prev *domain.RoundState, endSnap *domain.Snapshot) time.Duration {
	start, err := s.store.LoadStartSnapshot(ctx, market, prev.RoundID)
	if err != nil {
		s.logger.Error("load start snapshot failed", "market", market, "err", err)
	}
	if start == nil {
		// Start baseline lost: fall back to the end snapshot, which yields
		// zero deltas rather than phantom moves.
		s.logger.Warn("start snapshot missing, using end snapshot", "market", market, "roundId", prev.RoundID)
		start = endSnap
	}

	deltas := make([]rtp.Delta, 0, len(prev.Stocks))
	for _, st := range prev.Stocks {
		startPrice, ok := start.PriceOf(st.Symbol)
		if !ok && st.StartPrice != nil {
			startPrice = *st.StartPrice
		}
		endPrice, ok := endSnap.PriceOf(st.Symbol)
		if !ok {
			endPrice = startPrice
		}
		deltas = append(deltas, rtp.Delta{
			Symbol: st.Symbol,
			Value:  domain.PriceDelta(startPrice, endPrice),
		})
	}

	results := s.engine.Decide(ctx, market, deltas)
	if err := s.store.SaveResults(ctx, market, prev.RoundID, results, s.cfg.Game.RoundKeyTTL); err != nil {
		s.logger.Error("save results failed", "market", market, "err", err)
		return errorInterval
	}

	stocks := make([]domain.Stock, len(results))
	for i, res := range results {
		startPrice, _ := start.PriceOf(res.Symbol)
		endPrice, ok := endSnap.PriceOf(res.Symbol)
		if !ok {
			endPrice = startPrice
		}
		sp, ep := startPrice, endPrice
		d, idx, mult := res.Delta, res.MultiplierIndex, res.Multiplier
		stocks[i] = domain.Stock{
			Symbol:          res.Symbol,
			CurrentPrice:    &ep,
			StartPrice:      &sp,
			Delta:           &d,
			MultiplierIndex: &idx,
			Multiplier:      &mult,
		}
	}

	now := time.Now()
	state := &domain.RoundState{
		Phase:      domain.PhaseDropping,
		RoundID:    prev.RoundID,
		ServerTime: now.UnixMilli(),
		EndTime:    now.Add(s.cfg.Game.DropTime).UnixMilli(),
		Stocks:     stocks,
	}
	if err := s.publish(ctx, market, state); err != nil {
		s.logger.Error("publish DROPPING failed", "market", market, "err", err)
		return errorInterval
	}

	s.logger.Info("round results announced", "market", market, "roundId", prev.RoundID)
	return tickAfter(state)
}

// enterPayout publishes the PAYOUT phase and detaches the settlement run so
// slow wallet credits never stall the round loop.
func (s *Scheduler) enterPayout(ctx context.Context, market string, prev *domain.RoundState) time.Duration {
	now := time.Now()
	state := &domain.RoundState{
		Phase:      domain.PhasePayout,
		RoundID:    prev.RoundID,
		ServerTime: now.UnixMilli(),
		EndTime:    now.Add(s.cfg.Game.PayoutTime).UnixMilli(),
		Stocks:     prev.Stocks,
	}
	if err := s.publish(ctx, market, state); err != nil {
		s.logger.Error("publish PAYOUT failed", "market", market, "err", err)
		return errorInterval
	}

	// Detached from the loop context: an in-flight settlement must finish
	// even if the process is shutting down the loops.
	go func(roundID string) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("PANIC recovered in settlement", "market", market, "roundId", roundID, "panic", r)
			}
		}()
		sctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		defer cancel()
		s.settler.Run(sctx, market, roundID)
	}(prev.RoundID)

	return tickAfter(state)
}

// ──────────────────────────────────────────────────────────────────────────────
// Circuit breaker
// ──────────────────────────────────────────────────────────────────────────────

// tripBreaker pauses the market on a stale or missing feed. A round that was
// still collecting wagers is cancelled and refunded before the pause.
func (s *Scheduler) tripBreaker(ctx context.Context, market string) {
	state, err := s.store.LoadRoundState(ctx, market)
	if err != nil && !errors.Is(err, domain.ErrNoRound) {
		s.logger.Error("breaker: load round state failed", "market", market, "err", err)
		return
	}
	if state != nil && state.Phase == domain.PhasePaused {
		return // already paused; keep waiting for recovery
	}

	if state != nil && (state.Phase == domain.PhaseBetting || state.Phase == domain.PhaseAccumulation) {
		s.logger.Warn("breaker: cancelling live round",
			"market", market, "roundId", state.RoundID, "phase", state.Phase)
		s.hub.BroadcastRoundCancelled(market, "Bets refunded")
		s.refundRound(ctx, market, state.RoundID)
	}

	now := time.Now()
	paused := &domain.RoundState{
		Phase:      domain.PhasePaused,
		ServerTime: now.UnixMilli(),
		EndTime:    now.UnixMilli(),
		NextCheck:  now.Add(unhealthyInterval).UnixMilli(),
		Message:    "Market data unstable",
	}
	if err := s.publish(ctx, market, paused); err != nil {
		s.logger.Error("breaker: publish PAUSED failed", "market", market, "err", err)
		return
	}
	s.hub.BroadcastMarketStatus(market, ws.MarketStatusClosed, "market data unavailable")
	s.logger.Warn("market paused", "market", market)
}

// refundRound credits every wager of the cancelled round back to its player
// and clears the wager hash. Credit failures are logged per wager for
// reconciliation; the hash is cleared regardless so the round cannot settle.
func (s *Scheduler) refundRound(ctx context.Context, market, roundID string) {
	wagers, err := s.store.AllWagers(ctx, market, roundID)
	if err != nil {
		s.logger.Error("breaker: load wagers for refund failed",
			"critical", true, "market", market, "roundId", roundID, "err", err)
		return
	}

	for playerID, list := range wagers {
		for _, w := range list {
			_, err := s.gateway.Credit(ctx, wallet.CreditRequest{
				SessionToken:  w.SessionToken,
				WinAmount:     w.Amount,
				Currency:      w.Currency,
				TransactionID: uuid.NewString(),
				PlayerID:      w.PlayerID,
				TenantID:      w.TenantID,
				Type:          wallet.CreditTypeRefund,
				Metadata: wallet.Metadata{
					"game":          "plinko",
					"reason":        "market_outage",
					"originalRound": roundID,
					"originalBetId": w.TransactionID,
				},
			})
			if err != nil {
				s.logger.Error("breaker: refund credit failed — manual reconciliation required",
					"critical", true,
					"market", market, "playerId", playerID,
					"wagerTxId", w.TransactionID, "amount", w.Amount, "err", err)
			}
		}
	}

	if err := s.store.DeleteWagers(ctx, market, roundID); err != nil {
		s.logger.Error("breaker: clear wager hash failed", "market", market, "roundId", roundID, "err", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Symbol draw
// ──────────────────────────────────────────────────────────────────────────────

// pickSymbols draws up to count distinct symbols from the snapshot,
// uniformly at random. Fewer symbols than count means all of them play.
func pickSymbols(snap *domain.Snapshot, count int, rng *rand.Rand) []string {
	symbols := make([]string, 0, len(snap.Symbols))
	for sym := range snap.Symbols {
		symbols = append(symbols, sym)
	}
	rng.Shuffle(len(symbols), func(i, j int) {
		symbols[i], symbols[j] = symbols[j], symbols[i]
	})
	if len(symbols) > count {
		symbols = symbols[:count]
	}
	return symbols
}
