// Package main is the entry point for the evetabi Plinko market-wagering
// server. It wires the state store, wallet gateway, decision engine, round
// loops, and the HTTP/WebSocket surface, then runs until signalled.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evetabi/plinko/internal/api"
	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/feed"
	"github.com/evetabi/plinko/internal/ledger"
	"github.com/evetabi/plinko/internal/payout"
	"github.com/evetabi/plinko/internal/rtp"
	"github.com/evetabi/plinko/internal/scheduler"
	"github.com/evetabi/plinko/internal/store"
	"github.com/evetabi/plinko/internal/wallet"
	"github.com/evetabi/plinko/internal/ws"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting evetabi plinko server",
		"env", cfg.Server.Env, "port", cfg.Server.Port, "markets", cfg.Game.Markets)

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. State store ────────────────────────────────────────────────────────
	client, err := store.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Error("state store connection failed", "err", err)
		os.Exit(1)
	}
	defer client.Close()
	logger.Info("state store connected", "addr", cfg.Redis.Addr)

	// ── 4. Leadership lease ───────────────────────────────────────────────────
	hostname, _ := os.Hostname()
	instanceID := hostname + "-" + uuid.NewString()
	lease := store.NewLease(client, instanceID, logger)
	logger.Info("instance identity", "id", instanceID)

	// ── 5. Market-data feed ───────────────────────────────────────────────────
	provider := feed.NewStoreProvider(client)
	if cfg.Feed.IngestEnabled {
		ingester := feed.NewIngester(client, cfg, logger)
		go ingester.Run(ctx)
		logger.Info("built-in feed ingester started", "symbols", cfg.Feed.Symbols)
	}

	// ── 6. RTP governor ───────────────────────────────────────────────────────
	tracker := rtp.NewTracker(client, &cfg.RTP, logger)
	engine := rtp.NewEngine(cfg, tracker, logger)

	// ── 7. Wallet gateway ─────────────────────────────────────────────────────
	gateway := wallet.NewClient(&cfg.Wallet, logger)

	// ── 8. Ledger + WebSocket hub ─────────────────────────────────────────────
	bets := ledger.NewLedger(client, gateway, tracker, &cfg.Game, logger)
	hub := ws.NewHub(client, bets, []byte(cfg.Auth.JWTSecret), cfg.Auth.AllowedOrigins, logger)
	go hub.Run(ctx)
	logger.Info("websocket hub started")

	// ── 9. Payout pipeline + round loops ──────────────────────────────────────
	settler := payout.NewPipeline(client, gateway, tracker, hub, &cfg.Game, logger)
	sched := scheduler.NewScheduler(client, lease, provider, engine, settler, gateway, hub, cfg, logger)
	sched.Start(ctx)

	// ── 10. HTTP router ───────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		Store:   client,
		Metrics: tracker,
		Hub:     hub,
		Cfg:     cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 11. Start server ──────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 12. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	logger.Info("server stopped cleanly")
}
