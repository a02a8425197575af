// Package handler holds the read-only HTTP endpoints. All gameplay flows
// over the WebSocket; these routes let dashboards and reconnecting clients
// fetch the current picture without a socket.
package handler

import (
	"context"
	"net/http"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
	"github.com/gin-gonic/gin"
)

// StateReader reads a market's authoritative round state.
// Implemented by store.Client.
type StateReader interface {
	LoadRoundState(ctx context.Context, market string) (*domain.RoundState, error)
}

// MetricsReader reads a market's RTP counters.
// Implemented by rtp.Tracker.
type MetricsReader interface {
	Metrics(ctx context.Context, market string) domain.RTPMetrics
}

// MarketHandler serves market query endpoints.
type MarketHandler struct {
	store   StateReader
	metrics MetricsReader
	markets map[string]bool
	ordered []string
}

// NewMarketHandler creates a MarketHandler over the configured market set.
func NewMarketHandler(store StateReader, metrics MetricsReader, cfg *config.GameConfig) *MarketHandler {
	known := make(map[string]bool, len(cfg.Markets))
	for _, m := range cfg.Markets {
		known[m] = true
	}
	return &MarketHandler{
		store:   store,
		metrics: metrics,
		markets: known,
		ordered: cfg.Markets,
	}
}

// marketSummary is one row of the market list.
type marketSummary struct {
	Name    string       `json:"name"`
	Phase   domain.Phase `json:"phase,omitempty"`
	RoundID string       `json:"roundId,omitempty"`
}

// List godoc
// GET /api/markets
func (h *MarketHandler) List(c *gin.Context) {
	out := make([]marketSummary, 0, len(h.ordered))
	for _, name := range h.ordered {
		row := marketSummary{Name: name}
		if state, err := h.store.LoadRoundState(c.Request.Context(), name); err == nil {
			row.Phase = state.Phase
			row.RoundID = state.RoundID
		}
		out = append(out, row)
	}
	respondSuccess(c, http.StatusOK, out)
}

// GetState godoc
// GET /api/markets/:market/state
func (h *MarketHandler) GetState(c *gin.Context) {
	market := c.Param("market")
	if !h.markets[market] {
		respondError(c, http.StatusNotFound, "ERR_UNKNOWN_MARKET", "unknown market")
		return
	}

	state, err := h.store.LoadRoundState(c.Request.Context(), market)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NO_ROUND", "no round is running")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch round state")
		return
	}
	respondSuccess(c, http.StatusOK, state)
}

// GetRTP godoc
// GET /api/markets/:market/rtp
func (h *MarketHandler) GetRTP(c *gin.Context) {
	market := c.Param("market")
	if !h.markets[market] {
		respondError(c, http.StatusNotFound, "ERR_UNKNOWN_MARKET", "unknown market")
		return
	}
	respondSuccess(c, http.StatusOK, h.metrics.Metrics(c.Request.Context(), market))
}
