// Package ws holds the WebSocket message vocabulary and the Hub
// implementation. messages.go defines every frame exchanged with clients.
package ws

import (
	"time"

	"github.com/evetabi/plinko/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

// Server → client.
const (
	MsgTypeGameState    MsgType = "game:state"
	MsgTypeGamePayout   MsgType = "game:payout"
	MsgTypeGameError    MsgType = "game:error"
	MsgTypeMarketStatus MsgType = "market-status"
	MsgTypeBetResult    MsgType = "bet_result"
	MsgTypeBetError     MsgType = "bet_error"
)

// Client → server.
const (
	MsgTypePlaceBet  MsgType = "place_bet"
	MsgTypeCancelBet MsgType = "cancel_bet"
	MsgTypeSubscribe MsgType = "subscribe"
)

// Market status values carried by MarketStatusMessage.
const (
	MarketStatusOpen   = "OPEN"
	MarketStatusClosed = "CLOSED"
)

// CodeRoundCancelled is the game:error code for a circuit-breaker refund.
const CodeRoundCancelled = "ROUND_CANCELLED"

// ──────────────────────────────────────────────────────────────────────────────
// GameStateMessage — full round state, broadcast on every phase transition.
// ──────────────────────────────────────────────────────────────────────────────

// GameStateMessage carries the authoritative round-state blob for a market.
// Clients render the whole frame; nothing is patched incrementally.
type GameStateMessage struct {
	Type   MsgType            `json:"type"`
	Market string             `json:"market"`
	State  *domain.RoundState `json:"state"`
}

// ──────────────────────────────────────────────────────────────────────────────
// PayoutMessage — one player's aggregated round settlement.
// ──────────────────────────────────────────────────────────────────────────────

// PayoutMessage is delivered to a single player's balance room after the
// payout pipeline settles their wagers for a round.
type PayoutMessage struct {
	Type    MsgType               `json:"type"`
	Market  string                `json:"market,omitempty"`
	Summary *domain.PayoutSummary `json:"summary"`
}

// ──────────────────────────────────────────────────────────────────────────────
// GameErrorMessage — round-level failure broadcast to a market room.
// ──────────────────────────────────────────────────────────────────────────────

// GameErrorMessage announces a round-level failure, e.g. a circuit-breaker
// cancellation with refunds.
type GameErrorMessage struct {
	Type      MsgType   `json:"type"`
	Market    string    `json:"market"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketStatusMessage — circuit breaker open/close announcements.
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatusMessage tells clients whether a market is accepting rounds.
type MarketStatusMessage struct {
	Type      MsgType   `json:"type"`
	Market    string    `json:"market"`
	Status    string    `json:"status"` // OPEN | CLOSED
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// BetResultMessage / BetErrorMessage — per-client command replies.
// ──────────────────────────────────────────────────────────────────────────────

// BetResultMessage is the success reply to place_bet or cancel_bet,
// addressed to the issuing client only. Result is the ledger's reply struct.
type BetResultMessage struct {
	Type   MsgType     `json:"type"`
	Action MsgType     `json:"action"` // the command this replies to
	Result interface{} `json:"result"`
}

// BetErrorMessage is the failure reply to a client command.
type BetErrorMessage struct {
	Type    MsgType `json:"type"`
	Action  MsgType `json:"action"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ClientMessage — the single inbound frame shape.
// ──────────────────────────────────────────────────────────────────────────────

// ClientMessage is the envelope for every client command. Fields beyond Type
// are read per command: place_bet uses Amount and Stocks, cancel_bet uses
// TransactionID, subscribe uses Market.
type ClientMessage struct {
	Type          MsgType  `json:"type"`
	Market        string   `json:"market,omitempty"`
	Amount        float64  `json:"amount,omitempty"`
	Stocks        []string `json:"stocks,omitempty"`
	TransactionID string   `json:"transactionId,omitempty"`
}
