package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/evetabi/plinko/internal/domain"
	"github.com/evetabi/plinko/internal/ledger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 4096             // bytes; inbound frames are small commands
	sendBufferSize = 256              // messages in each client send channel
	commandTimeout = 10 * time.Second // upper bound on one wager command
)

// ──────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces
// ──────────────────────────────────────────────────────────────────────────────

// SessionSource resolves a session token to a player session.
// Implemented by store.Client.
type SessionSource interface {
	LookupSession(ctx context.Context, token string) (*domain.Session, error)
}

// BetService handles the wager commands arriving over the socket.
// Implemented by ledger.Ledger.
type BetService interface {
	PlaceBet(ctx context.Context, sess *domain.Session, amount float64, symbols []string) (*ledger.PlaceBetResult, error)
	CancelBet(ctx context.Context, sess *domain.Session, transactionID string) (*ledger.CancelBetResult, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket endpoint. A client belongs to at
// most one market room at a time, plus its private balance room when
// authenticated.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte // buffered outbound message queue
	sess   *domain.Session
	market string
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub maintains the room membership of connected clients and routes
// broadcasts. Rooms are "market:{name}" for round-state fan-out and
// "balance:{playerId}" for per-player settlement events.
// Run() must be called in a dedicated goroutine before ServeWs is used.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	sessions  SessionSource
	bets      BetService
	jwtSecret []byte
	logger    *slog.Logger

	// upgrader is safe for concurrent use after construction.
	upgrader websocket.Upgrader
}

// NewHub creates a Hub ready to be started with Run(). jwtSecret may be nil;
// tokens that miss the session store are then rejected instead of falling
// back to JWT claims.
func NewHub(sessions SessionSource, bets BetService, jwtSecret []byte,
	allowedOrigins []string, logger *slog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sessions:   sessions,
		bets:       bets,
		jwtSecret:  jwtSecret,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

func marketRoom(market string) string   { return "market:" + market }
func balanceRoom(playerID string) string { return "balance:" + playerID }

// ──────────────────────────────────────────────────────────────────────────────
// Run — hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration and unregistration sequentially. Call it once
// as a goroutine; it exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if client.market != "" {
				h.joinLocked(client, marketRoom(client.market))
			}
			if client.sess != nil {
				h.joinLocked(client, balanceRoom(client.sess.PlayerID))
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()
		}
	}
}

// joinLocked adds a client to a room. Caller holds h.mu.
func (h *Hub) joinLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
}

// dropLocked removes a client from every room and closes its send channel.
// Caller holds h.mu.
func (h *Hub) dropLocked(client *Client) {
	removed := false
	for room, members := range h.rooms {
		if members[client] {
			delete(members, client)
			removed = true
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	if removed {
		close(client.send)
	}
}

// switchMarket moves a client to another market room.
func (h *Hub) switchMarket(client *Client, market string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client.market != "" {
		if members, ok := h.rooms[marketRoom(client.market)]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, marketRoom(client.market))
			}
		}
	}
	client.market = market
	if client.sess != nil {
		client.sess.Market = market
	}
	h.joinLocked(client, marketRoom(market))
}

// RoomCount returns the number of clients in a market's room.
func (h *Hub) RoomCount(market string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[marketRoom(market)])
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs — HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades an HTTP request to a WebSocket connection. The client
// names its market with ?market= and authenticates with ?token=; an
// unauthenticated connection is spectator-only (state broadcasts, no wagers).
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}

	market := r.URL.Query().Get("market")
	token := r.URL.Query().Get("token")
	sess := h.authenticate(r.Context(), token)
	if sess != nil && sess.Market == "" {
		sess.Market = market
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		sess:   sess,
		market: market,
	}
	h.register <- client

	// A token that resolved to nothing leaves the client in spectator mode;
	// say so up front rather than on its first rejected wager.
	if token != "" && sess == nil {
		client.sendError("", domain.ErrInvalidSession, "")
	}

	go client.writePump()
	go client.readPump()
}

// authenticate resolves a token to a session: the session store first, then
// JWT claims when a secret is configured. Returns nil for anonymous.
func (h *Hub) authenticate(ctx context.Context, token string) *domain.Session {
	if token == "" {
		return nil
	}
	sess, err := h.sessions.LookupSession(ctx, token)
	if err == nil {
		return sess
	}
	if !errors.Is(err, domain.ErrInvalidSession) {
		h.logger.Warn("session lookup failed", "err", err)
	}
	if len(h.jwtSecret) == 0 {
		return nil
	}
	return h.parseJWT(token)
}

// parseJWT builds a session from a signed token's subject claim.
// Returns nil on any failure (treated as anonymous).
func (h *Hub) parseJWT(tokenString string) *domain.Session {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return nil
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil
	}
	sess := &domain.Session{
		PlayerID:     sub,
		SessionToken: tokenString,
	}
	if cur, ok := claims["currency"].(string); ok {
		sess.Currency = cur
	}
	if tid, ok := claims["tenantId"].(string); ok {
		sess.TenantID = tid
	}
	return sess
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and writes messages to the
// WebSocket connection. It also sends ping frames every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads command frames, dispatches them, and unregisters the client
// when the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("ws unexpected close", "err", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("", domain.ErrInvalidSelection, "malformed message")
			continue
		}
		c.dispatch(&msg)
	}
}

// dispatch routes one inbound command.
func (c *Client) dispatch(msg *ClientMessage) {
	switch msg.Type {
	case MsgTypeSubscribe:
		if msg.Market != "" {
			c.hub.switchMarket(c, msg.Market)
		}

	case MsgTypePlaceBet:
		if c.sess == nil {
			c.sendError(MsgTypePlaceBet, domain.ErrAuthRequired, "")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		res, err := c.hub.bets.PlaceBet(ctx, c.sess, msg.Amount, msg.Stocks)
		cancel()
		if err != nil {
			c.sendError(MsgTypePlaceBet, err, "")
			return
		}
		c.sendJSON(BetResultMessage{Type: MsgTypeBetResult, Action: MsgTypePlaceBet, Result: res})

	case MsgTypeCancelBet:
		if c.sess == nil {
			c.sendError(MsgTypeCancelBet, domain.ErrAuthRequired, "")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		res, err := c.hub.bets.CancelBet(ctx, c.sess, msg.TransactionID)
		cancel()
		if err != nil {
			c.sendError(MsgTypeCancelBet, err, "")
			return
		}
		c.sendJSON(BetResultMessage{Type: MsgTypeBetResult, Action: MsgTypeCancelBet, Result: res})

	default:
		// Unknown command types are ignored so protocol additions stay
		// backward compatible.
	}
}

// sendJSON queues one message on the client's send channel, dropping it when
// the buffer is full.
func (c *Client) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// sendError maps an error to its transport code and replies to this client.
func (c *Client) sendError(action MsgType, err error, override string) {
	message := override
	if message == "" {
		message = userMessage(err)
	}
	c.sendJSON(BetErrorMessage{
		Type:    MsgTypeBetError,
		Action:  action,
		Code:    domain.ErrorCode(err),
		Message: message,
	})
}

// userMessage picks a client-safe text for an error without leaking
// wrapped internals.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrBettingClosed):
		return "Betting is closed for this round"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Invalid bet amount"
	case errors.Is(err, domain.ErrInvalidSelection):
		return "Invalid symbol selection"
	case errors.Is(err, domain.ErrWagerNotFound):
		return "Bet not found"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "Insufficient balance"
	case errors.Is(err, domain.ErrWalletUnavailable):
		return "Wallet is temporarily unavailable"
	case errors.Is(err, domain.ErrCancellationFailed):
		return "Cancellation failed"
	case domain.IsAuthError(err):
		return "Authentication required"
	default:
		return "Something went wrong"
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast helpers — implement scheduler.Broadcaster and payout.Notifier
// ──────────────────────────────────────────────────────────────────────────────

// BroadcastRoundState fans the round-state blob out to the market's room.
func (h *Hub) BroadcastRoundState(market string, state *domain.RoundState) {
	h.roomJSON(marketRoom(market), GameStateMessage{
		Type:   MsgTypeGameState,
		Market: market,
		State:  state,
	})
}

// BroadcastMarketStatus announces a circuit-breaker transition.
func (h *Hub) BroadcastMarketStatus(market, status, reason string) {
	h.roomJSON(marketRoom(market), MarketStatusMessage{
		Type:      MsgTypeMarketStatus,
		Market:    market,
		Status:    status,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}

// BroadcastRoundCancelled announces a refunded round to the market's room.
func (h *Hub) BroadcastRoundCancelled(market, message string) {
	h.roomJSON(marketRoom(market), GameErrorMessage{
		Type:      MsgTypeGameError,
		Market:    market,
		Code:      CodeRoundCancelled,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// NotifyPayout delivers a settlement summary to one player's balance room.
func (h *Hub) NotifyPayout(playerID string, summary *domain.PayoutSummary) {
	h.roomJSON(balanceRoom(playerID), PayoutMessage{
		Type:    MsgTypeGamePayout,
		Summary: summary,
	})
}

// roomJSON marshals once and queues the frame on every member of a room.
func (h *Hub) roomJSON(room string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("ws marshal failed", "room", room, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		select {
		case client.send <- data:
		default:
			// Client's buffer full; drop for this client. The writePump
			// detects a stalled connection separately.
		}
	}
}
