// Package wallet is the outbound HTTP client for the platform wallet
// gateway. The gateway exposes a debit/credit endpoint pair; every request
// is signed with an HMAC over method, path, body, and timestamp.
package wallet

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/evetabi/plinko/internal/config"
	"github.com/evetabi/plinko/internal/domain"
)

const (
	pathDebit  = "/api/transactions/bet"
	pathCredit = "/api/transactions/credit"
)

// Credit types understood by the gateway.
const (
	CreditTypeWin    = "win"
	CreditTypeRefund = "refund"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request / response shapes
// ──────────────────────────────────────────────────────────────────────────────

// Metadata is the free-form context object attached to gateway calls.
type Metadata map[string]interface{}

// DebitRequest is the body of a bet debit.
type DebitRequest struct {
	SessionToken  string   `json:"sessionToken"`
	BetAmount     float64  `json:"betAmount"`
	Currency      string   `json:"currency"`
	TransactionID string   `json:"transactionId"`
	PlayerID      string   `json:"playerId,omitempty"`
	TenantID      string   `json:"tenantId,omitempty"`
	Metadata      Metadata `json:"metadata,omitempty"`
}

// CreditRequest is the body of a win or refund credit.
type CreditRequest struct {
	SessionToken  string   `json:"sessionToken"`
	WinAmount     float64  `json:"winAmount"`
	Currency      string   `json:"currency"`
	TransactionID string   `json:"transactionId"`
	PlayerID      string   `json:"playerId,omitempty"`
	TenantID      string   `json:"tenantId,omitempty"`
	Type          string   `json:"type,omitempty"` // "win" | "refund"
	Metadata      Metadata `json:"metadata,omitempty"`
}

// Result is the gateway's transaction outcome.
type Result struct {
	Status     string  `json:"status"` // SUCCESS | FAILED
	NewBalance float64 `json:"newBalance"`
	Message    string  `json:"message,omitempty"`
}

// Success reports whether the gateway accepted the transaction.
func (r *Result) Success() bool {
	return r.Status == "SUCCESS"
}

// envelope is the gateway's outer response shape.
type envelope struct {
	Status string `json:"status"`
	Data   Result `json:"data"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Gateway is the capability consumed by the ledger, payout pipeline, and
// refunder. Implemented by Client; tests supply fakes.
type Gateway interface {
	Debit(ctx context.Context, req DebitRequest) (*Result, error)
	Credit(ctx context.Context, req CreditRequest) (*Result, error)
}

// Client talks to the wallet gateway over HTTP with signed requests.
// Stateless; safe for concurrent use. The HTTP connection pool bounds
// concurrency toward the gateway.
type Client struct {
	http    *http.Client
	baseURL string
	secret  []byte
	logger  *slog.Logger
}

// NewClient builds a wallet client from configuration.
func NewClient(cfg *config.WalletConfig, logger *slog.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		baseURL: cfg.BaseURL,
		secret:  []byte(cfg.SignatureSecret),
		logger:  logger,
	}
}

// Debit charges the player's wallet for a wager. A transport-level failure
// maps to domain.ErrWalletUnavailable; a FAILED reply maps to
// domain.ErrInsufficientBalance with the gateway result attached.
func (c *Client) Debit(ctx context.Context, req DebitRequest) (*Result, error) {
	res, err := c.post(ctx, pathDebit, req)
	if err != nil {
		return nil, fmt.Errorf("wallet.Debit tx %s: %w", req.TransactionID, err)
	}
	if !res.Success() {
		return res, fmt.Errorf("wallet.Debit tx %s: %s: %w",
			req.TransactionID, res.Message, domain.ErrInsufficientBalance)
	}
	return res, nil
}

// Credit pays a win or refund into the player's wallet. A transport-level
// failure maps to domain.ErrWalletUnavailable. A FAILED reply is returned
// as a plain error; the caller decides whether it is critical.
func (c *Client) Credit(ctx context.Context, req CreditRequest) (*Result, error) {
	res, err := c.post(ctx, pathCredit, req)
	if err != nil {
		return nil, fmt.Errorf("wallet.Credit tx %s: %w", req.TransactionID, err)
	}
	if !res.Success() {
		return res, fmt.Errorf("wallet.Credit tx %s: gateway replied FAILED: %s",
			req.TransactionID, res.Message)
	}
	return res, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Transport
// ──────────────────────────────────────────────────────────────────────────────

// post sends a signed POST and decodes the response envelope.
func (c *Client) post(ctx context.Context, path string, body interface{}) (*Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-timestamp", timestamp)
	req.Header.Set("x-signature", c.sign(http.MethodPost, path, payload, timestamp))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrWalletUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %w", resp.StatusCode, domain.ErrWalletUnavailable)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", domain.ErrWalletUnavailable)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", domain.ErrWalletUnavailable)
	}
	return &env.Data, nil
}

// sign computes the request signature:
//
//	hex(HMAC-SHA256(secret, METHOD || path || body || timestamp))
//
// The body bytes are the exact compact JSON sent on the wire, so the
// gateway can verify against what it received.
func (c *Client) sign(method, path string, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}
