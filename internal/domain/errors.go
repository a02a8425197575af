package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Wager / round errors
var (
	// ErrBettingClosed is returned when a wager or cancellation is attempted
	// outside the BETTING phase.
	ErrBettingClosed = errors.New("betting is closed for this round")

	// ErrInvalidAmount is returned when the wager amount is zero or negative.
	ErrInvalidAmount = errors.New("wager amount must be positive")

	// ErrInvalidSelection is returned when the symbol selection is empty,
	// too large, or contains duplicates.
	ErrInvalidSelection = errors.New("invalid symbol selection")

	// ErrWagerNotFound is returned on cancellation of an unknown transaction.
	ErrWagerNotFound = errors.New("wager not found")

	// ErrNoRound is returned when a market has no active round state.
	ErrNoRound = errors.New("no active round for market")

	// ErrNoSnapshot is returned when the market-data feed has no snapshot.
	ErrNoSnapshot = errors.New("no market-data snapshot available")
)

// Wallet errors
var (
	// ErrInsufficientBalance is returned when the wallet debit replied FAILED.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrWalletUnavailable is returned when a wallet call failed at the
	// transport level (timeout, network, non-2xx HTTP).
	ErrWalletUnavailable = errors.New("wallet gateway unavailable")

	// ErrCancellationFailed is returned when the bet was removed from the
	// ledger but the refund credit raised. The debit has already happened;
	// this condition is logged at critical severity for reconciliation.
	ErrCancellationFailed = errors.New("wager cancelled but refund credit failed")
)

// Connection-time errors
var (
	// ErrAuthRequired is returned when an operation needs an authenticated
	// session and none is present.
	ErrAuthRequired = errors.New("authentication required")

	// ErrInvalidSession is returned when a session token cannot be resolved.
	ErrInvalidSession = errors.New("session is invalid or expired")

	// ErrMarketClosed is returned when joining a market that is not running.
	ErrMarketClosed = errors.New("market is closed")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrWagerNotFound,
	ErrNoRound,
	ErrNoSnapshot,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for session/authentication errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrAuthRequired,
		ErrInvalidSession,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorCode maps a domain error to the short code surfaced on the realtime
// transport. Unknown errors map to "internal_error".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrBettingClosed):
		return "betting_closed"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidSelection):
		return "invalid_selection"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrWalletUnavailable):
		return "wallet_unavailable"
	case errors.Is(err, ErrWagerNotFound):
		return "not_found"
	case errors.Is(err, ErrCancellationFailed):
		return "cancellation_failed"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ErrInvalidSession):
		return "invalid_session"
	case errors.Is(err, ErrMarketClosed):
		return "market_closed"
	default:
		return "internal_error"
	}
}
