package store

import "fmt"

// Key layout of the shared state store. All round-scoped keys are TTL-bounded
// to a few minutes beyond the round so abandoned rounds clean themselves up.
//
//	plinko:state:{M}                  latest round-state blob
//	plinko:{M}:{roundId}:stocks       round's symbol list
//	plinko:{M}:{roundId}:start_snap   start snapshot
//	plinko:{M}:{roundId}:results      per-symbol result array
//	plinko:bets:{M}:{roundId}         hash playerId → serialized wager list
//	plinko:rtp:{M}                    hash {totalBet, totalWon, playCount}
//	plinko:feed:{M}                   latest market-data snapshot
//	lock:gameloop:{M}                 gameloop lease
//	session:{token}                   opaque session record

// StateKey returns the round-state blob key for a market.
func StateKey(market string) string {
	return "plinko:state:" + market
}

// StocksKey returns the round's selected-symbols key.
func StocksKey(market, roundID string) string {
	return fmt.Sprintf("plinko:%s:%s:stocks", market, roundID)
}

// StartSnapKey returns the round's start-snapshot key.
func StartSnapKey(market, roundID string) string {
	return fmt.Sprintf("plinko:%s:%s:start_snap", market, roundID)
}

// ResultsKey returns the round's result-array key.
func ResultsKey(market, roundID string) string {
	return fmt.Sprintf("plinko:%s:%s:results", market, roundID)
}

// BetsKey returns the round's wager hash key.
func BetsKey(market, roundID string) string {
	return fmt.Sprintf("plinko:bets:%s:%s", market, roundID)
}

// RTPKey returns the market's durable RTP counter hash key.
func RTPKey(market string) string {
	return "plinko:rtp:" + market
}

// FeedKey returns the market-data snapshot key for a market.
func FeedKey(market string) string {
	return "plinko:feed:" + market
}

// LeaseKey returns the gameloop lease key for a market.
func LeaseKey(market string) string {
	return "lock:gameloop:" + market
}

// SessionKey returns the session store key for an opaque token.
func SessionKey(token string) string {
	return "session:" + token
}
