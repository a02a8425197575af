// Package middleware holds shared gin middleware.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// limiter is an in-memory per-key token bucket set. The read endpoints are
// cheap Redis lookups, so a coarse per-IP limit is enough to keep a single
// noisy client from hammering the store.
type limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	rate    float64 // tokens per second
	burst   float64 // bucket capacity
}

type entry struct {
	tokens float64
	last   time.Time
}

// allow deducts one token from the key's bucket, refilling it by elapsed
// time first. A fresh key starts with a full bucket.
func (l *limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{tokens: l.burst, last: now}
		l.entries[key] = e
	}

	e.tokens += now.Sub(e.last).Seconds() * l.rate
	if e.tokens > l.burst {
		e.tokens = l.burst
	}
	e.last = now

	if e.tokens < 1 {
		return false
	}
	e.tokens--
	return true
}

// sweep drops buckets idle longer than maxIdle so the map stays bounded.
func (l *limiter) sweep(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for key, e := range l.entries {
		if e.last.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// PerIP enforces a per-client-IP rate limit of rps requests per second with
// a burst allowance of max(rps, 10). Clients over the limit get 429.
func PerIP(rps int) gin.HandlerFunc {
	burst := float64(rps)
	if burst < 10 {
		burst = 10
	}
	l := &limiter{
		entries: make(map[string]*entry),
		rate:    float64(rps),
		burst:   burst,
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			l.sweep(10 * time.Minute)
		}
	}()

	return func(c *gin.Context) {
		if !l.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
				"code":    "ERR_RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
