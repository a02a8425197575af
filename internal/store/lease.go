package store

import (
	"context"
	"log/slog"
	"time"
)

// Lease manages the per-market exclusive gameloop lease. A loop writes round
// state only while it holds the lease; the lease expires by TTL so a dead
// leader is replaced within one TTL window.
type Lease struct {
	client *Client
	holder string // this process's instance id
	logger *slog.Logger
}

// NewLease creates a lease manager identified by holder.
func NewLease(client *Client, holder string, logger *slog.Logger) *Lease {
	return &Lease{client: client, holder: holder, logger: logger}
}

// Holder returns this process's instance id.
func (l *Lease) Holder() string {
	return l.holder
}

// AcquireOrExtend atomically claims or extends the market's lease and returns
// true iff this process holds it afterwards. Any store failure is treated as
// not-leader: it is always safe to stand down, never safe to assume leadership.
func (l *Lease) AcquireOrExtend(ctx context.Context, market string, ttl time.Duration) bool {
	res, err := leaseScript.Run(ctx, l.client.rdb,
		[]string{LeaseKey(market)}, l.holder, ttl.Milliseconds()).Int()
	if err != nil {
		l.logger.Warn("lease acquire failed, standing down",
			"market", market, "holder", l.holder, "err", err)
		return false
	}
	return res == 1
}
