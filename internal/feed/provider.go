// Package feed supplies market-data snapshots. The core only consumes
// snapshots; how they get into the store is a deployment concern. The
// Provider reads whatever the configured ingestion wrote; the optional
// Ingester in this package is a reference implementation for single-box
// and development deployments.
package feed

import (
	"context"
	"time"

	"github.com/evetabi/plinko/internal/domain"
	"github.com/evetabi/plinko/internal/store"
)

// Provider returns the latest market-data snapshot for a market.
type Provider interface {
	Snapshot(ctx context.Context, market string) (*domain.Snapshot, error)
}

// StoreProvider reads snapshots from the shared state store.
type StoreProvider struct {
	client *store.Client
}

// NewStoreProvider creates a Provider backed by the state store.
func NewStoreProvider(client *store.Client) *StoreProvider {
	return &StoreProvider{client: client}
}

// Snapshot reads the market's latest snapshot.
// Returns domain.ErrNoSnapshot when the feed key is absent.
func (p *StoreProvider) Snapshot(ctx context.Context, market string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	found, err := p.client.GetJSON(ctx, store.FeedKey(market), &snap)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrNoSnapshot
	}
	return &snap, nil
}

// Fresh reports whether the snapshot is younger than maxAge. A nil snapshot
// is never fresh.
func Fresh(s *domain.Snapshot, maxAge time.Duration) bool {
	return s.Fresh(time.Now(), maxAge)
}
