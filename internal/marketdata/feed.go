// Package marketdata defines the price feed boundary and the periodic
// refresher that applies fresh snapshots to the ledger.
package marketdata

import (
	"context"

	"investsim/internal/model"
)

// Feed produces market snapshots. Every successful fetch returns a
// complete snapshot covering all known symbols across all categories;
// the ledger treats symbols missing from a snapshot as "no update this
// cycle". Implementations may block on network or simulated latency and
// must honor ctx cancellation.
type Feed interface {
	FetchSnapshot(ctx context.Context) ([]model.Instrument, error)
}
