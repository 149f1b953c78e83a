package marketdata

import (
	"context"
	"log"
	"time"

	"investsim/internal/metrics"
	"investsim/internal/model"
)

const defaultFetchTimeout = 10 * time.Second

// Applier is the slice of the ledger the refresher drives.
type Applier interface {
	ApplySnapshot(instruments []model.Instrument, at time.Time) int
}

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	Interval     time.Duration // refresh period, e.g. 30s
	FetchTimeout time.Duration // per-fetch deadline; defaults to 10s
}

// Refresher periodically fetches a snapshot and applies it to the
// ledger. The fetch runs outside the ledger lock; only applying the
// result takes it, so a slow fetch delays the next reprice without ever
// blocking trades.
type Refresher struct {
	cfg    RefresherConfig
	feed   Feed
	ledger Applier

	prom   *metrics.Metrics      // optional
	health *metrics.HealthStatus // optional
	hooks  []func(instruments []model.Instrument, at time.Time)
}

// NewRefresher creates a refresher. prom and health may be nil.
func NewRefresher(cfg RefresherConfig, feed Feed, ledger Applier, prom *metrics.Metrics, health *metrics.HealthStatus) *Refresher {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &Refresher{cfg: cfg, feed: feed, ledger: ledger, prom: prom, health: health}
}

// OnApplied registers a hook invoked after each applied snapshot, off
// the ledger lock. Hooks must be registered before Run starts.
func (r *Refresher) OnApplied(fn func(instruments []model.Instrument, at time.Time)) {
	r.hooks = append(r.hooks, fn)
}

// Run performs an immediate refresh, then one per interval until ctx is
// cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.Refresh(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh runs one fetch-then-apply cycle.
func (r *Refresher) Refresh(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	instruments, err := r.feed.FetchSnapshot(fetchCtx)
	fetchDur := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[refresher] snapshot fetch failed: %v", err)
		}
		if r.prom != nil {
			r.prom.FeedErrors.Inc()
		}
		if r.health != nil {
			r.health.SetFeedOK(false)
		}
		return
	}

	at := time.Now().UTC()
	applyStart := time.Now()
	updated := r.ledger.ApplySnapshot(instruments, at)

	if r.prom != nil {
		r.prom.FeedFetchDur.Observe(fetchDur.Seconds())
		r.prom.SnapshotApplyDur.Observe(time.Since(applyStart).Seconds())
		r.prom.SnapshotApplies.Inc()
	}
	if r.health != nil {
		r.health.SetFeedOK(true)
		r.health.SetLastSnapshotAt(at)
	}

	for _, fn := range r.hooks {
		fn(instruments, at)
	}
	log.Printf("[refresher] applied snapshot of %d instruments, %d positions repriced", len(instruments), updated)
}
