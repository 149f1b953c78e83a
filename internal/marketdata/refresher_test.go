package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"investsim/internal/model"

	"github.com/shopspring/decimal"
)

type fakeFeed struct {
	mu        sync.Mutex
	snapshots [][]model.Instrument
	err       error
	calls     int
}

func (f *fakeFeed) FetchSnapshot(ctx context.Context) ([]model.Instrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	snap := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return snap, nil
}

type fakeApplier struct {
	mu      sync.Mutex
	applied [][]model.Instrument
}

func (a *fakeApplier) ApplySnapshot(instruments []model.Instrument, at time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, instruments)
	return len(instruments)
}

func (a *fakeApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

func testSnapshot() []model.Instrument {
	return []model.Instrument{
		{Symbol: "AAPL", Category: model.CategoryEquity, Price: decimal.NewFromInt(100)},
	}
}

func TestRefreshAppliesSnapshotAndNotifiesHooks(t *testing.T) {
	feed := &fakeFeed{snapshots: [][]model.Instrument{testSnapshot()}}
	applier := &fakeApplier{}
	r := NewRefresher(RefresherConfig{Interval: time.Hour}, feed, applier, nil, nil)

	var hookCalls int
	r.OnApplied(func(instruments []model.Instrument, at time.Time) {
		hookCalls++
		if len(instruments) != 1 {
			t.Errorf("hook got %d instruments, want 1", len(instruments))
		}
		if at.IsZero() {
			t.Error("hook got zero apply time")
		}
	})

	r.Refresh(context.Background())

	if applier.count() != 1 {
		t.Fatalf("expected 1 applied snapshot, got %d", applier.count())
	}
	if hookCalls != 1 {
		t.Fatalf("expected 1 hook call, got %d", hookCalls)
	}
}

func TestRefreshFetchErrorSkipsApply(t *testing.T) {
	feed := &fakeFeed{err: errors.New("feed down")}
	applier := &fakeApplier{}
	r := NewRefresher(RefresherConfig{Interval: time.Hour}, feed, applier, nil, nil)
	r.OnApplied(func([]model.Instrument, time.Time) {
		t.Error("hook must not fire on fetch failure")
	})

	r.Refresh(context.Background())

	if applier.count() != 0 {
		t.Fatalf("failed fetch must not apply, got %d applies", applier.count())
	}
}

func TestRunRefreshesOnInterval(t *testing.T) {
	feed := &fakeFeed{snapshots: [][]model.Instrument{testSnapshot()}}
	applier := &fakeApplier{}
	r := NewRefresher(RefresherConfig{Interval: 20 * time.Millisecond}, feed, applier, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(70 * time.Millisecond)
	cancel()
	<-done

	// Immediate refresh plus at least two ticks.
	if applier.count() < 3 {
		t.Fatalf("expected at least 3 applies, got %d", applier.count())
	}
}
