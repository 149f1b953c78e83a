// Package history keeps a bounded in-memory window of portfolio summary
// points, recorded after every reprice and accepted trade, for the
// performance-history endpoint.
package history

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Point is one sampled portfolio summary.
type Point struct {
	At                 time.Time       `json:"at"`
	Cash               decimal.Decimal `json:"cash"`
	TotalValue         decimal.Decimal `json:"total_value"`
	TotalProfitLoss    decimal.Decimal `json:"total_profit_loss"`
	TotalProfitLossPct decimal.Decimal `json:"total_profit_loss_pct"`
}

// Window is a fixed-capacity sliding window of points. When full, the
// oldest point is evicted on each record. Safe for one writer and many
// concurrent readers.
type Window struct {
	mu   sync.RWMutex
	buf  []Point
	next int // write index
	size int
}

// NewWindow creates a window holding up to capacity points (minimum 1).
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]Point, capacity)}
}

// Record appends a point, evicting the oldest when full.
func (w *Window) Record(p Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf[w.next] = p
	w.next = (w.next + 1) % len(w.buf)
	if w.size < len(w.buf) {
		w.size++
	}
}

// Points returns the recorded points, oldest first.
func (w *Window) Points() []Point {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Point, 0, w.size)
	start := w.next - w.size
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}

// Len returns the number of recorded points.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}
