package history

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func point(v int64) Point {
	return Point{At: time.Now(), TotalValue: decimal.NewFromInt(v)}
}

func TestWindowFillsInOrder(t *testing.T) {
	w := NewWindow(4)
	for i := int64(1); i <= 3; i++ {
		w.Record(point(i))
	}
	pts := w.Points()
	if len(pts) != 3 {
		t.Fatalf("expected 3 points, got %d", len(pts))
	}
	for i, p := range pts {
		if !p.TotalValue.Equal(decimal.NewFromInt(int64(i + 1))) {
			t.Fatalf("point %d: got %s", i, p.TotalValue)
		}
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for i := int64(1); i <= 5; i++ {
		w.Record(point(i))
	}
	pts := w.Points()
	if len(pts) != 3 {
		t.Fatalf("expected 3 points after wrap, got %d", len(pts))
	}
	want := []int64{3, 4, 5}
	for i, p := range pts {
		if !p.TotalValue.Equal(decimal.NewFromInt(want[i])) {
			t.Fatalf("point %d: got %s, want %d", i, p.TotalValue, want[i])
		}
	}
	if w.Len() != 3 {
		t.Fatalf("Len: got %d", w.Len())
	}
}

func TestWindowMinimumCapacity(t *testing.T) {
	w := NewWindow(0)
	w.Record(point(1))
	w.Record(point(2))
	pts := w.Points()
	if len(pts) != 1 || !pts[0].TotalValue.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected points: %+v", pts)
	}
}
