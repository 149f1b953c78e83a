package model

import (
	"testing"
	"time"
)

func TestTenureMonths(t *testing.T) {
	cases := []struct {
		in      Tenure
		months  int
		wantErr bool
	}{
		{"6M", 6, false},
		{"1Y", 12, false},
		{"5Y", 60, false},
		{"18m", 18, false},
		{"2y", 24, false},
		{" 3M ", 3, false},
		{"", 0, true},
		{"Y", 0, true},
		{"0Y", 0, true},
		{"-1M", 0, true},
		{"12", 0, true},
		{"1W", 0, true},
	}
	for _, tc := range cases {
		got, err := tc.in.Months()
		if tc.wantErr {
			if err == nil {
				t.Errorf("Months(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Months(%q): %v", tc.in, err)
			continue
		}
		if got != tc.months {
			t.Errorf("Months(%q): got %d, want %d", tc.in, got, tc.months)
		}
	}
}

func TestTenureMaturity(t *testing.T) {
	from := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	got, err := Tenure("18M").Maturity(from)
	if err != nil {
		t.Fatalf("Maturity: %v", err)
	}
	want := time.Date(2027, time.July, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Maturity: got %v, want %v", got, want)
	}
}

func TestPositionCloneIsDeep(t *testing.T) {
	p := &Position{Symbol: "SBI-FD", Fixed: &FixedIncomeLeg{MaturityDate: time.Now()}}
	cp := p.Clone()
	if cp.Fixed == p.Fixed {
		t.Fatal("Clone must copy the fixed-income leg, not share it")
	}
}
