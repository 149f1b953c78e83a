package ledger

import (
	"investsim/internal/model"

	"github.com/shopspring/decimal"
)

// Summary holds the derived portfolio-level totals. It is recomputed on
// every read, never stored.
type Summary struct {
	TotalValue         decimal.Decimal
	TotalProfitLoss    decimal.Decimal
	TotalProfitLossPct decimal.Decimal
}

// Aggregate computes portfolio totals over a set of positions. The
// percentage is taken against the combined cost basis and defined as
// zero when there are no positions (or a zero basis).
func Aggregate(positions []model.Position) Summary {
	var value, pl, basis decimal.Decimal
	for i := range positions {
		value = value.Add(positions[i].Value)
		pl = pl.Add(positions[i].ProfitLoss)
		basis = basis.Add(positions[i].CostBasis())
	}
	s := Summary{TotalValue: value, TotalProfitLoss: pl}
	if basis.IsPositive() {
		s.TotalProfitLossPct = pl.Div(basis).Mul(hundred)
	}
	return s
}
