package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FixedIncomeLeg holds the per-position fields stamped when a
// fixed-deposit or bond position is opened.
type FixedIncomeLeg struct {
	InterestRate decimal.Decimal `json:"interest_rate"` // locked at acquisition
	MaturityDate time.Time       `json:"maturity_date"`
}

// Position is a held quantity of one instrument plus its average
// acquisition price and the derived valuation figures. At most one
// Position exists per symbol; a position whose quantity reaches zero is
// removed, never kept at zero.
type Position struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Category      Category        `json:"category"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	Price         decimal.Decimal `json:"price"`           // latest unit price
	Value         decimal.Decimal `json:"value"`           // quantity x price
	ProfitLoss    decimal.Decimal `json:"profit_loss"`     // value - cost basis
	ProfitLossPct decimal.Decimal `json:"profit_loss_pct"` // percent of cost basis
	Change24h     decimal.Decimal `json:"change_24h"`      // percent; 0 for fixed income
	Fixed         *FixedIncomeLeg `json:"fixed,omitempty"` // nil unless Category.FixedIncome()
}

// CostBasis returns quantity x average acquisition price.
func (p *Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.AvgPrice)
}

// Clone returns a deep copy safe to keep as a pre-trade snapshot.
func (p *Position) Clone() *Position {
	cp := *p
	if p.Fixed != nil {
		leg := *p.Fixed
		cp.Fixed = &leg
	}
	return &cp
}
