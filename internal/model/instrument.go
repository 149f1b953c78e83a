package model

import "github.com/shopspring/decimal"

// Category classifies a tradable instrument.
type Category string

const (
	CategoryEquity       Category = "equity"
	CategoryCrypto       Category = "crypto"
	CategoryFund         Category = "fund"
	CategoryFixedDeposit Category = "fixed-deposit"
	CategoryBond         Category = "bond"
	CategoryMutualFund   Category = "mutual-fund"
	CategoryCommodity    Category = "commodity"
)

// FixedIncome reports whether the category accrues via an interest rate
// instead of tracking market price movements.
func (c Category) FixedIncome() bool {
	return c == CategoryFixedDeposit || c == CategoryBond
}

// RiskTier is an optional coarse risk label carried by some instruments.
type RiskTier string

const (
	RiskLow    RiskTier = "Low"
	RiskMedium RiskTier = "Medium"
	RiskHigh   RiskTier = "High"
)

// FixedIncomeTerms carries the fields only fixed-deposit and bond
// instruments have. Market-priced categories leave Instrument.Terms nil.
type FixedIncomeTerms struct {
	InterestRate  decimal.Decimal `json:"interest_rate"` // annualized percent
	Tenure        Tenure          `json:"tenure"`
	MinInvestment decimal.Decimal `json:"min_investment"`
}

// Instrument is one entry of a market snapshot. Instances are immutable
// for the duration of a refresh cycle.
// Fixed-income instruments carry a nominal unit price that does not move
// with market ticks, and a 24h change of zero.
type Instrument struct {
	Symbol    string            `json:"symbol"`
	Name      string            `json:"name"`
	Category  Category          `json:"category"`
	Price     decimal.Decimal   `json:"price"`
	Change24h decimal.Decimal   `json:"change_24h"` // percent
	RiskTier  RiskTier          `json:"risk_tier,omitempty"`
	Terms     *FixedIncomeTerms `json:"terms,omitempty"`
}
