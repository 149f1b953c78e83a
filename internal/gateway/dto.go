package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"investsim/internal/ledger"
	"investsim/internal/model"
)

// BuyRequest is the body of POST /api/trade/buy. Amount is the cash to
// invest; Quantity is the units it purchases at the caller-observed
// price.
type BuyRequest struct {
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity decimal.Decimal `json:"quantity"`
}

// SellRequest is the body of POST /api/trade/sell.
type SellRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

// TradeResponse is returned by the buy and sell endpoints.
type TradeResponse struct {
	Position model.Position  `json:"position"`
	Removed  bool            `json:"removed,omitempty"` // sell closed the position
	Cash     decimal.Decimal `json:"cash"`
}

// RevertResponse describes the transaction that was undone.
type RevertResponse struct {
	Reverted model.TransactionRecord `json:"reverted"`
	Cash     decimal.Decimal         `json:"cash"`
}

// SummaryOut is the REST response type for /api/portfolio/summary.
type SummaryOut struct {
	Cash               decimal.Decimal `json:"cash"`
	TotalValue         decimal.Decimal `json:"total_value"`
	TotalProfitLoss    decimal.Decimal `json:"total_profit_loss"`
	TotalProfitLossPct decimal.Decimal `json:"total_profit_loss_pct"`
}

// PortfolioOut is the REST response type for /api/portfolio.
type PortfolioOut struct {
	Cash            decimal.Decimal  `json:"cash"`
	Positions       []model.Position `json:"positions"`
	Summary         SummaryOut       `json:"summary"`
	LastRefreshedAt time.Time        `json:"last_refreshed_at"`
}

// MarketOut is the REST response type for /api/market.
type MarketOut struct {
	Instruments     []model.Instrument `json:"instruments"`
	LastRefreshedAt time.Time          `json:"last_refreshed_at"`
}

func summaryOut(cash decimal.Decimal, s ledger.Summary) SummaryOut {
	return SummaryOut{
		Cash:               cash,
		TotalValue:         s.TotalValue,
		TotalProfitLoss:    s.TotalProfitLoss,
		TotalProfitLossPct: s.TotalProfitLossPct,
	}
}

// statusFromError maps ledger rejections to HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnknownSymbol),
		errors.Is(err, ledger.ErrNoPosition):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrBelowMinimum),
		errors.Is(err, ledger.ErrInsufficientQuantity),
		errors.Is(err, ledger.ErrNothingToRevert):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
