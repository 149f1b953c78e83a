// Package sim provides a simulated price feed: a fixed instrument
// universe whose market-priced entries fluctuate around a base price
// each snapshot, with a configurable artificial fetch latency standing
// in for a real data provider.
package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"investsim/internal/model"

	"github.com/shopspring/decimal"
)

// asset holds per-symbol simulation parameters.
type asset struct {
	symbol   string
	name     string
	category model.Category
	base     float64 // base unit price; nominal for fixed income
	risk     model.RiskTier
	terms    *model.FixedIncomeTerms
}

func fiTerms(rate float64, tenure model.Tenure, min int64) *model.FixedIncomeTerms {
	return &model.FixedIncomeTerms{
		InterestRate:  decimal.NewFromFloat(rate),
		Tenure:        tenure,
		MinInvestment: decimal.NewFromInt(min),
	}
}

// universe is the complete simulated instrument catalog. Every snapshot
// covers all of it. Fixed-income entries carry the conventional nominal
// unit price of 1000.
var universe = []asset{
	{"AAPL", "Apple Inc.", model.CategoryEquity, 178.50, model.RiskMedium, nil},
	{"GOOGL", "Alphabet Inc.", model.CategoryEquity, 141.80, model.RiskMedium, nil},
	{"MSFT", "Microsoft Corp.", model.CategoryEquity, 378.90, model.RiskMedium, nil},
	{"NVDA", "NVIDIA Corp.", model.CategoryEquity, 495.20, model.RiskHigh, nil},
	{"TSLA", "Tesla Inc.", model.CategoryEquity, 248.30, model.RiskHigh, nil},
	{"BTC", "Bitcoin", model.CategoryCrypto, 43250.00, model.RiskHigh, nil},
	{"ETH", "Ethereum", model.CategoryCrypto, 2280.50, model.RiskHigh, nil},
	{"SOL", "Solana", model.CategoryCrypto, 98.75, model.RiskHigh, nil},
	{"SPY", "S&P 500 ETF", model.CategoryFund, 478.50, model.RiskMedium, nil},
	{"QQQ", "Nasdaq 100 ETF", model.CategoryFund, 405.30, model.RiskMedium, nil},
	{"VFIAX", "Vanguard 500 Index Fund", model.CategoryMutualFund, 421.10, model.RiskLow, nil},
	{"ARKK", "ARK Innovation Fund", model.CategoryMutualFund, 48.90, model.RiskHigh, nil},
	{"GLD", "Gold", model.CategoryCommodity, 189.40, model.RiskLow, nil},
	{"SLV", "Silver", model.CategoryCommodity, 22.15, model.RiskMedium, nil},
	{"SBI-FD", "SBI Fixed Deposit", model.CategoryFixedDeposit, 1000, model.RiskLow, fiTerms(7.1, "1Y", 1000)},
	{"HDFC-FD", "HDFC Fixed Deposit", model.CategoryFixedDeposit, 1000, model.RiskLow, fiTerms(7.5, "3Y", 5000)},
	{"GOI-BOND", "Government of India Bond", model.CategoryBond, 1000, model.RiskLow, fiTerms(7.37, "5Y", 1000)},
	{"CORP-BOND", "AAA Corporate Bond", model.CategoryBond, 1000, model.RiskMedium, fiTerms(9.2, "3Y", 10000)},
}

// volatility is the per-cycle price swing bound by category.
var volatility = map[model.Category]float64{
	model.CategoryEquity:     0.03,
	model.CategoryCrypto:     0.08,
	model.CategoryFund:       0.02,
	model.CategoryMutualFund: 0.02,
	model.CategoryCommodity:  0.015,
}

// Config configures the simulator.
type Config struct {
	Latency time.Duration // simulated fetch latency; defaults to 500ms
	Seed    int64         // rng seed; 0 seeds from the clock
}

// Simulator implements the marketdata.Feed interface.
type Simulator struct {
	latency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a simulator.
func New(cfg Config) *Simulator {
	if cfg.Latency <= 0 {
		cfg.Latency = 500 * time.Millisecond
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		latency: cfg.Latency,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// FetchSnapshot blocks for the configured latency, then returns a fresh
// complete snapshot of the universe.
func (s *Simulator) FetchSnapshot(ctx context.Context) ([]model.Instrument, error) {
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return s.generate(), nil
}

func (s *Simulator) generate() []model.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Instrument, 0, len(universe))
	for _, a := range universe {
		inst := model.Instrument{
			Symbol:   a.symbol,
			Name:     a.name,
			Category: a.category,
			RiskTier: a.risk,
		}
		if a.terms != nil {
			// Nominal price, no market fluctuation.
			inst.Price = decimal.NewFromFloat(a.base)
			inst.Change24h = decimal.Zero
			terms := *a.terms
			inst.Terms = &terms
		} else {
			vol := volatility[a.category]
			swing := (s.rng.Float64()*2 - 1) * vol
			inst.Price = decimal.NewFromFloat(a.base * (1 + swing)).Round(2)
			inst.Change24h = decimal.NewFromFloat((s.rng.Float64()*2 - 1) * 5).Round(2)
		}
		out = append(out, inst)
	}
	return out
}
