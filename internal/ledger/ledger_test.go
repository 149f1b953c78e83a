package ledger

import (
	"testing"
	"time"

	"investsim/internal/model"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func approx(t *testing.T, got, want decimal.Decimal, what string) {
	t.Helper()
	if got.Sub(want).Abs().GreaterThan(dec("0.000001")) {
		t.Errorf("%s: got %s, want %s", what, got, want)
	}
}

func marketFixture() []model.Instrument {
	return []model.Instrument{
		{Symbol: "AAPL", Name: "Apple Inc.", Category: model.CategoryEquity, Price: dec("100"), Change24h: dec("1.2")},
		{Symbol: "BTC", Name: "Bitcoin", Category: model.CategoryCrypto, Price: dec("43250"), Change24h: dec("-2.4"), RiskTier: model.RiskHigh},
		{Symbol: "SBI-FD", Name: "SBI Fixed Deposit", Category: model.CategoryFixedDeposit, Price: dec("1000"), RiskTier: model.RiskLow,
			Terms: &model.FixedIncomeTerms{InterestRate: dec("7.1"), Tenure: "1Y", MinInvestment: dec("1000")}},
	}
}

func newTestLedger(cash string) *Ledger {
	l := New(Config{StartingCash: dec(cash)})
	l.ApplySnapshot(marketFixture(), time.Now().UTC())
	return l
}

// repriced returns the fixture with one symbol's price and change replaced.
func repriced(symbol, price, change string) []model.Instrument {
	insts := marketFixture()
	for i := range insts {
		if insts[i].Symbol == symbol {
			insts[i].Price = dec(price)
			insts[i].Change24h = dec(change)
		}
	}
	return insts
}

func TestBuyOpensPosition(t *testing.T) {
	l := newTestLedger("10000")

	pos, err := l.Buy("AAPL", dec("1000"), dec("10"))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	approx(t, pos.Quantity, dec("10"), "quantity")
	approx(t, pos.AvgPrice, dec("100"), "avg price")
	approx(t, pos.Value, dec("1000"), "value")
	approx(t, pos.ProfitLoss, dec("0"), "profit/loss")

	st := l.State()
	approx(t, st.Cash, dec("9000"), "cash")
	if len(st.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(st.Positions))
	}
}

// Scenario from the accounting model: two buys at different prices fold
// into a weighted average, a full sell removes the position, and a
// revert restores it exactly.
func TestBuySellRevertScenario(t *testing.T) {
	l := newTestLedger("10000")

	if _, err := l.Buy("AAPL", dec("1000"), dec("10")); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	l.ApplySnapshot(repriced("AAPL", "125", "2.0"), time.Now().UTC())
	pos, err := l.Buy("AAPL", dec("500"), dec("4"))
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}

	wantAvg := dec("1500").Div(dec("14")) // (10*100 + 500) / 14
	approx(t, pos.Quantity, dec("14"), "quantity after second buy")
	approx(t, pos.AvgPrice, wantAvg, "weighted average price")
	st := l.State()
	approx(t, st.Cash, dec("8500"), "cash after buys")

	sold, removed, err := l.Sell("AAPL", dec("14"))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !removed {
		t.Fatal("full sell should remove the position")
	}
	approx(t, sold.Quantity, dec("14"), "sold quantity")
	st = l.State()
	approx(t, st.Cash, dec("8500").Add(dec("14").Mul(dec("125"))), "cash after sell")
	if len(st.Positions) != 0 {
		t.Fatalf("expected no positions, got %d", len(st.Positions))
	}

	if _, err := l.RevertLast(); err != nil {
		t.Fatalf("revert: %v", err)
	}
	st = l.State()
	approx(t, st.Cash, dec("8500"), "cash after revert")
	if len(st.Positions) != 1 {
		t.Fatalf("expected restored position, got %d", len(st.Positions))
	}
	approx(t, st.Positions[0].Quantity, dec("14"), "restored quantity")
	approx(t, st.Positions[0].AvgPrice, wantAvg, "restored avg price")
}

func TestSellPreservesAvgPrice(t *testing.T) {
	l := newTestLedger("10000")
	if _, err := l.Buy("AAPL", dec("1000"), dec("10")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	l.ApplySnapshot(repriced("AAPL", "110", "1.0"), time.Now().UTC())

	pos, removed, err := l.Sell("AAPL", dec("4"))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if removed {
		t.Fatal("partial sell must not remove the position")
	}
	approx(t, pos.Quantity, dec("6"), "remaining quantity")
	approx(t, pos.AvgPrice, dec("100"), "avg price unchanged by sell")
	approx(t, pos.Value, dec("660"), "value at current price")
	approx(t, pos.ProfitLoss, dec("60"), "profit/loss")
}

func TestBuyRejections(t *testing.T) {
	l := newTestLedger("10000")
	before := l.State()

	cases := []struct {
		name     string
		symbol   string
		amount   string
		quantity string
		want     error
	}{
		{"unknown symbol", "ZZZ", "100", "1", ErrUnknownSymbol},
		{"insufficient funds", "AAPL", "10001", "100", ErrInsufficientFunds},
		{"below minimum", "SBI-FD", "500", "0.5", ErrBelowMinimum},
		{"zero amount", "AAPL", "0", "1", ErrInvalidAmount},
		{"negative quantity", "AAPL", "100", "-1", ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.Buy(tc.symbol, dec(tc.amount), dec(tc.quantity)); err != tc.want {
				t.Fatalf("got error %v, want %v", err, tc.want)
			}
		})
	}

	after := l.State()
	if !after.Cash.Equal(before.Cash) || len(after.Positions) != len(before.Positions) {
		t.Fatal("rejected buys must not mutate state")
	}
	if _, err := l.RevertLast(); err != ErrNothingToRevert {
		t.Fatalf("rejected buys must not append to the log, got %v", err)
	}
}

func TestSellRejections(t *testing.T) {
	l := newTestLedger("10000")
	if _, err := l.Buy("AAPL", dec("1000"), dec("10")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	before := l.State()

	if _, _, err := l.Sell("BTC", dec("1")); err != ErrNoPosition {
		t.Fatalf("sell of unheld symbol: got %v, want ErrNoPosition", err)
	}
	if _, _, err := l.Sell("AAPL", dec("11")); err != ErrInsufficientQuantity {
		t.Fatalf("oversell: got %v, want ErrInsufficientQuantity", err)
	}
	if _, _, err := l.Sell("AAPL", dec("0")); err != ErrInvalidQuantity {
		t.Fatalf("zero sell: got %v, want ErrInvalidQuantity", err)
	}

	after := l.State()
	if !after.Cash.Equal(before.Cash) {
		t.Fatal("rejected sells must not mutate cash")
	}
	approx(t, after.Positions[0].Quantity, before.Positions[0].Quantity, "quantity untouched")
}

func TestBuyRevertRoundTrip(t *testing.T) {
	l := newTestLedger("10000")
	before := l.State()

	if _, err := l.Buy("AAPL", dec("1000"), dec("10")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := l.RevertLast(); err != nil {
		t.Fatalf("revert: %v", err)
	}

	after := l.State()
	if !after.Cash.Equal(before.Cash) {
		t.Fatalf("cash not restored: got %s, want %s", after.Cash, before.Cash)
	}
	if len(after.Positions) != 0 {
		t.Fatal("reverting a position-creating buy must delete the position")
	}
}

func TestSellRevertRoundTrip(t *testing.T) {
	l := newTestLedger("10000")
	if _, err := l.Buy("AAPL", dec("1000"), dec("10")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	preSell := l.State()

	if _, _, err := l.Sell("AAPL", dec("6")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := l.RevertLast(); err != nil {
		t.Fatalf("revert: %v", err)
	}

	after := l.State()
	if !after.Cash.Equal(preSell.Cash) {
		t.Fatalf("cash not restored: got %s, want %s", after.Cash, preSell.Cash)
	}
	got, want := after.Positions[0], preSell.Positions[0]
	if !got.Quantity.Equal(want.Quantity) || !got.AvgPrice.Equal(want.AvgPrice) || !got.Value.Equal(want.Value) {
		t.Fatalf("position not restored: got %+v, want %+v", got, want)
	}
}

// Each revert pops exactly one record; calling it repeatedly walks the
// history backwards one step at a time.
func TestRepeatedRevertWalksHistory(t *testing.T) {
	l := newTestLedger("10000")
	if _, err := l.Buy("AAPL", dec("1000"), dec("10")); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if _, err := l.Buy("AAPL", dec("500"), dec("5")); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	rec, err := l.RevertLast()
	if err != nil {
		t.Fatalf("first revert: %v", err)
	}
	approx(t, rec.Amount, dec("500"), "first revert pops most recent buy")
	st := l.State()
	approx(t, st.Cash, dec("9000"), "cash after one revert")
	approx(t, st.Positions[0].Quantity, dec("10"), "quantity after one revert")

	if _, err := l.RevertLast(); err != nil {
		t.Fatalf("second revert: %v", err)
	}
	st = l.State()
	approx(t, st.Cash, dec("10000"), "cash after two reverts")
	if len(st.Positions) != 0 {
		t.Fatal("second revert should erase the original buy")
	}

	if _, err := l.RevertLast(); err != ErrNothingToRevert {
		t.Fatalf("empty log: got %v, want ErrNothingToRevert", err)
	}
}

func TestRepriceUpdatesOnlySnapshotSymbols(t *testing.T) {
	l := newTestLedger("100000")
	if _, err := l.Buy("AAPL", dec("1000"), dec("10")); err != nil {
		t.Fatalf("buy AAPL: %v", err)
	}
	if _, err := l.Buy("BTC", dec("43250"), dec("1")); err != nil {
		t.Fatalf("buy BTC: %v", err)
	}
	cashBefore := l.State().Cash

	// Partial snapshot: only AAPL updates, BTC keeps its stale price.
	updated := l.ApplySnapshot([]model.Instrument{
		{Symbol: "AAPL", Name: "Apple Inc.", Category: model.CategoryEquity, Price: dec("120"), Change24h: dec("3.3")},
	}, time.Now().UTC())
	if updated != 1 {
		t.Fatalf("expected 1 position repriced, got %d", updated)
	}

	st := l.State()
	if !st.Cash.Equal(cashBefore) {
		t.Fatal("reprice must never touch cash")
	}
	for _, p := range st.Positions {
		switch p.Symbol {
		case "AAPL":
			approx(t, p.Price, dec("120"), "AAPL price")
			approx(t, p.Value, dec("1200"), "AAPL value")
			approx(t, p.ProfitLoss, dec("200"), "AAPL profit/loss")
			approx(t, p.ProfitLossPct, dec("20"), "AAPL profit/loss pct")
			approx(t, p.Change24h, dec("3.3"), "AAPL 24h change")
		case "BTC":
			approx(t, p.Price, dec("43250"), "BTC stale price retained")
		}
	}
}

func TestFixedIncomeAccrual(t *testing.T) {
	l := newTestLedger("10000")
	if _, err := l.Buy("SBI-FD", dec("2000"), dec("2")); err != nil {
		t.Fatalf("buy fd: %v", err)
	}

	l.ApplySnapshot(marketFixture(), time.Now().UTC())
	st := l.State()
	pos := st.Positions[0]

	// 2000 * 7.1% / 365 * 30 — a monthly-equivalent figure.
	want := dec("2000").Mul(dec("7.1")).Div(dec("100")).Div(dec("365")).Mul(dec("30"))
	approx(t, pos.ProfitLoss, want, "accrued profit/loss")
	approx(t, pos.Change24h, dec("0"), "fixed income 24h change")
	approx(t, pos.Value, dec("2000"), "nominal value unchanged")

	// Reapplied wholesale, not additive across cycles.
	l.ApplySnapshot(marketFixture(), time.Now().UTC())
	pos = l.State().Positions[0]
	approx(t, pos.ProfitLoss, want, "accrual not accumulated")
}

func TestFixedIncomeLocksTermsAtFirstBuy(t *testing.T) {
	l := newTestLedger("10000")
	start := time.Now().UTC()
	if _, err := l.Buy("SBI-FD", dec("1000"), dec("1")); err != nil {
		t.Fatalf("buy fd: %v", err)
	}

	pos := l.State().Positions[0]
	if pos.Fixed == nil {
		t.Fatal("fixed-income position missing its leg")
	}
	approx(t, pos.Fixed.InterestRate, dec("7.1"), "locked rate")
	wantMaturity := start.AddDate(0, 12, 0)
	if d := pos.Fixed.MaturityDate.Sub(wantMaturity); d < -time.Minute || d > time.Minute {
		t.Errorf("maturity date: got %v, want about %v", pos.Fixed.MaturityDate, wantMaturity)
	}

	// A later snapshot with a different advertised rate does not change
	// the locked-in rate.
	insts := marketFixture()
	insts[2].Terms = &model.FixedIncomeTerms{InterestRate: dec("9.9"), Tenure: "1Y", MinInvestment: dec("1000")}
	l.ApplySnapshot(insts, time.Now().UTC())
	pos = l.State().Positions[0]
	approx(t, pos.Fixed.InterestRate, dec("7.1"), "rate stays locked")
}

func TestCashNeverNegative(t *testing.T) {
	l := newTestLedger("1000")
	if _, err := l.Buy("AAPL", dec("1000"), dec("10")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := l.Buy("AAPL", dec("0.01"), dec("0.0001")); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if l.State().Cash.IsNegative() {
		t.Fatal("cash went negative")
	}
}

func TestPositionUniquePerSymbol(t *testing.T) {
	l := newTestLedger("10000")
	for i := 0; i < 3; i++ {
		if _, err := l.Buy("AAPL", dec("100"), dec("1")); err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
	}
	st := l.State()
	if len(st.Positions) != 1 {
		t.Fatalf("expected a single position for AAPL, got %d", len(st.Positions))
	}
	approx(t, st.Positions[0].Quantity, dec("3"), "merged quantity")
	for _, p := range st.Positions {
		if !p.Quantity.IsPositive() {
			t.Fatalf("position %s has non-positive quantity", p.Symbol)
		}
	}
}

func TestEventsEmitted(t *testing.T) {
	l := newTestLedger("10000")
	if _, err := l.Buy("AAPL", dec("1000"), dec("10")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, _, err := l.Sell("AAPL", dec("4")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := l.RevertLast(); err != nil {
		t.Fatalf("revert: %v", err)
	}

	wantActions := []model.TransactionKind{model.KindBuy, model.KindSell, model.KindRevert}
	for _, want := range wantActions {
		select {
		case ev := <-l.Events():
			if ev.Action != want {
				t.Fatalf("event action: got %s, want %s", ev.Action, want)
			}
			if ev.Symbol != "AAPL" {
				t.Fatalf("event symbol: got %s", ev.Symbol)
			}
		default:
			t.Fatalf("missing %s event", want)
		}
	}
	if n := l.EventsDropped(); n != 0 {
		t.Fatalf("unexpected dropped events: %d", n)
	}
}
