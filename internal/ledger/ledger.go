// Package ledger implements the portfolio accounting core: one session's
// cash balance, positions with average-cost basis, profit/loss
// recomputation on every price refresh, and single-step transaction
// revert backed by pre-trade snapshots.
//
// Every operation serializes on a single mutex spanning cash, the
// position map, the transaction log and the instrument catalog, so no
// caller can observe a partially-updated state. The ledger returns typed
// sentinel errors and never logs; formatting and presentation belong to
// the gateway.
package ledger

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"investsim/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// accrualDays and accrualCycleDays parameterize the fixed-income model:
// the annual return is prorated per day and reported as a 30-day
// (monthly-equivalent) figure, replaced wholesale each refresh cycle.
var (
	accrualDays      = decimal.NewFromInt(365)
	accrualCycleDays = decimal.NewFromInt(30)
)

const defaultEventBuffer = 256

// Config configures a new Ledger.
type Config struct {
	StartingCash decimal.Decimal
	EventBuffer  int // audit event channel capacity; defaults to 256
}

// Ledger owns all mutable portfolio state for one session.
type Ledger struct {
	mu          sync.Mutex
	cash        decimal.Decimal
	positions   map[string]*model.Position
	log         []model.TransactionRecord
	catalog     map[string]model.Instrument
	refreshedAt time.Time

	events  chan model.LedgerEvent
	dropped atomic.Uint64
}

// New creates a ledger holding only the starting cash balance.
func New(cfg Config) *Ledger {
	buf := cfg.EventBuffer
	if buf <= 0 {
		buf = defaultEventBuffer
	}
	return &Ledger{
		cash:      cfg.StartingCash,
		positions: make(map[string]*model.Position),
		catalog:   make(map[string]model.Instrument),
		events:    make(chan model.LedgerEvent, buf),
	}
}

// Events returns the audit feed of accepted operations. Sends are
// non-blocking: if the consumer falls behind, events are dropped and
// counted rather than stalling trades.
func (l *Ledger) Events() <-chan model.LedgerEvent { return l.events }

// EventsDropped returns the number of audit events dropped so far.
func (l *Ledger) EventsDropped() uint64 { return l.dropped.Load() }

func (l *Ledger) emit(action model.TransactionKind, rec model.TransactionRecord) {
	ev := model.LedgerEvent{
		Action:   action,
		TxID:     rec.ID,
		Symbol:   rec.Instrument.Symbol,
		Amount:   rec.Amount,
		Quantity: rec.Quantity,
		At:       rec.At,
	}
	select {
	case l.events <- ev:
	default:
		l.dropped.Add(1)
	}
}

// Buy spends amount credits on quantity units of the instrument known
// under symbol. A first buy opens the position at the instrument's
// current price; subsequent buys fold into the weighted average
// acquisition price. Rejections mutate nothing.
func (l *Ledger) Buy(symbol string, amount, quantity decimal.Decimal) (model.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inst, ok := l.catalog[symbol]
	if !ok {
		return model.Position{}, ErrUnknownSymbol
	}
	if !amount.IsPositive() {
		return model.Position{}, ErrInvalidAmount
	}
	if !quantity.IsPositive() {
		return model.Position{}, ErrInvalidQuantity
	}
	if amount.GreaterThan(l.cash) {
		return model.Position{}, ErrInsufficientFunds
	}
	if inst.Terms != nil && amount.LessThan(inst.Terms.MinInvestment) {
		return model.Position{}, ErrBelowMinimum
	}

	now := time.Now().UTC()
	var before *model.Position

	pos, exists := l.positions[symbol]
	if exists {
		before = pos.Clone()
		totalCost := pos.CostBasis().Add(amount)
		pos.Quantity = pos.Quantity.Add(quantity)
		pos.AvgPrice = totalCost.Div(pos.Quantity)
		recomputeDerived(pos)
	} else {
		pos = &model.Position{
			Symbol:    inst.Symbol,
			Name:      inst.Name,
			Category:  inst.Category,
			Quantity:  quantity,
			AvgPrice:  inst.Price,
			Price:     inst.Price,
			Change24h: inst.Change24h,
		}
		if inst.Terms != nil {
			leg := &model.FixedIncomeLeg{InterestRate: inst.Terms.InterestRate}
			if maturity, err := inst.Terms.Tenure.Maturity(now); err == nil {
				leg.MaturityDate = maturity
			}
			pos.Fixed = leg
			pos.Change24h = decimal.Zero
		}
		recomputeDerived(pos)
		l.positions[symbol] = pos
	}

	l.cash = l.cash.Sub(amount)
	rec := model.TransactionRecord{
		ID:         uuid.New(),
		Kind:       model.KindBuy,
		Instrument: inst,
		Amount:     amount,
		Quantity:   quantity,
		Before:     before,
		At:         now,
	}
	l.log = append(l.log, rec)
	l.emit(model.KindBuy, rec)

	return *pos.Clone(), nil
}

// Sell disposes of quantity units at the position's current price.
// Selling the full quantity removes the position (removed=true and pos
// holds its final pre-sale state); a partial sell reduces quantity and
// leaves the average acquisition price untouched. Rejections mutate
// nothing.
func (l *Ledger) Sell(symbol string, quantity decimal.Decimal) (pos model.Position, removed bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.positions[symbol]
	if !ok {
		return model.Position{}, false, ErrNoPosition
	}
	if !quantity.IsPositive() {
		return model.Position{}, false, ErrInvalidQuantity
	}
	if quantity.GreaterThan(held.Quantity) {
		return model.Position{}, false, ErrInsufficientQuantity
	}

	now := time.Now().UTC()
	before := held.Clone()
	saleValue := quantity.Mul(held.Price)

	if quantity.Equal(held.Quantity) {
		delete(l.positions, symbol)
		pos, removed = *before, true
	} else {
		held.Quantity = held.Quantity.Sub(quantity)
		recomputeDerived(held)
		pos = *held.Clone()
	}

	l.cash = l.cash.Add(saleValue)
	inst, ok := l.catalog[symbol]
	if !ok {
		// Position predates any catalog entry only in tests; fall back
		// to a minimal snapshot so the record stays self-describing.
		inst = model.Instrument{Symbol: before.Symbol, Name: before.Name, Category: before.Category, Price: before.Price}
	}
	rec := model.TransactionRecord{
		ID:         uuid.New(),
		Kind:       model.KindSell,
		Instrument: inst,
		Amount:     saleValue,
		Quantity:   quantity,
		Before:     before,
		At:         now,
	}
	l.log = append(l.log, rec)
	l.emit(model.KindSell, rec)

	return pos, removed, nil
}

// RevertLast pops the most recent transaction and restores the affected
// position from its pre-trade snapshot, undoing the cash movement. Each
// call walks exactly one record back through history. This is the only
// operation that can resurrect a removed position or erase a newly
// created one.
func (l *Ledger) RevertLast() (model.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.log) == 0 {
		return model.TransactionRecord{}, ErrNothingToRevert
	}
	rec := l.log[len(l.log)-1]
	l.log = l.log[:len(l.log)-1]

	symbol := rec.Instrument.Symbol
	switch rec.Kind {
	case model.KindBuy:
		if rec.Before != nil {
			l.positions[symbol] = rec.Before.Clone()
		} else {
			delete(l.positions, symbol)
		}
		l.cash = l.cash.Add(rec.Amount)
	case model.KindSell:
		l.positions[symbol] = rec.Before.Clone()
		l.cash = l.cash.Sub(rec.Amount)
	}

	reverted := rec
	reverted.At = time.Now().UTC()
	l.emit(model.KindRevert, reverted)
	return rec, nil
}

// ApplySnapshot merges a fresh market snapshot: each instrument replaces
// its catalog entry, and every held position with a matching symbol is
// repriced. Market-priced positions take the new price and 24h change;
// fixed-income positions recompute their interest accrual and keep a 24h
// change of zero. Positions absent from the snapshot retain their stale
// prices. Cash and the transaction log are never touched. Returns the
// number of positions repriced.
func (l *Ledger) ApplySnapshot(instruments []model.Instrument, at time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	updated := 0
	for _, inst := range instruments {
		l.catalog[inst.Symbol] = inst
		pos, ok := l.positions[inst.Symbol]
		if !ok {
			continue
		}
		if pos.Fixed != nil {
			accrue(pos)
			pos.Change24h = decimal.Zero
		} else {
			pos.Price = inst.Price
			pos.Change24h = inst.Change24h
			recomputeDerived(pos)
		}
		updated++
	}
	l.refreshedAt = at
	return updated
}

// Snapshot is a read-only copy of ledger state for presentation.
type Snapshot struct {
	Cash            decimal.Decimal
	Positions       []model.Position
	LastRefreshedAt time.Time
}

// State returns a consistent copy of cash and positions, sorted by
// symbol for stable output.
func (l *Ledger) State() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Cash:            l.cash,
		Positions:       l.copyPositions(),
		LastRefreshedAt: l.refreshedAt,
	}
}

// Instruments returns the latest known catalog, sorted by symbol.
func (l *Ledger) Instruments() []model.Instrument {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Instrument, 0, len(l.catalog))
	for _, inst := range l.catalog {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Aggregate recomputes the portfolio totals from current positions.
func (l *Ledger) Aggregate() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Aggregate(l.copyPositions())
}

func (l *Ledger) copyPositions() []model.Position {
	out := make([]model.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// recomputeDerived refreshes value and profit/loss from quantity,
// average price and current price.
func recomputeDerived(p *model.Position) {
	p.Value = p.Quantity.Mul(p.Price)
	basis := p.CostBasis()
	p.ProfitLoss = p.Value.Sub(basis)
	if basis.IsPositive() {
		p.ProfitLossPct = p.ProfitLoss.Div(basis).Mul(hundred)
	} else {
		p.ProfitLossPct = decimal.Zero
	}
}

// accrue recomputes a fixed-income position's profit/loss as a
// monthly-equivalent figure from the locked annual rate: the annual
// return on current value, prorated daily, over a 30-day cycle. The
// figure replaces the previous one rather than accumulating.
func accrue(p *model.Position) {
	p.Value = p.Quantity.Mul(p.Price)
	annual := p.Value.Mul(p.Fixed.InterestRate).Div(hundred)
	p.ProfitLoss = annual.Div(accrualDays).Mul(accrualCycleDays)
	basis := p.CostBasis()
	if basis.IsPositive() {
		p.ProfitLossPct = p.ProfitLoss.Div(basis).Mul(hundred)
	} else {
		p.ProfitLossPct = decimal.Zero
	}
}
