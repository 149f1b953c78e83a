// Package journal persists an append-only audit trail of accepted
// ledger operations (buys, sells, reverts) to SQLite, consumed off the
// hot path from the ledger's event channel. It is an audit record only:
// ledger state lives in memory for the session and is never restored
// from the journal.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"investsim/internal/metrics"
	"investsim/internal/model"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Journal owns the SQLite audit database.
type Journal struct {
	db   *sql.DB
	prom *metrics.Metrics // optional
}

// New opens (or creates) the journal database. prom may be nil.
func New(dbPath string, prom *metrics.Metrics) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS ledger_events (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		tx_id     TEXT NOT NULL,
		action    TEXT NOT NULL,
		symbol    TEXT NOT NULL,
		amount    TEXT NOT NULL,
		quantity  TEXT NOT NULL,
		at        DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_events_symbol ON ledger_events(symbol);
	CREATE INDEX IF NOT EXISTS idx_ledger_events_at ON ledger_events(at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[journal] opened audit journal at %s", dbPath)
	return &Journal{db: db, prom: prom}, nil
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Run consumes ledger events and appends them to the journal.
// Blocks until ctx is cancelled or the channel is closed.
func (j *Journal) Run(ctx context.Context, events <-chan model.LedgerEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := j.Record(ev); err != nil {
				log.Printf("[journal] append error: %v", err)
				if j.prom != nil {
					j.prom.JournalDrops.Inc()
				}
				continue
			}
			if j.prom != nil {
				j.prom.JournalWrites.Inc()
			}
		}
	}
}

// Record appends a single event.
func (j *Journal) Record(ev model.LedgerEvent) error {
	_, err := j.db.Exec(`
		INSERT INTO ledger_events (tx_id, action, symbol, amount, quantity, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.TxID.String(), string(ev.Action), ev.Symbol,
		ev.Amount.String(), ev.Quantity.String(), ev.At.UTC(),
	)
	return err
}

// Entry is one journal row.
type Entry struct {
	ID       int64                 `json:"id"`
	TxID     string                `json:"tx_id"`
	Action   model.TransactionKind `json:"action"`
	Symbol   string                `json:"symbol"`
	Amount   decimal.Decimal       `json:"amount"`
	Quantity decimal.Decimal       `json:"quantity"`
	At       time.Time             `json:"at"`
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT id, tx_id, action, symbol, amount, quantity, at
		FROM ledger_events
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query ledger_events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action, amount, quantity string
		if err := rows.Scan(&e.ID, &e.TxID, &action, &e.Symbol, &amount, &quantity, &e.At); err != nil {
			return nil, fmt.Errorf("sqlite scan ledger_events: %w", err)
		}
		e.Action = model.TransactionKind(action)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount in journal row %d: %w", e.ID, err)
		}
		if e.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("bad quantity in journal row %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }
