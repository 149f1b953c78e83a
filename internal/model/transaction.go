package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind discriminates ledger operations.
type TransactionKind string

const (
	KindBuy  TransactionKind = "buy"
	KindSell TransactionKind = "sell"
	// KindRevert appears only on the audit event feed; the transaction
	// log itself holds buys and sells.
	KindRevert TransactionKind = "revert"
)

// TransactionRecord is one append-only entry of the transaction log.
// Before is the affected position as it stood before the trade (nil when
// a buy created the position) and is the sole mechanism enabling revert.
// Records are appended on accepted trades and popped on revert, never
// mutated in place.
type TransactionRecord struct {
	ID         uuid.UUID       `json:"id"`
	Kind       TransactionKind `json:"kind"`
	Instrument Instrument      `json:"instrument"` // snapshot at trade time
	Amount     decimal.Decimal `json:"amount"`     // credits exchanged
	Quantity   decimal.Decimal `json:"quantity"`
	Before     *Position       `json:"before,omitempty"`
	At         time.Time       `json:"at"`
}

// LedgerEvent is the audit feed emitted after every accepted buy, sell
// or revert. Consumed by the transaction journal off the hot path.
type LedgerEvent struct {
	Action   TransactionKind `json:"action"`
	TxID     uuid.UUID       `json:"tx_id"`
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity decimal.Decimal `json:"quantity"`
	At       time.Time       `json:"at"`
}
