package ledger

import "errors"

// Sentinel errors returned by ledger operations. All are recoverable:
// a rejected operation leaves state untouched and the caller may retry.
var (
	ErrUnknownSymbol        = errors.New("unknown symbol")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBelowMinimum         = errors.New("amount below minimum investment")
	ErrNoPosition           = errors.New("no position held for symbol")
	ErrInsufficientQuantity = errors.New("quantity exceeds holdings")
	ErrNothingToRevert      = errors.New("nothing to revert")
)
