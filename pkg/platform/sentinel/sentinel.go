package sentinel

import "errors"

// Sentinel errors for infrastructure and contract facts. Stores, the ledger and
// constructors return these (optionally wrapped) so callers can classify them
// with errors.Is without depending on concrete error types.
//
// - ErrNotFound: entity does not exist
// - ErrConflict: entity already exists or was resolved concurrently
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrInvalidInput: precondition violation (malformed config or item)
// - ErrInsufficientFunds: ledger cannot cover a debit or reservation
// - ErrUnavailable: sink or resource temporarily unavailable
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnavailable       = errors.New("unavailable")
)
