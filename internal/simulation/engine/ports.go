package engine

import (
	"context"

	"agentsim/internal/audit"
	"agentsim/internal/wallet"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Ledger,ActionLog

// Ledger is the wallet collaborator. The engine never computes balances; it
// issues debits, credits and holds and trusts the ledger to stay consistent.
type Ledger interface {
	Reset(balance float64)
	AddTransaction(txn wallet.Transaction) (wallet.Transaction, error)
	CreateReservation(amount float64, agentID, description string, now int64) (wallet.Reservation, error)
	ReleaseReservation(id string) bool
	CompleteReservation(id string, txn wallet.Transaction) (wallet.Transaction, error)
	Snapshot() wallet.Snapshot
	Transactions() []wallet.Transaction
	ResetDailySpent()
	SetDailyLimit(limit float64)
}

// ActionLog is the append-only agent action sink. The engine never reads it.
type ActionLog interface {
	Emit(ctx context.Context, action audit.Action) error
	Clear(ctx context.Context) error
}
