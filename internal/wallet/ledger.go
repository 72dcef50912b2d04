package wallet

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"agentsim/pkg/platform/sentinel"
)

// Defaults applied when no options are given.
const (
	DefaultBalance    = 1000
	DefaultDailyLimit = 500
)

// Ledger is the in-memory wallet. It is the single place where balances are
// computed and where double-spend prevention lives.
type Ledger struct {
	mu           sync.RWMutex
	balance      float64
	dailySpent   float64
	dailyLimit   float64
	totalSpent   float64
	transactions []Transaction
	reservations map[string]*Reservation
	newID        func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithInitialBalance sets the opening balance.
func WithInitialBalance(balance float64) Option {
	return func(l *Ledger) {
		l.balance = balance
	}
}

// WithDailyLimit sets the daily spending limit reported in snapshots.
func WithDailyLimit(limit float64) Option {
	return func(l *Ledger) {
		l.dailyLimit = limit
	}
}

// WithIDGenerator replaces the uuid based id source, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		l.newID = fn
	}
}

// NewLedger creates a ledger with the default balance and limit.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		balance:      DefaultBalance,
		dailyLimit:   DefaultDailyLimit,
		reservations: make(map[string]*Reservation),
		newID:        func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reset empties the ledger and sets a new opening balance. The daily limit is kept.
func (l *Ledger) Reset(balance float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = balance
	l.dailySpent = 0
	l.totalSpent = 0
	l.transactions = nil
	l.reservations = make(map[string]*Reservation)
}

// AddTransaction records txn, newest first, and applies it to the balance.
// Debits that exceed the available (unreserved) balance fail with
// sentinel.ErrInsufficientFunds and leave the ledger untouched.
func (l *Ledger) AddTransaction(txn Transaction) (Transaction, error) {
	if txn.Amount < 0 {
		return Transaction{}, fmt.Errorf("transaction amount %v: %w", txn.Amount, sentinel.ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if txn.Type == Debit && txn.Amount > l.available() {
		return Transaction{}, fmt.Errorf("debit of %.2f with %.2f available: %w", txn.Amount, l.available(), sentinel.ErrInsufficientFunds)
	}
	return l.apply(txn), nil
}

// CreateReservation holds amount against the available balance.
func (l *Ledger) CreateReservation(amount float64, agentID, description string, now int64) (Reservation, error) {
	if amount <= 0 {
		return Reservation{}, fmt.Errorf("reservation amount %v: %w", amount, sentinel.ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount > l.available() {
		return Reservation{}, fmt.Errorf("reserve %.2f with %.2f available: %w", amount, l.available(), sentinel.ErrInsufficientFunds)
	}
	r := &Reservation{
		ID:          l.newID(),
		Amount:      amount,
		AgentID:     agentID,
		Description: description,
		CreatedAt:   now,
		Status:      ReservationActive,
	}
	l.reservations[r.ID] = r
	return *r, nil
}

// ReleaseReservation returns held funds. Unknown or settled ids return false.
func (l *Ledger) ReleaseReservation(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.reservations[id]
	if !ok || r.Status != ReservationActive {
		return false
	}
	r.Status = ReservationReleased
	return true
}

// CompleteReservation settles a hold as a debit of the reserved amount.
func (l *Ledger) CompleteReservation(id string, txn Transaction) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.reservations[id]
	if !ok {
		return Transaction{}, fmt.Errorf("reservation %s: %w", id, sentinel.ErrNotFound)
	}
	if r.Status != ReservationActive {
		return Transaction{}, fmt.Errorf("reservation %s is %s: %w", id, r.Status, sentinel.ErrInvalidState)
	}
	r.Status = ReservationCompleted
	txn.Amount = r.Amount
	txn.Type = Debit
	txn.ReservationID = id
	return l.apply(txn), nil
}

// Reservation returns a copy of the reservation with the given id.
func (l *Ledger) Reservation(id string) (Reservation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.reservations[id]
	if !ok {
		return Reservation{}, false
	}
	return *r, true
}

// Snapshot returns the current balances.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Balance:    l.balance,
		Reserved:   l.reserved(),
		Available:  l.available(),
		DailySpent: l.dailySpent,
		DailyLimit: l.dailyLimit,
		TotalSpent: l.totalSpent,
	}
}

// Transactions returns a copy of the history, newest first.
func (l *Ledger) Transactions() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Transaction(nil), l.transactions...)
}

// ResetDailySpent starts a new spending day.
func (l *Ledger) ResetDailySpent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailySpent = 0
}

// SetDailyLimit changes the limit reported in snapshots.
func (l *Ledger) SetDailyLimit(limit float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailyLimit = limit
}

// apply must be called with l.mu held.
func (l *Ledger) apply(txn Transaction) Transaction {
	if txn.ID == "" {
		txn.ID = l.newID()
	}
	if txn.Status == "" {
		txn.Status = StatusCompleted
	}
	if txn.Status == StatusCompleted {
		switch txn.Type {
		case Debit:
			l.balance -= txn.Amount
			l.dailySpent += txn.Amount
			l.totalSpent += txn.Amount
		case Credit:
			l.balance += txn.Amount
		}
	}
	l.transactions = append([]Transaction{txn}, l.transactions...)
	return txn
}

func (l *Ledger) reserved() float64 {
	var total float64
	for _, r := range l.reservations {
		if r.Status == ReservationActive {
			total += r.Amount
		}
	}
	return total
}

func (l *Ledger) available() float64 {
	return l.balance - l.reserved()
}
