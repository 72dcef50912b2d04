package wallet

// TransactionType is the direction of money movement.
type TransactionType string

const (
	Debit  TransactionType = "debit"
	Credit TransactionType = "credit"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Transaction is a ledger entry. Timestamp is simulated milliseconds.
type Transaction struct {
	ID            string            `json:"id"`
	Timestamp     int64             `json:"timestamp"`
	Amount        float64           `json:"amount"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	MerchantID    string            `json:"merchant_id,omitempty"`
	MerchantName  string            `json:"merchant_name,omitempty"`
	Category      string            `json:"category,omitempty"`
	AgentID       string            `json:"agent_id"`
	Description   string            `json:"description"`
	Reasoning     string            `json:"reasoning,omitempty"`
	ReservationID string            `json:"reservation_id,omitempty"`
}

// ReservationStatus tracks a hold on funds.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationReleased  ReservationStatus = "released"
	ReservationCompleted ReservationStatus = "completed"
)

// Reservation holds funds while a decision waits for a human.
type Reservation struct {
	ID          string            `json:"id"`
	Amount      float64           `json:"amount"`
	AgentID     string            `json:"agent_id"`
	Description string            `json:"description"`
	CreatedAt   int64             `json:"created_at"`
	Status      ReservationStatus `json:"status"`
}

// Snapshot is a consistent read of the wallet balances.
type Snapshot struct {
	Balance    float64 `json:"balance"`
	Reserved   float64 `json:"reserved"`
	Available  float64 `json:"available"`
	DailySpent float64 `json:"daily_spent"`
	DailyLimit float64 `json:"daily_limit"`
	TotalSpent float64 `json:"total_spent"`
}
