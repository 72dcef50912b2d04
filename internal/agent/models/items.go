package models

import (
	"errors"
	"fmt"

	"agentsim/pkg/platform/sentinel"
)

// Item is anything a decision policy can evaluate. The set of implementations
// is closed: Product, Bill, Subscription and Investment.
type Item interface {
	ItemID() string
	Validate() error
	isItem()
}

// Product is a purchasable good offered by a merchant.
type Product struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Category      string  `json:"category" yaml:"category"`
	MerchantID    string  `json:"merchant_id" yaml:"merchant_id"`
	Price         float64 `json:"price" yaml:"price"`
	OriginalPrice float64 `json:"original_price,omitempty" yaml:"original_price,omitempty"`
	Rating        float64 `json:"rating" yaml:"rating"`
	InStock       bool    `json:"in_stock" yaml:"in_stock"`
	Priority      int     `json:"priority" yaml:"priority"`
}

func (p Product) ItemID() string { return p.ID }
func (Product) isItem() {}

func (p Product) Validate() error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if p.Price < 0 || notFinite(p.Price) {
		errs = append(errs, fmt.Errorf("price must be a non-negative number, got %v", p.Price))
	}
	if p.OriginalPrice < 0 || notFinite(p.OriginalPrice) {
		errs = append(errs, fmt.Errorf("original price must be a non-negative number, got %v", p.OriginalPrice))
	}
	if p.Rating < 0 || p.Rating > 5 {
		errs = append(errs, fmt.Errorf("rating must be within 0-5, got %v", p.Rating))
	}
	return itemErr("product", p.ID, errs)
}

// BillPriority orders bills for payment.
type BillPriority string

const (
	BillEssential BillPriority = "essential"
	BillImportant BillPriority = "important"
	BillOptional  BillPriority = "optional"
)

// Rank orders priorities; lower ranks are paid first.
func (p BillPriority) Rank() int {
	switch p {
	case BillEssential:
		return 0
	case BillImportant:
		return 1
	case BillOptional:
		return 2
	}
	return 3
}

// Bill is a payable obligation due at a simulated time (ms since epoch).
type Bill struct {
	ID                string       `json:"id" yaml:"id"`
	Name              string       `json:"name" yaml:"name"`
	Payee             string       `json:"payee,omitempty" yaml:"payee,omitempty"`
	Amount            float64      `json:"amount" yaml:"amount"`
	DueAt             int64        `json:"due_at_ms" yaml:"due_at_ms"`
	Category          string       `json:"category" yaml:"category"`
	Priority          BillPriority `json:"priority" yaml:"priority"`
	IsPaid            bool         `json:"is_paid" yaml:"is_paid"`
	IsRecurring       bool         `json:"is_recurring" yaml:"is_recurring"`
	RecurringInterval string       `json:"recurring_interval,omitempty" yaml:"recurring_interval,omitempty"`
}

func (b Bill) ItemID() string { return b.ID }
func (Bill) isItem() {}

// PayeeName is the merchant identity used for new-merchant checks.
func (b Bill) PayeeName() string {
	if b.Payee != "" {
		return b.Payee
	}
	return b.Name
}

func (b Bill) Validate() error {
	var errs []error
	if b.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if b.Amount < 0 || notFinite(b.Amount) {
		errs = append(errs, fmt.Errorf("amount must be a non-negative number, got %v", b.Amount))
	}
	if b.Priority.Rank() > 2 {
		errs = append(errs, fmt.Errorf("unknown priority %q", b.Priority))
	}
	return itemErr("bill", b.ID, errs)
}

// Alternative is a cheaper replacement for a subscription.
type Alternative struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	MonthlyAmount float64  `json:"monthly_amount" yaml:"monthly_amount"`
	Features      []string `json:"features,omitempty" yaml:"features,omitempty"`
	Savings       float64  `json:"savings" yaml:"savings"`
}

// Subscription is a recurring charge reviewed at its renewal time.
type Subscription struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	MonthlyAmount float64       `json:"monthly_amount" yaml:"monthly_amount"`
	Category      string        `json:"category" yaml:"category"`
	Value         int           `json:"value" yaml:"value"`
	UsageScore    float64       `json:"usage_score" yaml:"usage_score"`
	Alternatives  []Alternative `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
	IsActive      bool          `json:"is_active" yaml:"is_active"`
	RenewalAt     int64         `json:"renewal_at_ms" yaml:"renewal_at_ms"`
}

func (s Subscription) ItemID() string { return s.ID }
func (Subscription) isItem() {}

// BestAlternative returns the alternative with the highest savings.
func (s Subscription) BestAlternative() (Alternative, bool) {
	if len(s.Alternatives) == 0 {
		return Alternative{}, false
	}
	best := s.Alternatives[0]
	for _, alt := range s.Alternatives[1:] {
		if alt.Savings > best.Savings {
			best = alt
		}
	}
	return best, true
}

// Switched returns the subscription moved onto plan alt. The item keeps its id
// so scheduled renewals follow it; the old alternatives priced savings against
// the previous plan and are dropped.
func (s Subscription) Switched(alt Alternative) Subscription {
	s.Name = alt.Name
	s.MonthlyAmount = alt.MonthlyAmount
	s.Alternatives = nil
	s.IsActive = true
	return s
}

func (s Subscription) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if s.MonthlyAmount < 0 || notFinite(s.MonthlyAmount) {
		errs = append(errs, fmt.Errorf("monthly amount must be a non-negative number, got %v", s.MonthlyAmount))
	}
	if s.UsageScore < 0 || s.UsageScore > 1 || notFinite(s.UsageScore) {
		errs = append(errs, fmt.Errorf("usage score must be within 0-1, got %v", s.UsageScore))
	}
	for _, alt := range s.Alternatives {
		if alt.MonthlyAmount < 0 || alt.Savings < 0 {
			errs = append(errs, fmt.Errorf("alternative %s has negative amounts", alt.ID))
		}
	}
	return itemErr("subscription", s.ID, errs)
}

// InvestmentType is the asset class of an investment.
type InvestmentType string

const (
	InvestmentStock  InvestmentType = "stock"
	InvestmentBond   InvestmentType = "bond"
	InvestmentETF    InvestmentType = "etf"
	InvestmentCrypto InvestmentType = "crypto"
)

// Investment is a tradable asset with a market snapshot.
type Investment struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Type           InvestmentType `json:"type" yaml:"type"`
	CurrentPrice   float64        `json:"current_price" yaml:"current_price"`
	PreviousPrice  float64        `json:"previous_price" yaml:"previous_price"`
	RiskLevel      int            `json:"risk_level" yaml:"risk_level"`
	ExpectedReturn float64        `json:"expected_return" yaml:"expected_return"`
	Volatility     float64        `json:"volatility" yaml:"volatility"`
}

func (i Investment) ItemID() string { return i.ID }
func (Investment) isItem() {}

// PriceChange is the fractional move from the previous to the current price.
func (i Investment) PriceChange() float64 {
	return (i.CurrentPrice - i.PreviousPrice) / i.PreviousPrice
}

func (i Investment) Validate() error {
	var errs []error
	if i.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if i.PreviousPrice <= 0 || notFinite(i.PreviousPrice) {
		errs = append(errs, fmt.Errorf("previous price must be positive, got %v", i.PreviousPrice))
	}
	if i.CurrentPrice < 0 || notFinite(i.CurrentPrice) {
		errs = append(errs, fmt.Errorf("current price must be non-negative, got %v", i.CurrentPrice))
	}
	if i.RiskLevel < 1 || i.RiskLevel > 5 {
		errs = append(errs, fmt.Errorf("risk level must be within 1-5, got %d", i.RiskLevel))
	}
	if notFinite(i.ExpectedReturn) || notFinite(i.Volatility) {
		errs = append(errs, errors.New("expected return and volatility must be finite"))
	}
	return itemErr("investment", i.ID, errs)
}

func itemErr(kind, id string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s %q: %w: %w", kind, id, sentinel.ErrInvalidInput, errors.Join(errs...))
}
