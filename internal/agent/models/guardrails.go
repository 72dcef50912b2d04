package models

import (
	"errors"
	"fmt"

	"agentsim/pkg/platform/sentinel"
)

// Severity grades how serious a mandate breach is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskLevel maps a severity onto the 1-5 decision risk scale.
func (s Severity) RiskLevel() int {
	switch s {
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	}
	return 0
}

// ConstraintCategory groups mandates for display and reporting.
type ConstraintCategory string

const (
	ConstraintAuthorization       ConstraintCategory = "authorization"
	ConstraintSpendingLimit       ConstraintCategory = "spending_limit"
	ConstraintCategoryRestriction ConstraintCategory = "category_restriction"
	ConstraintCooldown            ConstraintCategory = "cooldown"
)

// PaymentMethod is a local payment channel.
type PaymentMethod string

const (
	PaymentPayNow    PaymentMethod = "PayNow"
	PaymentNETS      PaymentMethod = "NETS"
	PaymentGrabPay   PaymentMethod = "GrabPay"
	PaymentDBSPayLah PaymentMethod = "DBS PayLah!"
)

// DefaultPaymentMethod is assumed when a transaction does not name one.
const DefaultPaymentMethod = PaymentPayNow

// MandateConstraint is one guardrail value plus the metadata that explains it.
type MandateConstraint[T any] struct {
	Value         T                  `json:"value" yaml:"value"`
	RiskMitigated string             `json:"risk_mitigated" yaml:"risk_mitigated"`
	Severity      Severity           `json:"severity" yaml:"severity"`
	Category      ConstraintCategory `json:"category" yaml:"category"`
	Description   string             `json:"description" yaml:"description"`
}

// GuardrailSettings holds the six mandates every agent carries. A nil field
// means the mandate is absent; validation fails closed on absent mandates.
type GuardrailSettings struct {
	RequireVerificationForNewMerchants *MandateConstraint[bool]            `json:"require_verification_for_new_merchants" yaml:"require_verification_for_new_merchants"`
	ConfirmationThreshold              *MandateConstraint[float64]         `json:"confirmation_threshold" yaml:"confirmation_threshold"`
	MaxTransactionsPerHour             *MandateConstraint[int]             `json:"max_transactions_per_hour" yaml:"max_transactions_per_hour"`
	TransactionCooldownSeconds         *MandateConstraint[int]             `json:"transaction_cooldown_seconds" yaml:"transaction_cooldown_seconds"`
	BlockedCategories                  *MandateConstraint[[]string]        `json:"blocked_categories" yaml:"blocked_categories"`
	AllowedPaymentMethods              *MandateConstraint[[]PaymentMethod] `json:"allowed_payment_methods" yaml:"allowed_payment_methods"`
}

// DefaultMandates returns the Singapore retail defaults.
func DefaultMandates() GuardrailSettings {
	return GuardrailSettings{
		RequireVerificationForNewMerchants: &MandateConstraint[bool]{
			Value:         true,
			RiskMitigated: "Prevents Merchant Impersonation (Scam Defense)",
			Severity:      SeverityHigh,
			Category:      ConstraintAuthorization,
			Description:   "Require manual approval the first time an agent pays a merchant",
		},
		ConfirmationThreshold: &MandateConstraint[float64]{
			Value:         50,
			RiskMitigated: "Mitigates Large Unauthorized FAST/PayNow Transfers",
			Severity:      SeverityMedium,
			Category:      ConstraintSpendingLimit,
			Description:   "Amounts above this need explicit confirmation",
		},
		MaxTransactionsPerHour: &MandateConstraint[int]{
			Value:         5,
			RiskMitigated: "Prevents Runaway Transaction Loops / API Errors",
			Severity:      SeverityMedium,
			Category:      ConstraintSpendingLimit,
			Description:   "Maximum autonomous transactions in any trailing hour",
		},
		TransactionCooldownSeconds: &MandateConstraint[int]{
			Value:         60,
			RiskMitigated: "Phishing Defense & Impulse Control",
			Severity:      SeverityLow,
			Category:      ConstraintCooldown,
			Description:   "Minimum seconds between autonomous transactions",
		},
		BlockedCategories: &MandateConstraint[[]string]{
			Value: []string{
				"Gambling",
				"Unregulated Crypto",
				"Offshore Investment",
				"CPF Schemes",
				"Unlicensed Financial Advice",
				"Job Scams",
			},
			RiskMitigated: "Regulatory Compliance (MAS/CPF) & High-Risk Exposure",
			Severity:      SeverityHigh,
			Category:      ConstraintCategoryRestriction,
			Description:   "Categories the agent may never pay into",
		},
		AllowedPaymentMethods: &MandateConstraint[[]PaymentMethod]{
			Value:         []PaymentMethod{PaymentPayNow, PaymentNETS, PaymentDBSPayLah},
			RiskMitigated: "Payment Channel Security",
			Severity:      SeverityLow,
			Category:      ConstraintAuthorization,
			Description:   "Payment channels the agent may use without confirmation",
		},
	}
}

// Validate reports absent mandates and out-of-range values.
func (g GuardrailSettings) Validate() error {
	var errs []error
	if g.RequireVerificationForNewMerchants == nil {
		errs = append(errs, errors.New("require_verification_for_new_merchants mandate is required"))
	}
	if g.ConfirmationThreshold == nil {
		errs = append(errs, errors.New("confirmation_threshold mandate is required"))
	} else if g.ConfirmationThreshold.Value < 0 {
		errs = append(errs, errors.New("confirmation threshold must not be negative"))
	}
	if g.MaxTransactionsPerHour == nil {
		errs = append(errs, errors.New("max_transactions_per_hour mandate is required"))
	} else if g.MaxTransactionsPerHour.Value < 0 {
		errs = append(errs, errors.New("max transactions per hour must not be negative"))
	}
	if g.TransactionCooldownSeconds == nil {
		errs = append(errs, errors.New("transaction_cooldown_seconds mandate is required"))
	} else if g.TransactionCooldownSeconds.Value < 0 {
		errs = append(errs, errors.New("cooldown must not be negative"))
	}
	if g.BlockedCategories == nil {
		errs = append(errs, errors.New("blocked_categories mandate is required"))
	}
	if g.AllowedPaymentMethods == nil {
		errs = append(errs, errors.New("allowed_payment_methods mandate is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("guardrails: %w: %w", sentinel.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}
