package guardrail

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"agentsim/internal/agent/models"
	"agentsim/internal/wallet"
)

// RateWindow is the trailing window for the per-hour transaction limit, in ms.
const RateWindow int64 = 60 * 60 * 1000

// Constraint names reported in Result.Constraint.
const (
	ConstraintBlockedCategory = "blocked_categories"
	ConstraintNewMerchant     = "require_verification_for_new_merchants"
	ConstraintThreshold       = "confirmation_threshold"
	ConstraintRateLimit       = "max_transactions_per_hour"
	ConstraintCooldown        = "transaction_cooldown_seconds"
	ConstraintPaymentMethod   = "allowed_payment_methods"
	ConstraintMissing         = "missing_mandate"
)

// Candidate is the transaction an agent is about to make.
type Candidate struct {
	Amount        float64
	Category      string
	MerchantID    string
	MerchantName  string
	PaymentMethod models.PaymentMethod
}

// Result is the outcome of mandate validation. When Allowed is false and
// RequiresApproval is false the transaction is a hard reject.
type Result struct {
	Allowed          bool
	RequiresApproval bool
	Reason           string
	MitigationRisk   string
	Severity         models.Severity
	Constraint       string
}

// HardReject reports whether no approval path exists.
func (r Result) HardReject() bool {
	return !r.Allowed && !r.RequiresApproval
}

// ValidateMandate checks txn against the agent's guardrails. Rules are applied
// in a fixed order and the first violated rule decides the result. history must
// be sorted newest first; now is simulated milliseconds.
// This is pure domain logic - no I/O, no side effects.
func ValidateMandate(cfg models.AgentConfig, txn Candidate, history []wallet.Transaction, isNewMerchant bool, now int64) Result {
	g := cfg.Guardrails

	// Rule 0: absent mandates fail closed
	if missing := missingMandates(g); len(missing) > 0 {
		return Result{
			Reason:     fmt.Sprintf("Guardrail configuration incomplete: missing %s.", strings.Join(missing, ", ")),
			Severity:   models.SeverityHigh,
			Constraint: ConstraintMissing,
		}
	}

	// Rule 1: category block (hard fail) - compliance-critical
	if slices.Contains(g.BlockedCategories.Value, txn.Category) {
		return violation(g.BlockedCategories.RiskMitigated, g.BlockedCategories.Severity, ConstraintBlockedCategory, false,
			fmt.Sprintf("Transaction blocked: Category '%s' is restricted.", txn.Category))
	}

	// Rule 2: first payment to an unknown merchant
	if isNewMerchant && g.RequireVerificationForNewMerchants.Value {
		return violation(g.RequireVerificationForNewMerchants.RiskMitigated, g.RequireVerificationForNewMerchants.Severity, ConstraintNewMerchant, true,
			fmt.Sprintf("New merchant detected: '%s'. Manual mandating required.", merchantLabel(txn)))
	}

	// Rule 3: confirmation threshold
	if txn.Amount > g.ConfirmationThreshold.Value {
		return violation(g.ConfirmationThreshold.RiskMitigated, g.ConfirmationThreshold.Severity, ConstraintThreshold, true,
			fmt.Sprintf("Amount $%s exceeds autonomous mandate threshold ($%s).",
				models.FormatAmount(txn.Amount), models.FormatAmount(g.ConfirmationThreshold.Value)))
	}

	// Rule 4: trailing-hour rate limit
	if CountWithin(history, now, RateWindow) >= g.MaxTransactionsPerHour.Value {
		return violation(g.MaxTransactionsPerHour.RiskMitigated, g.MaxTransactionsPerHour.Severity, ConstraintRateLimit, true,
			fmt.Sprintf("Rate limit exceeded: Max %d transactions per hour.", g.MaxTransactionsPerHour.Value))
	}

	// Rule 5: cooldown since the most recent transaction
	if remaining, active := CooldownRemaining(history, now, g.TransactionCooldownSeconds.Value); active {
		return violation(g.TransactionCooldownSeconds.RiskMitigated, g.TransactionCooldownSeconds.Severity, ConstraintCooldown, true,
			fmt.Sprintf("Cooling period active. Please wait %ds.", remaining))
	}

	// Rule 6: payment channel allow-list
	method := txn.PaymentMethod
	if method == "" {
		method = models.DefaultPaymentMethod
	}
	if !slices.Contains(g.AllowedPaymentMethods.Value, method) {
		return violation(g.AllowedPaymentMethods.RiskMitigated, g.AllowedPaymentMethods.Severity, ConstraintPaymentMethod, true,
			fmt.Sprintf("Payment method '%s' is restricted. Allowed: %s.", method, joinMethods(g.AllowedPaymentMethods.Value)))
	}

	return Result{Allowed: true}
}

// CountWithin counts entries whose timestamp lies in (now-window, now].
func CountWithin(history []wallet.Transaction, now, window int64) int {
	cutoff := now - window
	count := 0
	for _, t := range history {
		if t.Timestamp > cutoff && t.Timestamp <= now {
			count++
		}
	}
	return count
}

// CooldownRemaining returns the whole seconds left on the cooldown, rounded up,
// measured from the newest entry in history.
func CooldownRemaining(history []wallet.Transaction, now int64, cooldownSeconds int) (int, bool) {
	if len(history) == 0 || cooldownSeconds <= 0 {
		return 0, false
	}
	elapsed := float64(now-history[0].Timestamp) / 1000
	if elapsed >= float64(cooldownSeconds) {
		return 0, false
	}
	return int(math.Ceil(float64(cooldownSeconds) - elapsed)), true
}

func violation(risk string, severity models.Severity, constraint string, approvable bool, reason string) Result {
	return Result{
		RequiresApproval: approvable,
		Reason:           reason,
		MitigationRisk:   risk,
		Severity:         severity,
		Constraint:       constraint,
	}
}

func missingMandates(g models.GuardrailSettings) []string {
	var missing []string
	if g.BlockedCategories == nil {
		missing = append(missing, ConstraintBlockedCategory)
	}
	if g.RequireVerificationForNewMerchants == nil {
		missing = append(missing, ConstraintNewMerchant)
	}
	if g.ConfirmationThreshold == nil {
		missing = append(missing, ConstraintThreshold)
	}
	if g.MaxTransactionsPerHour == nil {
		missing = append(missing, ConstraintRateLimit)
	}
	if g.TransactionCooldownSeconds == nil {
		missing = append(missing, ConstraintCooldown)
	}
	if g.AllowedPaymentMethods == nil {
		missing = append(missing, ConstraintPaymentMethod)
	}
	return missing
}

func merchantLabel(txn Candidate) string {
	if txn.MerchantName != "" {
		return txn.MerchantName
	}
	return txn.MerchantID
}

func joinMethods(methods []models.PaymentMethod) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
