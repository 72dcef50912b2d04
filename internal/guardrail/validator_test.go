package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsim/internal/agent/models"
	"agentsim/internal/wallet"
)

func testConfig(t *testing.T) models.AgentConfig {
	t.Helper()
	cfg, err := models.NewAgentConfig("shopper", "Shopper", models.AgentTypeShopping)
	require.NoError(t, err)
	return cfg
}

func debitAt(ts int64) wallet.Transaction {
	return wallet.Transaction{Timestamp: ts, Amount: 10, Type: wallet.Debit, Status: wallet.StatusCompleted}
}

const hour = int64(60 * 60 * 1000)

func TestValidateMandate(t *testing.T) {
	cfg := testConfig(t)
	now := 10 * hour

	t.Run("allows a transaction within every mandate", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 20, Category: "Groceries", MerchantID: "fairprice"}, nil, false, now)
		assert.True(t, res.Allowed)
		assert.False(t, res.RequiresApproval)
		assert.Empty(t, res.Reason)
	})

	t.Run("blocked category is a hard reject", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 20, Category: "Gambling"}, nil, false, now)
		assert.False(t, res.Allowed)
		assert.False(t, res.RequiresApproval)
		assert.True(t, res.HardReject())
		assert.Contains(t, res.Reason, "restricted")
		assert.Equal(t, models.SeverityHigh, res.Severity)
		assert.Equal(t, ConstraintBlockedCategory, res.Constraint)
	})

	t.Run("new merchant requires approval", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 20, Category: "Groceries", MerchantName: "Shady Mart"}, nil, true, now)
		assert.False(t, res.Allowed)
		assert.True(t, res.RequiresApproval)
		assert.Equal(t, "New merchant detected: 'Shady Mart'. Manual mandating required.", res.Reason)
	})

	t.Run("new merchant passes when verification is disabled", func(t *testing.T) {
		relaxed := testConfig(t)
		relaxed.Guardrails.RequireVerificationForNewMerchants.Value = false
		res := ValidateMandate(relaxed, Candidate{Amount: 20, Category: "Groceries"}, nil, true, now)
		assert.True(t, res.Allowed)
	})

	t.Run("amount above threshold requires approval", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 75, Category: "Electronics"}, nil, false, now)
		assert.True(t, res.RequiresApproval)
		assert.Equal(t, "Amount $75 exceeds autonomous mandate threshold ($50).", res.Reason)
	})

	t.Run("amount exactly at threshold is allowed", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 50, Category: "Electronics"}, nil, false, now)
		assert.True(t, res.Allowed)
	})

	t.Run("rate limit counts the trailing hour only", func(t *testing.T) {
		history := []wallet.Transaction{
			debitAt(now - 10*60*1000),
			debitAt(now - 20*60*1000),
			debitAt(now - 30*60*1000),
			debitAt(now - 40*60*1000),
			debitAt(now - 50*60*1000),
		}
		res := ValidateMandate(cfg, Candidate{Amount: 5, Category: "Hawker"}, history, false, now)
		assert.True(t, res.RequiresApproval)
		assert.Equal(t, "Rate limit exceeded: Max 5 transactions per hour.", res.Reason)

		history[4] = debitAt(now - hour)
		res = ValidateMandate(cfg, Candidate{Amount: 5, Category: "Hawker"}, history, false, now)
		assert.True(t, res.Allowed, "an entry exactly one hour old has left the window")
	})

	t.Run("cooldown rounds the remaining wait up", func(t *testing.T) {
		history := []wallet.Transaction{debitAt(now - 15500), debitAt(now - 5*hour)}
		res := ValidateMandate(cfg, Candidate{Amount: 5, Category: "Hawker"}, history, false, now)
		assert.True(t, res.RequiresApproval)
		assert.Equal(t, "Cooling period active. Please wait 45s.", res.Reason)
		assert.Equal(t, ConstraintCooldown, res.Constraint)
	})

	t.Run("cooldown expires after the configured seconds", func(t *testing.T) {
		history := []wallet.Transaction{debitAt(now - 60000)}
		res := ValidateMandate(cfg, Candidate{Amount: 5, Category: "Hawker"}, history, false, now)
		assert.True(t, res.Allowed)
	})

	t.Run("disallowed payment method requires approval", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 5, Category: "Hawker", PaymentMethod: models.PaymentGrabPay}, nil, false, now)
		assert.True(t, res.RequiresApproval)
		assert.Equal(t, "Payment method 'GrabPay' is restricted. Allowed: PayNow, NETS, DBS PayLah!.", res.Reason)
	})

	t.Run("unspecified payment method defaults to PayNow", func(t *testing.T) {
		strict := testConfig(t)
		strict.Guardrails.AllowedPaymentMethods.Value = []models.PaymentMethod{models.PaymentNETS}
		res := ValidateMandate(strict, Candidate{Amount: 5, Category: "Hawker"}, nil, false, now)
		assert.True(t, res.RequiresApproval)
		assert.Contains(t, res.Reason, "'PayNow'")
	})

	t.Run("absent mandate fails closed", func(t *testing.T) {
		broken := testConfig(t)
		broken.Guardrails.ConfirmationThreshold = nil
		res := ValidateMandate(broken, Candidate{Amount: 1, Category: "Hawker"}, nil, false, now)
		assert.True(t, res.HardReject())
		assert.Equal(t, ConstraintMissing, res.Constraint)
		assert.Contains(t, res.Reason, ConstraintThreshold)
	})
}

func TestValidateMandate_Precedence(t *testing.T) {
	cfg := testConfig(t)
	now := 5 * hour
	busy := []wallet.Transaction{debitAt(now - 1000)}

	t.Run("category block wins over threshold and new merchant", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 500, Category: "Unregulated Crypto"}, busy, true, now)
		assert.True(t, res.HardReject())
		assert.Equal(t, ConstraintBlockedCategory, res.Constraint)
	})

	t.Run("new merchant wins over threshold", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 500, Category: "Electronics"}, busy, true, now)
		assert.Equal(t, ConstraintNewMerchant, res.Constraint)
	})

	t.Run("threshold wins over cooldown", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 500, Category: "Electronics"}, busy, false, now)
		assert.Equal(t, ConstraintThreshold, res.Constraint)
	})

	t.Run("cooldown wins over payment method", func(t *testing.T) {
		res := ValidateMandate(cfg, Candidate{Amount: 5, Category: "Hawker", PaymentMethod: models.PaymentGrabPay}, busy, false, now)
		assert.Equal(t, ConstraintCooldown, res.Constraint)
	})
}

func TestCooldownRemaining(t *testing.T) {
	tests := []struct {
		name      string
		elapsedMs int64
		cooldown  int
		want      int
		active    bool
	}{
		{"just happened", 0, 60, 60, true},
		{"fractional second rounds up", 59001, 60, 1, true},
		{"exactly elapsed", 60000, 60, 0, false},
		{"disabled cooldown", 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, active := CooldownRemaining([]wallet.Transaction{debitAt(100000)}, 100000+tt.elapsedMs, tt.cooldown)
			assert.Equal(t, tt.active, active)
			assert.Equal(t, tt.want, got)
		})
	}

	_, active := CooldownRemaining(nil, 1000, 60)
	assert.False(t, active, "empty history has no cooldown")
}
