package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsim/internal/agent/models"
)

// =============================================================================
// Shopping Policy Tests
// =============================================================================
// Justification for unit tests: the shopping policy is a pure rule chain whose
// order decides the verdict. Tests pin the first failing rule for each path,
// the auto-approve boundary and the shape of the explanation tree.

func shoppingConfig(t *testing.T) models.AgentConfig {
	t.Helper()
	cfg, err := models.NewAgentConfig("shopper", "Shopper", models.AgentTypeShopping)
	require.NoError(t, err)
	cfg.SpendingLimits = models.SpendingLimits{PerTransaction: 100, Daily: 300, AutoApproveThreshold: 25}
	return cfg
}

func product(price float64) models.Product {
	return models.Product{
		ID:         "prod-1",
		Name:       "Kopi Beans",
		Category:   "Groceries",
		MerchantID: "fairprice",
		Price:      price,
		Rating:     4.5,
		InStock:    true,
	}
}

func walletCtx() Context {
	return Context{Balance: 500, DailyLimit: 300}
}

func TestEvaluateShopping(t *testing.T) {
	cfg := shoppingConfig(t)
	opts := DefaultShoppingOptions()

	t.Run("cheap in-stock product auto-approves", func(t *testing.T) {
		d := EvaluateShopping(cfg, opts, product(15), walletCtx())
		assert.Equal(t, models.ActionApprove, d.Action)
		assert.LessOrEqual(t, d.RiskLevel, 2)
		assert.Equal(t, 15.0, d.Amount)
		assert.Equal(t, models.FlowDebit, d.Flow)
	})

	t.Run("price over auto-approve threshold requests approval", func(t *testing.T) {
		d := EvaluateShopping(cfg, opts, product(75), walletCtx())
		assert.Equal(t, models.ActionRequestApproval, d.Action)
		assert.Equal(t, "Price $75 exceeds auto-approval threshold of $25", d.Reason)
	})

	t.Run("out of stock rejects", func(t *testing.T) {
		p := product(20)
		p.InStock = false
		d := EvaluateShopping(cfg, opts, p, walletCtx())
		assert.Equal(t, models.ActionReject, d.Action)
		assert.Contains(t, d.Reason, "out of stock")
		assert.Equal(t, 0, d.RiskLevel)
	})

	t.Run("price over per-transaction limit rejects", func(t *testing.T) {
		d := EvaluateShopping(cfg, opts, product(150), walletCtx())
		assert.Equal(t, models.ActionReject, d.Action)
		assert.Contains(t, d.Reason, "exceeds per-transaction limit")
		assert.Equal(t, 5, d.RiskLevel)
	})

	t.Run("purchase over daily allowance rejects", func(t *testing.T) {
		ctx := Context{Balance: 500, DailySpent: 475, DailyLimit: 500}
		d := EvaluateShopping(cfg, opts, product(50), ctx)
		assert.Equal(t, models.ActionReject, d.Action)
		assert.Contains(t, d.Reason, "daily")
	})

	t.Run("wallet limit tighter than config applies", func(t *testing.T) {
		ctx := Context{Balance: 500, DailySpent: 90, DailyLimit: 100}
		d := EvaluateShopping(cfg, opts, product(20), ctx)
		assert.Equal(t, models.ActionReject, d.Action)
		assert.Equal(t, "Purchase would exceed daily spending limit of $100", d.Reason)
	})

	t.Run("blocked merchant rejects", func(t *testing.T) {
		blocked := cfg
		blocked.BlockedMerchants = []string{"fairprice"}
		d := EvaluateShopping(blocked, opts, product(15), walletCtx())
		assert.Equal(t, models.ActionReject, d.Action)
		assert.Equal(t, "Merchant is blocked", d.Reason)
	})

	t.Run("category outside allow-list requests approval", func(t *testing.T) {
		restricted := cfg
		restricted.AllowedCategories = []string{"Electronics"}
		d := EvaluateShopping(restricted, opts, product(15), walletCtx())
		assert.Equal(t, models.ActionRequestApproval, d.Action)
		assert.Equal(t, `Category "Groceries" requires approval`, d.Reason)
		assert.Equal(t, 3, d.RiskLevel)
	})

	t.Run("risk above approval threshold requests approval", func(t *testing.T) {
		p := product(20)
		p.Rating = 2
		d := EvaluateShopping(cfg, opts, p, Context{Balance: 25, DailyLimit: 300})
		assert.Equal(t, models.ActionRequestApproval, d.Action)
		assert.Equal(t, 4, d.RiskLevel)
		assert.Equal(t, "Risk level 4 exceeds approval threshold of 3", d.Reason)
	})
}

func TestEvaluateShopping_AutoApproveBoundary(t *testing.T) {
	cfg := shoppingConfig(t)
	opts := DefaultShoppingOptions()

	at := EvaluateShopping(cfg, opts, product(25), walletCtx())
	assert.Equal(t, models.ActionApprove, at.Action)
	assert.LessOrEqual(t, at.RiskLevel, cfg.RiskSettings.RequireApprovalAbove)

	above := EvaluateShopping(cfg, opts, product(25.01), walletCtx())
	assert.Equal(t, models.ActionRequestApproval, above.Action)
}

func TestEvaluateShopping_TreeFollowsBranchTaken(t *testing.T) {
	cfg := shoppingConfig(t)
	opts := DefaultShoppingOptions()

	t.Run("rejection stops the path", func(t *testing.T) {
		d := EvaluateShopping(cfg, opts, product(150), walletCtx())
		require.NotNil(t, d.Tree)
		assert.Equal(t, "root", d.Tree.ID)
		assert.True(t, d.Tree.IsActive)

		budget := d.Tree.Find("budget_check")
		require.NotNil(t, budget)
		assert.Equal(t, models.ResultFail, budget.Result)
		assert.Equal(t, "Under $100 limit?", budget.Label)
		assert.Nil(t, d.Tree.Find("daily_limit_check"))

		outcome := d.Tree.Find("outcome")
		require.NotNil(t, outcome)
		assert.Equal(t, models.NodeOutcome, outcome.Type)
		assert.Equal(t, models.ResultFail, outcome.Result)
	})

	t.Run("approval walks every check", func(t *testing.T) {
		d := EvaluateShopping(cfg, opts, product(15), walletCtx())
		var ids []string
		d.Tree.Walk(func(n *models.DecisionNode, _ int) {
			ids = append(ids, n.ID)
		})
		assert.Equal(t, []string{
			"root", "stock_check", "budget_check", "daily_limit_check",
			"merchant_check", "category_check", "auto_approve_check", "risk_check", "outcome",
		}, ids)
		assert.Equal(t, "Auto-Approve", d.Tree.Find("outcome").Label)
	})

	t.Run("escalation leaves the threshold check pending", func(t *testing.T) {
		d := EvaluateShopping(cfg, opts, product(75), walletCtx())
		check := d.Tree.Find("auto_approve_check")
		require.NotNil(t, check)
		assert.Equal(t, models.ResultPending, check.Result)
		assert.Equal(t, "Request Approval", d.Tree.Find("outcome").Label)
	})
}

func TestProductRisk(t *testing.T) {
	limits := models.SpendingLimits{PerTransaction: 100, Daily: 300, AutoApproveThreshold: 25}
	opts := DefaultShoppingOptions()

	tests := []struct {
		name    string
		product models.Product
		balance float64
		want    int
	}{
		{"small purchase", models.Product{Price: 10, Rating: 5}, 1000, 1},
		{"tier by share of limit", models.Product{Price: 60, Rating: 5}, 1000, 3},
		{"over half the balance", models.Product{Price: 10, Rating: 5}, 15, 2},
		{"over three quarters of the balance", models.Product{Price: 10, Rating: 5}, 12, 3},
		{"poor rating", models.Product{Price: 10, Rating: 2.5}, 1000, 2},
		{"marked up", models.Product{Price: 20, OriginalPrice: 10, Rating: 5}, 1000, 2},
		{"capped at five", models.Product{Price: 100, OriginalPrice: 10, Rating: 1}, 100, 5},
		{"empty wallet", models.Product{Price: 10, Rating: 5}, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProductRisk(limits, opts, tt.product, tt.balance))
		})
	}
}

func TestProductScore(t *testing.T) {
	limits := models.SpendingLimits{PerTransaction: 100}
	opts := ShoppingOptions{MaxPriceMultiplier: 1.5, PreferredCategories: []string{"Books"}}

	plain := ProductScore(limits, opts, models.Product{Price: 50, Rating: 4, Category: "Toys"})
	assert.InDelta(t, 80, plain, 0.001)

	preferred := ProductScore(limits, opts, models.Product{Price: 50, Rating: 4, Category: "Books"})
	assert.InDelta(t, 95, preferred, 0.001)

	discounted := ProductScore(limits, opts, models.Product{Price: 50, OriginalPrice: 100, Rating: 5, Category: "Books"})
	assert.Equal(t, 100.0, discounted)
}
