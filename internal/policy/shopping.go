package policy

import (
	"fmt"
	"math"
	"slices"

	"agentsim/internal/agent/models"
)

// ShoppingOptions tune the shopping policy.
type ShoppingOptions struct {
	// MaxPriceMultiplier is the markup over the original price tolerated
	// before the purchase is considered riskier.
	MaxPriceMultiplier float64
	// PreferredCategories raise ProductScore.
	PreferredCategories []string
}

func DefaultShoppingOptions() ShoppingOptions {
	return ShoppingOptions{MaxPriceMultiplier: 1.5}
}

// EvaluateShopping decides whether to buy a product.
// Checks run in order and the first failing one decides:
// Rule 1: the product must be in stock.
// Rule 2: the price must fit the per-transaction limit.
// Rule 3: the purchase must fit the remaining daily allowance.
// Rule 4: the merchant must not be blocked.
// Rule 5: a disallowed category needs a human.
// Rule 6: auto-approve only when under the threshold and the risk is acceptable.
//
// This is pure domain logic - no I/O, no side effects.
func EvaluateShopping(cfg models.AgentConfig, opts ShoppingOptions, p models.Product, ctx Context) models.Decision {
	limits := cfg.SpendingLimits
	t := newTrail("Purchase Decision")
	decide := func(action models.DecisionAction, reason string, risk int) models.Decision {
		label, result := outcomeFor(action)
		if action == models.ActionApprove {
			label = "Auto-Approve"
		}
		return models.Decision{
			Action:    action,
			Reason:    reason,
			RiskLevel: risk,
			Amount:    p.Price,
			Flow:      models.FlowDebit,
			Tree:      t.build(label, result),
		}
	}

	// Rule 1
	if !p.InStock {
		t.add("stock_check", "In Stock?", models.ResultFail)
		return decide(models.ActionReject, "Product is out of stock", 0)
	}
	t.add("stock_check", "In Stock?", models.ResultPass)

	// Rule 2
	perTxn := models.FormatAmount(limits.PerTransaction)
	if p.Price > limits.PerTransaction {
		t.add("budget_check", fmt.Sprintf("Under $%s limit?", perTxn), models.ResultFail)
		return decide(models.ActionReject,
			fmt.Sprintf("Price $%s exceeds per-transaction limit of $%s", models.FormatAmount(p.Price), perTxn), 5)
	}
	t.add("budget_check", fmt.Sprintf("Under $%s limit?", perTxn), models.ResultPass)

	// Rule 3
	daily := EffectiveDailyLimit(limits.Daily, ctx.DailyLimit)
	if ctx.DailySpent+p.Price > daily {
		t.addDescribed("daily_limit_check", "Within daily limit?",
			fmt.Sprintf("Spent $%s of $%s today", models.FormatAmount(ctx.DailySpent), models.FormatAmount(daily)), models.ResultFail)
		return decide(models.ActionReject,
			fmt.Sprintf("Purchase would exceed daily spending limit of $%s", models.FormatAmount(daily)), 5)
	}
	t.add("daily_limit_check", "Within daily limit?", models.ResultPass)

	// Rule 4
	if cfg.IsMerchantBlocked(p.MerchantID) {
		t.add("merchant_check", "Merchant allowed?", models.ResultFail)
		return decide(models.ActionReject, "Merchant is blocked", 3)
	}
	t.add("merchant_check", "Merchant allowed?", models.ResultPass)

	// Rule 5
	if !cfg.IsCategoryAllowed(p.Category) {
		t.addDescribed("category_check", "Category allowed?", p.Category, models.ResultPending)
		return decide(models.ActionRequestApproval, fmt.Sprintf("Category %q requires approval", p.Category), 3)
	}
	t.add("category_check", "Category allowed?", models.ResultPass)

	// Rule 6
	risk := ProductRisk(limits, opts, p, ctx.Balance)
	threshold := models.FormatAmount(limits.AutoApproveThreshold)
	underThreshold := p.Price <= limits.AutoApproveThreshold
	t.add("auto_approve_check", fmt.Sprintf("Under $%s auto-approve?", threshold), passOrPending(underThreshold))
	if !underThreshold {
		return decide(models.ActionRequestApproval,
			fmt.Sprintf("Price $%s exceeds auto-approval threshold of $%s", models.FormatAmount(p.Price), threshold), risk)
	}

	maxRisk := cfg.RiskSettings.RequireApprovalAbove
	t.add("risk_check", fmt.Sprintf("Risk %d within %d?", risk, maxRisk), passOrPending(risk <= maxRisk))
	if risk > maxRisk {
		return decide(models.ActionRequestApproval,
			fmt.Sprintf("Risk level %d exceeds approval threshold of %d", risk, maxRisk), risk)
	}
	return decide(models.ActionApprove,
		fmt.Sprintf("Auto-approved: Price $%s is within auto-approval threshold", models.FormatAmount(p.Price)), risk)
}

// AmountRisk maps an amount onto a 1-5 tier by its share of the
// per-transaction limit.
func AmountRisk(amount, perTransaction float64) int {
	if perTransaction <= 0 {
		return 5
	}
	ratio := amount / perTransaction
	switch {
	case ratio < 0.25:
		return 1
	case ratio < 0.5:
		return 2
	case ratio < 0.75:
		return 3
	case ratio < 1:
		return 4
	}
	return 5
}

// ProductRisk raises the amount tier for purchases that eat into the balance,
// poorly rated products and prices marked up over the original.
func ProductRisk(limits models.SpendingLimits, opts ShoppingOptions, p models.Product, balance float64) int {
	risk := AmountRisk(p.Price, limits.PerTransaction)
	bump := func() { risk = min(5, risk+1) }

	ratio := math.Inf(1)
	if balance > 0 {
		ratio = p.Price / balance
	} else if p.Price == 0 {
		ratio = 0
	}
	if ratio > 0.5 {
		bump()
	}
	if ratio > 0.75 {
		bump()
	}
	if p.Rating < 3 {
		bump()
	}
	if p.OriginalPrice > 0 && p.Price > p.OriginalPrice*opts.MaxPriceMultiplier {
		bump()
	}
	return risk
}

// ProductScore ranks products 0-100 for browsing: rating, discount and
// preferred categories raise it, price relative to the limit lowers it.
func ProductScore(limits models.SpendingLimits, opts ShoppingOptions, p models.Product) float64 {
	score := 50 + p.Rating*10
	if slices.Contains(opts.PreferredCategories, p.Category) {
		score += 15
	}
	if p.OriginalPrice > 0 && p.Price < p.OriginalPrice {
		score += (p.OriginalPrice - p.Price) / p.OriginalPrice * 30
	}
	if limits.PerTransaction > 0 {
		score -= p.Price / limits.PerTransaction * 20
	}
	return max(0, min(100, score))
}

// EffectiveDailyLimit is the tighter of the configured and wallet limits. A
// non-positive wallet limit means the wallet imposes none.
func EffectiveDailyLimit(configured, wallet float64) float64 {
	if wallet > 0 && wallet < configured {
		return wallet
	}
	return configured
}

func passOrPending(ok bool) models.NodeResult {
	if ok {
		return models.ResultPass
	}
	return models.ResultPending
}
