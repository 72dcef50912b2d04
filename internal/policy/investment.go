package policy

import (
	"fmt"
	"strings"

	"agentsim/internal/agent/models"
)

type InvestmentOptions struct {
	// RiskTolerance is the highest asset risk level (1-5) handled without a
	// human. Zero falls back to the agent's max risk level.
	RiskTolerance int
	// MaxPositionSize is the largest share of the balance put into one
	// position, within 0.01-1.
	MaxPositionSize float64
	// RequireApprovalForHighRisk escalates assets over tolerance instead of
	// rejecting them.
	RequireApprovalForHighRisk bool
}

func DefaultInvestmentOptions() InvestmentOptions {
	return InvestmentOptions{MaxPositionSize: 0.2, RequireApprovalForHighRisk: true}
}

func (o InvestmentOptions) normalized(cfg models.AgentConfig) InvestmentOptions {
	if o.RiskTolerance == 0 {
		o.RiskTolerance = cfg.RiskSettings.MaxRiskLevel
	}
	o.RiskTolerance = max(1, min(5, o.RiskTolerance))
	if o.MaxPositionSize == 0 {
		o.MaxPositionSize = 0.2
	}
	o.MaxPositionSize = max(0.01, min(1, o.MaxPositionSize))
	return o
}

// Signal is a trading recommendation.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// Recommendation is the outcome of the market heuristic.
type Recommendation struct {
	Signal          Signal
	Confidence      float64
	SuggestedAmount float64
	Reasoning       []string
}

// Flow is the ledger direction acting on the recommendation implies.
func (r Recommendation) Flow() models.MoneyFlow {
	switch r.Signal {
	case SignalBuy:
		return models.FlowDebit
	case SignalSell:
		return models.FlowCredit
	}
	return models.FlowNone
}

// Analyze scores an asset. Dips and favourable return profiles build a buy
// score, rallies build a sell score; a clear lead of more than one point
// decides the signal. Confidence stays within 0.5-0.95.
func Analyze(cfg models.AgentConfig, opts InvestmentOptions, inv models.Investment, balance float64) Recommendation {
	var reasoning []string
	var buy, sell float64

	change := inv.PriceChange()
	switch {
	case change < -0.1:
		buy += 2
		reasoning = append(reasoning, "Price dropped >10% - potential buying opportunity")
	case change > 0.2:
		sell += 2
		reasoning = append(reasoning, "Price up >20% - consider taking profits")
	}
	if inv.ExpectedReturn > inv.Volatility {
		buy++
		reasoning = append(reasoning, "Expected return exceeds volatility")
	}
	if inv.ExpectedReturn/float64(inv.RiskLevel) > 0.05 {
		buy++
		reasoning = append(reasoning, "Good risk-adjusted return")
	}
	if inv.RiskLevel <= opts.RiskTolerance {
		buy += 0.5
		reasoning = append(reasoning, "Within risk tolerance")
	} else {
		sell++
		reasoning = append(reasoning, "Exceeds risk tolerance")
	}

	rec := Recommendation{Signal: SignalHold, Confidence: 0.6, Reasoning: reasoning}
	switch {
	case buy > sell+1:
		rec.Signal = SignalBuy
		rec.Confidence = min(0.95, 0.5+buy*0.1)
	case sell > buy+1:
		rec.Signal = SignalSell
		rec.Confidence = min(0.95, 0.5+sell*0.1)
	}
	rec.SuggestedAmount = max(0, min(balance*opts.MaxPositionSize, cfg.SpendingLimits.PerTransaction))
	return rec
}

// EvaluateInvestment decides whether to act on a recommendation.
// Rule 1: assets over tolerance need a human, or are rejected outright.
// Rule 2: positions larger than the allowed share of the balance need a human.
// Rule 3: confident buys under the auto-approve threshold go through.
// Rule 4: everything else needs a human.
func EvaluateInvestment(cfg models.AgentConfig, opts InvestmentOptions, inv models.Investment, ctx Context) models.Decision {
	rec := Analyze(cfg, opts, inv, ctx.Balance)
	signal := strings.ToUpper(string(rec.Signal))
	confidence := fmt.Sprintf("%.0f", rec.Confidence*100)

	t := newTrail("Investment Analysis")
	decide := func(action models.DecisionAction, reason string, risk int) models.Decision {
		_, result := outcomeFor(action)
		return models.Decision{
			Action:    action,
			Reason:    reason,
			RiskLevel: risk,
			Amount:    rec.SuggestedAmount,
			Flow:      rec.Flow(),
			Tree:      t.build("Recommendation: "+signal, result),
		}
	}

	// Rule 1
	riskLabel := fmt.Sprintf("Risk Level: %d/5", inv.RiskLevel)
	if inv.RiskLevel > opts.RiskTolerance {
		if opts.RequireApprovalForHighRisk {
			t.add("risk_assessment", riskLabel, models.ResultPending)
			return decide(models.ActionRequestApproval,
				fmt.Sprintf("Risk level %d exceeds tolerance of %d. Human approval required.", inv.RiskLevel, opts.RiskTolerance),
				inv.RiskLevel)
		}
		t.add("risk_assessment", riskLabel, models.ResultFail)
		return decide(models.ActionReject,
			fmt.Sprintf("Risk level %d exceeds maximum tolerance of %d", inv.RiskLevel, opts.RiskTolerance), inv.RiskLevel)
	}
	t.add("risk_assessment", riskLabel, models.ResultPass)
	t.addDescribed("market_analysis", "Market Analysis", strings.Join(rec.Reasoning, "; "), models.ResultPass)

	// Rule 2
	maxPosition := ctx.Balance * opts.MaxPositionSize
	positionLabel := fmt.Sprintf("Position within %.1f%%?", opts.MaxPositionSize*100)
	if rec.SuggestedAmount > maxPosition {
		t.add("position_check", positionLabel, models.ResultPending)
		share := 100.0
		if ctx.Balance > 0 {
			share = rec.SuggestedAmount / ctx.Balance * 100
		}
		return decide(models.ActionRequestApproval,
			fmt.Sprintf("Position size (%.1f%%) exceeds max of %.1f%%", share, opts.MaxPositionSize*100), 4)
	}
	t.add("position_check", positionLabel, models.ResultPass)

	// Rule 3
	confident := rec.Confidence >= 0.7
	t.add("confidence_check", fmt.Sprintf("Confidence: %s%%", confidence), passOrPending(confident))
	if rec.Signal == SignalBuy && confident && rec.SuggestedAmount <= cfg.SpendingLimits.AutoApproveThreshold {
		return decide(models.ActionApprove,
			fmt.Sprintf("High confidence (%s%%) buy signal. Amount within auto-approve.", confidence), inv.RiskLevel)
	}

	// Rule 4
	return decide(models.ActionRequestApproval,
		fmt.Sprintf("%s recommendation with %s%% confidence.", signal, confidence), inv.RiskLevel)
}
