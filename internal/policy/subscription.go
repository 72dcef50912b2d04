package policy

import (
	"fmt"
	"math"

	"agentsim/internal/agent/models"
)

type SubscriptionOptions struct {
	// UsageThreshold is the usage score under which a subscription is
	// considered under-used.
	UsageThreshold float64
	// SavingsThreshold is the minimum monthly saving worth suggesting a switch for.
	SavingsThreshold float64
	// HighUsageScore marks a subscription as high value.
	HighUsageScore float64
}

func DefaultSubscriptionOptions() SubscriptionOptions {
	return SubscriptionOptions{UsageThreshold: 0.3, SavingsThreshold: 5, HighUsageScore: 0.8}
}

// SuggestionNodeID identifies the node appended when a switch is suggested.
const SuggestionNodeID = "alternative_suggestion"

// EvaluateSubscription reviews a subscription at renewal.
// Rule 1: inactive subscriptions are not renewed.
// Rule 2: low usage with a worthwhile alternative suggests switching.
// Rule 3: low usage without one suggests cancelling.
// Rule 4: otherwise the renewal goes through.
func EvaluateSubscription(opts SubscriptionOptions, s models.Subscription) models.Decision {
	t := newTrail("Subscription Review")
	usage := int(math.Round(s.UsageScore * 100))

	// Rule 1
	if !s.IsActive {
		t.add("active_check", "Is Active?", models.ResultFail)
		label, result := outcomeFor(models.ActionReject)
		return models.Decision{
			Action: models.ActionReject,
			Reason: "Subscription is not active",
			Tree:   t.build(label, result),
		}
	}
	t.add("active_check", "Is Active?", models.ResultPass)

	lowUsage := s.UsageScore < opts.UsageThreshold
	usageResult := models.ResultPass
	if lowUsage {
		usageResult = models.ResultFail
	}
	t.addDescribed("usage_check", fmt.Sprintf("Usage > %s%%?", models.FormatAmount(opts.UsageThreshold*100)),
		fmt.Sprintf("Current: %d%%", usage), usageResult)

	if lowUsage {
		best, ok := s.BestAlternative()
		worthwhile := ok && best.Savings >= opts.SavingsThreshold
		if worthwhile {
			// Rule 2
			t.add("alternative_check", "Better alternative?", models.ResultPass)
			tree := AppendNode(t.build("Suggest Switch", models.ResultPending), &models.DecisionNode{
				ID:          SuggestionNodeID,
				Type:        models.NodeAction,
				Label:       "Switch to " + best.Name,
				Description: fmt.Sprintf("Save $%s/month", models.FormatAmount(best.Savings)),
				Result:      models.ResultPending,
			})
			return models.Decision{
				Action: models.ActionRequestApproval,
				Reason: fmt.Sprintf("Low usage (%d%%) detected. Consider switching to %s to save $%s/month.",
					usage, best.Name, models.FormatAmount(best.Savings)),
				RiskLevel: 2,
				Amount:    best.MonthlyAmount,
				Flow:      models.FlowDebit,
				Tree:      tree,
			}
		}
		// Rule 3
		t.add("alternative_check", "Better alternative?", models.ResultFail)
		return models.Decision{
			Action: models.ActionRequestApproval,
			Reason: fmt.Sprintf("Low usage detected (%d%%). Consider canceling to save $%s/month.",
				usage, models.FormatAmount(s.MonthlyAmount)),
			RiskLevel: 3,
			Tree:      t.build("Consider Cancel", models.ResultPending),
		}
	}

	// Rule 4
	d := models.Decision{
		Action:    models.ActionApprove,
		RiskLevel: 2,
		Amount:    s.MonthlyAmount,
		Flow:      models.FlowDebit,
		Tree:      t.build("Good Value", models.ResultPass),
	}
	if s.UsageScore >= opts.HighUsageScore {
		d.RiskLevel = 1
		d.Reason = fmt.Sprintf("High usage (%d%%). Subscription provides good value.", usage)
	} else {
		d.Reason = fmt.Sprintf("Moderate usage (%d%%). Subscription maintained.", usage)
	}
	return d
}

// PotentialSavings sums what switching or cancelling every under-used
// subscription would save per month.
func PotentialSavings(opts SubscriptionOptions, subs []models.Subscription) float64 {
	var total float64
	for _, s := range subs {
		if !s.IsActive || s.UsageScore >= opts.UsageThreshold {
			continue
		}
		if best, ok := s.BestAlternative(); ok && best.Savings > 0 {
			total += best.Savings
			continue
		}
		total += s.MonthlyAmount
	}
	return total
}
