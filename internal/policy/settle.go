package policy

import (
	"strings"

	"agentsim/internal/agent/models"
)

// Settlement describes how a decision about an item is carried out: which
// approval type it needs and what it books against the ledger.
type Settlement struct {
	ApprovalType models.ApprovalType
	Flow         models.MoneyFlow
	Amount       float64
	MerchantID   string
	MerchantName string
	Category     string
	Description  string
	// Savings is the monthly amount saved by a subscription change.
	Savings float64
	// Cancels is set when carrying out the decision ends a subscription.
	Cancels bool
	// SwitchTo is the plan a subscription moves to when the decision is a switch.
	SwitchTo *models.Alternative
}

// Settle derives the settlement of d for item.
func Settle(item models.Item, d models.Decision) Settlement {
	s := Settlement{
		ApprovalType: models.ApprovalTransaction,
		Flow:         d.Flow,
		Amount:       d.Amount,
	}
	switch it := item.(type) {
	case models.Product:
		s.MerchantID = it.MerchantID
		s.MerchantName = it.MerchantID
		s.Category = it.Category
		s.Description = "Purchase: " + it.Name
	case models.Bill:
		s.MerchantID = it.PayeeName()
		s.MerchantName = it.PayeeName()
		s.Category = it.Category
		s.Description = "Pay Bill: " + it.Name
	case models.Subscription:
		s.ApprovalType = models.ApprovalSubscriptionChange
		s.Category = it.Category
		s.MerchantID = it.Name
		s.MerchantName = it.Name
		switch {
		case d.Tree.Find(SuggestionNodeID) != nil:
			best, _ := it.BestAlternative()
			s.Description = "Switch from " + it.Name + " to " + best.Name
			s.MerchantID = best.Name
			s.MerchantName = best.Name
			s.Savings = best.Savings
			s.SwitchTo = &best
		case d.Flow == models.FlowNone && d.Action == models.ActionRequestApproval:
			s.Description = "Cancel " + it.Name
			s.Savings = it.MonthlyAmount
			s.Cancels = true
		default:
			s.Description = "Renew " + it.Name
		}
	case models.Investment:
		s.ApprovalType = models.ApprovalInvestment
		s.Category = "Investment"
		s.MerchantID = it.ID
		s.MerchantName = it.Name
		s.Description = strings.ToUpper(string(signalFor(d.Flow))) + " " + it.Name
	}
	return s
}

func signalFor(flow models.MoneyFlow) Signal {
	switch flow {
	case models.FlowDebit:
		return SignalBuy
	case models.FlowCredit:
		return SignalSell
	}
	return SignalHold
}
