package policy

import (
	"fmt"
	"math"
	"sort"

	"agentsim/internal/agent/models"
)

const dayMillis = int64(24 * 60 * 60 * 1000)

// UrgentDays is the horizon under which an important bill is treated as urgent.
const UrgentDays = 3

type BillPayOptions struct {
	// AutoPayEssential lets essential bills through without a human.
	AutoPayEssential bool
}

func DefaultBillPayOptions() BillPayOptions {
	return BillPayOptions{AutoPayEssential: true}
}

// DaysUntilDue rounds the time to the due date up to whole days.
func DaysUntilDue(b models.Bill, now int64) int {
	return int(math.Ceil(float64(b.DueAt-now) / float64(dayMillis)))
}

// EvaluateBill decides whether to pay a bill.
// Rule 1: a paid bill is never paid twice.
// Rule 2: the balance must cover the bill.
// Rule 3: essential bills auto-pay when enabled, otherwise need a human.
// Rule 4: important bills need a human; urgency raises the risk.
// Rule 5: optional bills need a human; draining the balance raises the risk.
func EvaluateBill(opts BillPayOptions, b models.Bill, ctx Context) models.Decision {
	t := newTrail("Bill Payment Decision")
	decide := func(action models.DecisionAction, reason string, risk int) models.Decision {
		label, result := outcomeFor(action)
		if action == models.ActionApprove {
			label = "Auto-Pay"
		}
		return models.Decision{
			Action:    action,
			Reason:    reason,
			RiskLevel: risk,
			Amount:    b.Amount,
			Flow:      models.FlowDebit,
			Tree:      t.build(label, result),
		}
	}
	amount := models.FormatAmount(b.Amount)

	// Rule 1
	if b.IsPaid {
		t.add("paid_check", "Already Paid?", models.ResultFail)
		return decide(models.ActionReject, "Bill is already paid", 0)
	}
	t.add("paid_check", "Already Paid?", models.ResultPass)

	// Rule 2
	fundsLabel := fmt.Sprintf("Sufficient Funds? ($%s)", models.FormatAmount(ctx.Balance))
	if ctx.Balance < b.Amount {
		t.add("funds_check", fundsLabel, models.ResultFail)
		return decide(models.ActionReject,
			fmt.Sprintf("Insufficient balance. Need $%s, have $%s", amount, models.FormatAmount(ctx.Balance)), 5)
	}
	t.add("funds_check", fundsLabel, models.ResultPass)

	days := DaysUntilDue(b, ctx.Now)
	t.add("priority_check", fmt.Sprintf("Priority: %s", b.Priority), models.ResultPass)
	dueResult := models.ResultPass
	if days <= UrgentDays {
		dueResult = models.ResultPending
	}
	t.add("due_date_check", fmt.Sprintf("Due in %d days", days), dueResult)

	switch b.Priority {
	case models.BillEssential:
		// Rule 3
		if opts.AutoPayEssential {
			return decide(models.ActionApprove, fmt.Sprintf("Essential bill auto-approved. Due in %d days.", days), 1)
		}
		return decide(models.ActionRequestApproval,
			fmt.Sprintf("Essential bill due in %d days. Amount: $%s", days, amount), 2)
	case models.BillImportant:
		// Rule 4
		if days <= UrgentDays {
			return decide(models.ActionRequestApproval,
				fmt.Sprintf("Important bill due soon (%d days). Amount: $%s", days, amount), 3)
		}
		return decide(models.ActionRequestApproval,
			fmt.Sprintf("Important bill due in %d days. Amount: $%s", days, amount), 2)
	}

	// Rule 5
	remaining := 100.0
	if ctx.Balance > 0 {
		remaining = (ctx.Balance - b.Amount) / ctx.Balance * 100
	}
	if remaining < 20 {
		return decide(models.ActionRequestApproval,
			fmt.Sprintf("Optional bill. Paying would leave only %.1f%% of balance.", remaining), 4)
	}
	return decide(models.ActionRequestApproval,
		fmt.Sprintf("Optional bill due in %d days. Amount: $%s", days, amount), 3)
}

// ScheduleBills orders bills by priority, then by due date.
func ScheduleBills(bills []models.Bill) []models.Bill {
	out := append([]models.Bill(nil), bills...)
	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return out[i].DueAt < out[j].DueAt
	})
	return out
}

// TotalDue sums the unpaid bills.
func TotalDue(bills []models.Bill) float64 {
	var total float64
	for _, b := range bills {
		if !b.IsPaid {
			total += b.Amount
		}
	}
	return total
}

// UpcomingBills returns unpaid bills due within daysAhead of now.
func UpcomingBills(bills []models.Bill, now int64, daysAhead int) []models.Bill {
	horizon := now + int64(daysAhead)*dayMillis
	var out []models.Bill
	for _, b := range bills {
		if !b.IsPaid && b.DueAt <= horizon {
			out = append(out, b)
		}
	}
	return out
}
