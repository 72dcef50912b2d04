package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"agentsim/internal/agent/models"
)

func bill(priority models.BillPriority, amount float64, dueInDays int) models.Bill {
	return models.Bill{
		ID:       "bill-1",
		Name:     "SP Services",
		Amount:   amount,
		DueAt:    int64(dueInDays) * dayMillis,
		Category: "Utilities",
		Priority: priority,
	}
}

func TestEvaluateBill(t *testing.T) {
	ctx := Context{Balance: 100}
	opts := DefaultBillPayOptions()

	tests := []struct {
		name    string
		opts    BillPayOptions
		bill    models.Bill
		ctx     Context
		action  models.DecisionAction
		risk    int
		reason  string
		outcome string
	}{
		{
			name: "paid bill rejects", opts: opts,
			bill: func() models.Bill { b := bill(models.BillEssential, 50, 5); b.IsPaid = true; return b }(),
			ctx:  ctx, action: models.ActionReject, risk: 0,
			reason: "Bill is already paid", outcome: "Reject",
		},
		{
			name: "insufficient balance rejects", opts: opts,
			bill: bill(models.BillEssential, 150, 5), ctx: ctx,
			action: models.ActionReject, risk: 5,
			reason: "Insufficient balance. Need $150, have $100", outcome: "Reject",
		},
		{
			name: "essential bill auto-pays", opts: opts,
			bill: bill(models.BillEssential, 50, 2), ctx: ctx,
			action: models.ActionApprove, risk: 1,
			reason: "Essential bill auto-approved. Due in 2 days.", outcome: "Auto-Pay",
		},
		{
			name: "essential bill without auto-pay escalates", opts: BillPayOptions{},
			bill: bill(models.BillEssential, 50, 2), ctx: ctx,
			action: models.ActionRequestApproval, risk: 2,
			reason: "Essential bill due in 2 days. Amount: $50", outcome: "Request Approval",
		},
		{
			name: "urgent important bill", opts: opts,
			bill: bill(models.BillImportant, 40.5, 1), ctx: ctx,
			action: models.ActionRequestApproval, risk: 3,
			reason: "Important bill due soon (1 days). Amount: $40.5", outcome: "Request Approval",
		},
		{
			name: "important bill with time to spare", opts: opts,
			bill: bill(models.BillImportant, 40, 10), ctx: ctx,
			action: models.ActionRequestApproval, risk: 2,
			reason: "Important bill due in 10 days. Amount: $40", outcome: "Request Approval",
		},
		{
			name: "optional bill draining the balance", opts: opts,
			bill: bill(models.BillOptional, 90, 10), ctx: ctx,
			action: models.ActionRequestApproval, risk: 4,
			reason: "Optional bill. Paying would leave only 10.0% of balance.", outcome: "Request Approval",
		},
		{
			name: "affordable optional bill", opts: opts,
			bill: bill(models.BillOptional, 20, 10), ctx: ctx,
			action: models.ActionRequestApproval, risk: 3,
			reason: "Optional bill due in 10 days. Amount: $20", outcome: "Request Approval",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EvaluateBill(tt.opts, tt.bill, tt.ctx)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.risk, d.RiskLevel)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.outcome, d.Tree.Find("outcome").Label)
			assert.Equal(t, tt.bill.Amount, d.Amount)
		})
	}
}

func TestEvaluateBill_DueDateNode(t *testing.T) {
	d := EvaluateBill(DefaultBillPayOptions(), bill(models.BillImportant, 10, 1), Context{Balance: 100})
	due := d.Tree.Find("due_date_check")
	if assert.NotNil(t, due) {
		assert.Equal(t, "Due in 1 days", due.Label)
		assert.Equal(t, models.ResultPending, due.Result)
	}

	rejected := EvaluateBill(DefaultBillPayOptions(), bill(models.BillImportant, 500, 1), Context{Balance: 100})
	assert.Nil(t, rejected.Tree.Find("due_date_check"))
}

func TestDaysUntilDue(t *testing.T) {
	b := models.Bill{DueAt: 30_000}
	assert.Equal(t, 1, DaysUntilDue(b, 0))
	assert.Equal(t, 0, DaysUntilDue(b, 30_000))
	assert.Equal(t, 2, DaysUntilDue(models.Bill{DueAt: dayMillis + 1}, 0))
}

func TestBillHelpers(t *testing.T) {
	bills := []models.Bill{
		{ID: "opt", Priority: models.BillOptional, Amount: 10, DueAt: 1 * dayMillis},
		{ID: "imp-late", Priority: models.BillImportant, Amount: 20, DueAt: 9 * dayMillis},
		{ID: "ess", Priority: models.BillEssential, Amount: 30, DueAt: 5 * dayMillis},
		{ID: "imp-early", Priority: models.BillImportant, Amount: 40, DueAt: 2 * dayMillis},
		{ID: "paid", Priority: models.BillEssential, Amount: 99, DueAt: 1 * dayMillis, IsPaid: true},
	}

	var order []string
	for _, b := range ScheduleBills(bills) {
		order = append(order, b.ID)
	}
	assert.Equal(t, []string{"paid", "ess", "imp-early", "imp-late", "opt"}, order)
	assert.Equal(t, "opt", bills[0].ID, "input must not be reordered")

	assert.InDelta(t, 100, TotalDue(bills), 0.001)

	var upcoming []string
	for _, b := range UpcomingBills(bills, 0, 7) {
		upcoming = append(upcoming, b.ID)
	}
	assert.Equal(t, []string{"opt", "ess", "imp-early"}, upcoming)
}
