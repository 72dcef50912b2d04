package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"agentsim/internal/agent/models"
	"agentsim/pkg/platform/sentinel"
)

// =============================================================================
// Policy Test Suite
// =============================================================================
// Justification for unit tests: Policy is the dispatch point between agent
// types and the pure evaluators. Tests verify constructor invariants, that
// items are routed to the right evaluator, that malformed input fails fast and
// that approval requests carry what an approver needs.

type PolicySuite struct {
	suite.Suite
	shopper *Policy
}

func TestPolicySuite(t *testing.T) {
	suite.Run(t, new(PolicySuite))
}

func (s *PolicySuite) SetupTest() {
	cfg := shoppingConfig(s.T())
	p, err := New(cfg, WithIDGenerator(func() string { return "approval_fixed" }))
	s.Require().NoError(err)
	s.shopper = p
}

func (s *PolicySuite) TestNew() {
	s.Run("rejects invalid config", func() {
		_, err := New(models.AgentConfig{ID: "broken"})
		s.Require().Error(err)
		s.ErrorIs(err, sentinel.ErrInvalidInput)
	})

	s.Run("investment tolerance falls back to the agent's max risk", func() {
		cfg := investmentConfig(s.T())
		cfg.RiskSettings.MaxRiskLevel = 2
		p, err := New(cfg)
		s.Require().NoError(err)
		s.Equal(2, p.investment.RiskTolerance)
	})
}

func (s *PolicySuite) TestEvaluate() {
	s.Run("routes products to the shopping policy", func() {
		d, err := s.shopper.Evaluate(product(15), walletCtx())
		s.Require().NoError(err)
		s.Equal(models.ActionApprove, d.Action)
	})

	s.Run("refuses items for another agent type", func() {
		_, err := s.shopper.Evaluate(bill(models.BillEssential, 10, 1), walletCtx())
		s.ErrorIs(err, sentinel.ErrInvalidInput)
	})

	s.Run("fails fast on malformed items", func() {
		p := product(15)
		p.ID = ""
		_, err := s.shopper.Evaluate(p, walletCtx())
		s.ErrorIs(err, sentinel.ErrInvalidInput)
	})

	s.Run("fails fast on a nil item", func() {
		_, err := s.shopper.Evaluate(nil, walletCtx())
		s.ErrorIs(err, sentinel.ErrInvalidInput)
	})
}

func (s *PolicySuite) TestCreateApprovalRequest() {
	p := product(75)
	d, err := s.shopper.Evaluate(p, walletCtx())
	s.Require().NoError(err)
	s.Require().Equal(models.ActionRequestApproval, d.Action)

	req, err := s.shopper.CreateApprovalRequest(p, d, 42_000)
	s.Require().NoError(err)
	s.Equal("approval_fixed", req.ID)
	s.Equal("shopper", req.AgentID)
	s.Equal(models.ApprovalTransaction, req.Type)
	s.Equal(75.0, req.Amount)
	s.Equal("Purchase: Kopi Beans", req.Description)
	s.Equal(d.Reason, req.Reasoning)
	s.Equal(d.RiskLevel, req.RiskLevel)
	s.Same(d.Tree, req.Tree)
	s.Equal(int64(42_000), req.CreatedAt)
	s.Equal("Kopi Beans", req.ProductName)
	s.Equal("fairprice", req.MerchantName)
	s.Equal("Groceries", req.Category)
}

func TestSettle(t *testing.T) {
	t.Run("subscription switch names both plans", func(t *testing.T) {
		sub := subscription(0.2, models.Alternative{Name: "Netflix Basic", MonthlyAmount: 16.08, Savings: 9.9})
		d := EvaluateSubscription(DefaultSubscriptionOptions(), sub)
		st := Settle(sub, d)
		assert.Equal(t, models.ApprovalSubscriptionChange, st.ApprovalType)
		assert.Equal(t, "Switch from Netflix Premium to Netflix Basic", st.Description)
		assert.Equal(t, 9.9, st.Savings)
		assert.Equal(t, 16.08, st.Amount)
		assert.Equal(t, "Netflix Basic", st.MerchantName)
		require.NotNil(t, st.SwitchTo)
		assert.Equal(t, "Netflix Basic", st.SwitchTo.Name)
		assert.False(t, st.Cancels)
	})

	t.Run("subscription cancel saves the full charge", func(t *testing.T) {
		sub := subscription(0.1)
		st := Settle(sub, EvaluateSubscription(DefaultSubscriptionOptions(), sub))
		assert.Equal(t, "Cancel Netflix Premium", st.Description)
		assert.True(t, st.Cancels)
		assert.Equal(t, 25.98, st.Savings)
		assert.Equal(t, models.FlowNone, st.Flow)
	})

	t.Run("bill pays its payee", func(t *testing.T) {
		b := bill(models.BillEssential, 80, 3)
		b.Payee = "SP Group"
		st := Settle(b, EvaluateBill(DefaultBillPayOptions(), b, Context{Balance: 100}))
		assert.Equal(t, "Pay Bill: SP Services", st.Description)
		assert.Equal(t, "SP Group", st.MerchantID)
		assert.Equal(t, models.FlowDebit, st.Flow)
	})

	t.Run("investment describes the trade", func(t *testing.T) {
		cfg := investmentConfig(t)
		inv := models.Investment{ID: "nvda", Name: "NVDA", CurrentPrice: 130, PreviousPrice: 100, RiskLevel: 2, ExpectedReturn: 0.02, Volatility: 0.1}
		d := EvaluateInvestment(cfg, InvestmentOptions{RiskTolerance: 3, MaxPositionSize: 0.2}.normalized(cfg), inv, Context{Balance: 1000})
		st := Settle(inv, d)
		require.Equal(t, models.ApprovalInvestment, st.ApprovalType)
		assert.Equal(t, "SELL NVDA", st.Description)
		assert.Equal(t, models.FlowCredit, st.Flow)
	})
}

func TestAgentTypeFor(t *testing.T) {
	assert.Equal(t, models.AgentTypeShopping, AgentTypeFor(models.Product{}))
	assert.Equal(t, models.AgentTypeBillPay, AgentTypeFor(models.Bill{}))
	assert.Equal(t, models.AgentTypeSubscription, AgentTypeFor(models.Subscription{}))
	assert.Equal(t, models.AgentTypeInvestment, AgentTypeFor(models.Investment{}))
}
