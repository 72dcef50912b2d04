package policy

import (
	"fmt"

	"github.com/google/uuid"

	"agentsim/internal/agent/models"
	"agentsim/internal/wallet"
	"agentsim/pkg/platform/sentinel"
)

// Context is the wallet state a policy evaluates an item against. Now is
// simulated milliseconds.
type Context struct {
	Balance            float64
	DailySpent         float64
	DailyLimit         float64
	RecentTransactions []wallet.Transaction
	Now                int64
}

// Policy is the closed set of decision policies. The variant is selected by the
// agent type of its config; each variant is a pure function in this package.
type Policy struct {
	cfg          models.AgentConfig
	shopping     ShoppingOptions
	billPay      BillPayOptions
	subscription SubscriptionOptions
	investment   InvestmentOptions
	newID        func() string
}

type Option func(*Policy)

func WithShoppingOptions(o ShoppingOptions) Option {
	return func(p *Policy) {
		p.shopping = o
	}
}

func WithBillPayOptions(o BillPayOptions) Option {
	return func(p *Policy) {
		p.billPay = o
	}
}

func WithSubscriptionOptions(o SubscriptionOptions) Option {
	return func(p *Policy) {
		p.subscription = o
	}
}

func WithInvestmentOptions(o InvestmentOptions) Option {
	return func(p *Policy) {
		p.investment = o
	}
}

// WithIDGenerator replaces the approval request id source.
func WithIDGenerator(fn func() string) Option {
	return func(p *Policy) {
		p.newID = fn
	}
}

// New validates cfg and returns the policy for its agent type.
func New(cfg models.AgentConfig, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{
		cfg:          cfg,
		shopping:     DefaultShoppingOptions(),
		billPay:      DefaultBillPayOptions(),
		subscription: DefaultSubscriptionOptions(),
		investment:   DefaultInvestmentOptions(),
		newID:        func() string { return "approval_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	p.investment = p.investment.normalized(cfg)
	return p, nil
}

// Config returns the agent config the policy was built with.
func (p *Policy) Config() models.AgentConfig {
	return p.cfg
}

// Accepts reports whether the policy's agent type evaluates items of this kind.
func (p *Policy) Accepts(item models.Item) bool {
	return AgentTypeFor(item) == p.cfg.Type
}

// AgentTypeFor returns the agent type responsible for item.
func AgentTypeFor(item models.Item) models.AgentType {
	switch item.(type) {
	case models.Product:
		return models.AgentTypeShopping
	case models.Bill:
		return models.AgentTypeBillPay
	case models.Subscription:
		return models.AgentTypeSubscription
	case models.Investment:
		return models.AgentTypeInvestment
	}
	return ""
}

// Evaluate returns the decision for item. Errors are returned only for
// precondition violations; every business outcome is a Decision.
func (p *Policy) Evaluate(item models.Item, ctx Context) (models.Decision, error) {
	if err := p.check(item); err != nil {
		return models.Decision{}, err
	}
	switch it := item.(type) {
	case models.Product:
		return EvaluateShopping(p.cfg, p.shopping, it, ctx), nil
	case models.Bill:
		return EvaluateBill(p.billPay, it, ctx), nil
	case models.Subscription:
		return EvaluateSubscription(p.subscription, it), nil
	case models.Investment:
		return EvaluateInvestment(p.cfg, p.investment, it, ctx), nil
	}
	return models.Decision{}, fmt.Errorf("unsupported item %T: %w", item, sentinel.ErrInvalidInput)
}

// CreateApprovalRequest turns a decision into the request shown to a human.
func (p *Policy) CreateApprovalRequest(item models.Item, d models.Decision, now int64) (models.ApprovalRequest, error) {
	if err := p.check(item); err != nil {
		return models.ApprovalRequest{}, err
	}
	s := Settle(item, d)
	req := models.ApprovalRequest{
		ID:           p.newID(),
		AgentID:      p.cfg.ID,
		Type:         s.ApprovalType,
		Amount:       d.Amount,
		Description:  s.Description,
		Reasoning:    d.Reason,
		RiskLevel:    d.RiskLevel,
		Tree:         d.Tree,
		CreatedAt:    now,
		MerchantID:   s.MerchantID,
		MerchantName: s.MerchantName,
		Category:     s.Category,
	}
	if prod, ok := item.(models.Product); ok {
		req.ProductName = prod.Name
	}
	return req, nil
}

func (p *Policy) check(item models.Item) error {
	if item == nil {
		return fmt.Errorf("item is required: %w", sentinel.ErrInvalidInput)
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if !p.Accepts(item) {
		return fmt.Errorf("%s agent %s cannot evaluate %T: %w", p.cfg.Type, p.cfg.ID, item, sentinel.ErrInvalidInput)
	}
	return nil
}
