package scenario

import (
	"errors"
	"fmt"
	"slices"

	"agentsim/internal/agent/models"
	"agentsim/internal/simulation/queue"
	"agentsim/pkg/platform/sentinel"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Merchant is a shop known to the scenario. Known merchants do not trigger
// new-merchant verification.
type Merchant struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Category     string  `json:"category" yaml:"category"`
	TrustScore   float64 `json:"trust_score" yaml:"trust_score"`
	AveragePrice float64 `json:"average_price" yaml:"average_price"`
	DeliveryTime string  `json:"delivery_time" yaml:"delivery_time"`
}

// AgentOverrides adjust the default agent config for a scenario. Nil and empty
// fields keep the defaults; guardrail mandates are overridden one by one.
type AgentOverrides struct {
	ID                string                   `json:"id,omitempty" yaml:"id,omitempty"`
	Name              string                   `json:"name,omitempty" yaml:"name,omitempty"`
	SpendingLimits    *models.SpendingLimits   `json:"spending_limits,omitempty" yaml:"spending_limits,omitempty"`
	RiskSettings      *models.RiskSettings     `json:"risk_settings,omitempty" yaml:"risk_settings,omitempty"`
	AllowedCategories []string                 `json:"allowed_categories,omitempty" yaml:"allowed_categories,omitempty"`
	BlockedMerchants  []string                 `json:"blocked_merchants,omitempty" yaml:"blocked_merchants,omitempty"`
	Guardrails        models.GuardrailSettings `json:"guardrails,omitempty" yaml:"guardrails,omitempty"`
	CustomRules       []models.Rule            `json:"custom_rules,omitempty" yaml:"custom_rules,omitempty"`
}

// EventSpec is an ad hoc event authored into a scenario. At is simulated
// milliseconds from the start of the run.
type EventSpec struct {
	At       int64           `json:"at_ms" yaml:"at_ms"`
	Type     queue.EventType `json:"type" yaml:"type"`
	Priority int             `json:"priority" yaml:"priority"`
	Payload  map[string]any  `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Scenario is static input for one simulation run.
type Scenario struct {
	ID                string                `json:"id" yaml:"id"`
	Name              string                `json:"name" yaml:"name"`
	Description       string                `json:"description" yaml:"description"`
	Type              models.AgentType      `json:"type" yaml:"type"`
	Difficulty        Difficulty            `json:"difficulty" yaml:"difficulty"`
	EstimatedDuration string                `json:"estimated_duration,omitempty" yaml:"estimated_duration,omitempty"`
	InitialBalance    float64               `json:"initial_balance" yaml:"initial_balance"`
	InitialConfig     AgentOverrides        `json:"initial_config" yaml:"initial_config"`
	Objectives        []Objective           `json:"objectives" yaml:"objectives"`
	Concepts          []string              `json:"concepts,omitempty" yaml:"concepts,omitempty"`
	Merchants         []Merchant            `json:"merchants,omitempty" yaml:"merchants,omitempty"`
	Products          []models.Product      `json:"products,omitempty" yaml:"products,omitempty"`
	Bills             []models.Bill         `json:"bills,omitempty" yaml:"bills,omitempty"`
	Subscriptions     []models.Subscription `json:"subscriptions,omitempty" yaml:"subscriptions,omitempty"`
	Investments       []models.Investment   `json:"investments,omitempty" yaml:"investments,omitempty"`
	Events            []EventSpec           `json:"events,omitempty" yaml:"events,omitempty"`
}

// DefaultAgentID names the scenario agent when the overrides do not.
const DefaultAgentID = "main"

// AgentConfig builds the scenario's agent: defaults for its type with the
// overrides applied.
func (s Scenario) AgentConfig() (models.AgentConfig, error) {
	o := s.InitialConfig
	id := o.ID
	if id == "" {
		id = DefaultAgentID
	}
	name := o.Name
	if name == "" {
		name = s.Name
	}
	cfg, err := models.NewAgentConfig(id, name, s.Type)
	if err != nil {
		return models.AgentConfig{}, err
	}
	if o.SpendingLimits != nil {
		cfg.SpendingLimits = *o.SpendingLimits
	}
	if o.RiskSettings != nil {
		cfg.RiskSettings = *o.RiskSettings
	}
	cfg.AllowedCategories = slices.Clone(o.AllowedCategories)
	cfg.BlockedMerchants = slices.Clone(o.BlockedMerchants)
	cfg.CustomRules = slices.Clone(o.CustomRules)
	mergeMandates(&cfg.Guardrails, o.Guardrails)

	if err := cfg.Validate(); err != nil {
		return models.AgentConfig{}, fmt.Errorf("scenario %s: %w", s.ID, err)
	}
	return cfg, nil
}

func mergeMandates(dst *models.GuardrailSettings, src models.GuardrailSettings) {
	if src.RequireVerificationForNewMerchants != nil {
		dst.RequireVerificationForNewMerchants = src.RequireVerificationForNewMerchants
	}
	if src.ConfirmationThreshold != nil {
		dst.ConfirmationThreshold = src.ConfirmationThreshold
	}
	if src.MaxTransactionsPerHour != nil {
		dst.MaxTransactionsPerHour = src.MaxTransactionsPerHour
	}
	if src.TransactionCooldownSeconds != nil {
		dst.TransactionCooldownSeconds = src.TransactionCooldownSeconds
	}
	if src.BlockedCategories != nil {
		dst.BlockedCategories = src.BlockedCategories
	}
	if src.AllowedPaymentMethods != nil {
		dst.AllowedPaymentMethods = src.AllowedPaymentMethods
	}
}

// KnownMerchants lists every merchant identity the scenario introduces:
// listed merchants, product merchants, bill payees, subscriptions and
// investments.
func (s Scenario) KnownMerchants() []string {
	var out []string
	for _, m := range s.Merchants {
		out = append(out, m.ID)
	}
	for _, p := range s.Products {
		out = append(out, p.MerchantID)
	}
	for _, b := range s.Bills {
		out = append(out, b.PayeeName())
	}
	for _, sub := range s.Subscriptions {
		out = append(out, sub.Name)
	}
	for _, inv := range s.Investments {
		out = append(out, inv.ID)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Items lists the scenario content in schedule order: products, bills,
// subscriptions, then investments.
func (s Scenario) Items() []models.Item {
	out := make([]models.Item, 0, len(s.Products)+len(s.Bills)+len(s.Subscriptions)+len(s.Investments))
	for _, p := range s.Products {
		out = append(out, p)
	}
	for _, b := range s.Bills {
		out = append(out, b)
	}
	for _, sub := range s.Subscriptions {
		out = append(out, sub)
	}
	for _, inv := range s.Investments {
		out = append(out, inv)
	}
	return out
}

// Item finds a content item by id.
func (s Scenario) Item(id string) (models.Item, bool) {
	for _, it := range s.Items() {
		if it.ItemID() == id {
			return it, true
		}
	}
	return nil, false
}

// Validate performs presence checks and validates the content items.
func (s Scenario) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if !s.Type.IsValid() {
		errs = append(errs, fmt.Errorf("unknown agent type %q", s.Type))
	}
	if s.InitialBalance < 0 {
		errs = append(errs, fmt.Errorf("initial balance must not be negative, got %v", s.InitialBalance))
	}
	seen := make(map[string]bool)
	for _, o := range s.Objectives {
		if o.ID == "" {
			errs = append(errs, errors.New("objective id is required"))
			continue
		}
		if seen[o.ID] {
			errs = append(errs, fmt.Errorf("duplicate objective %s", o.ID))
		}
		seen[o.ID] = true
		if o.Criterion != nil && !o.Criterion.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("objective %s: unknown criterion %q", o.ID, o.Criterion.Kind))
		}
	}
	for _, p := range s.Products {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range s.Bills {
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, sub := range s.Subscriptions {
		if err := sub.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, inv := range s.Investments {
		if err := inv.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for i, ev := range s.Events {
		if !ev.Type.IsValid() {
			errs = append(errs, fmt.Errorf("event %d: unknown type %q", i, ev.Type))
		}
		if ev.At < 0 {
			errs = append(errs, fmt.Errorf("event %d: time must not be negative", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("scenario %q: %w: %w", s.ID, sentinel.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}
