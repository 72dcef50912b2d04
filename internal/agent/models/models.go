package models

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"agentsim/pkg/platform/sentinel"
)

// AgentType selects which decision policy variant evaluates an agent's items.
type AgentType string

const (
	AgentTypeShopping     AgentType = "shopping"
	AgentTypeBillPay      AgentType = "billpay"
	AgentTypeSubscription AgentType = "subscription"
	AgentTypeInvestment   AgentType = "investment"
)

// IsValid reports whether t names a known agent type.
func (t AgentType) IsValid() bool {
	switch t {
	case AgentTypeShopping, AgentTypeBillPay, AgentTypeSubscription, AgentTypeInvestment:
		return true
	}
	return false
}

// AgentStatus is the lifecycle state shown for an agent while a simulation runs.
type AgentStatus string

const (
	AgentStatusIdle            AgentStatus = "idle"
	AgentStatusThinking        AgentStatus = "thinking"
	AgentStatusExecuting       AgentStatus = "executing"
	AgentStatusWaitingApproval AgentStatus = "waiting_approval"
	AgentStatusPaused          AgentStatus = "paused"
	AgentStatusCompleted       AgentStatus = "completed"
	AgentStatusError           AgentStatus = "error"
)

// SpendingLimits are dollar amounts. AutoApproveThreshold <= PerTransaction is
// assumed by the policies but not enforced.
type SpendingLimits struct {
	PerTransaction       float64 `json:"per_transaction" yaml:"per_transaction"`
	Daily                float64 `json:"daily" yaml:"daily"`
	AutoApproveThreshold float64 `json:"auto_approve_threshold" yaml:"auto_approve_threshold"`
}

// RiskSettings bound the risk levels (1-5) an agent accepts without a human.
type RiskSettings struct {
	MaxRiskLevel         int `json:"max_risk_level" yaml:"max_risk_level"`
	RequireApprovalAbove int `json:"require_approval_above" yaml:"require_approval_above"`
}

// Rule is a user-authored custom rule. Condition is a CEL expression.
type Rule struct {
	ID        string         `json:"id" yaml:"id"`
	Condition string         `json:"condition" yaml:"condition"`
	Action    DecisionAction `json:"action" yaml:"action"`
	Priority  int            `json:"priority" yaml:"priority"`
}

// AgentConfig is the full configuration of one simulated agent.
type AgentConfig struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Type              AgentType         `json:"type" yaml:"type"`
	Enabled           bool              `json:"enabled" yaml:"enabled"`
	SpendingLimits    SpendingLimits    `json:"spending_limits" yaml:"spending_limits"`
	RiskSettings      RiskSettings      `json:"risk_settings" yaml:"risk_settings"`
	AllowedCategories []string          `json:"allowed_categories,omitempty" yaml:"allowed_categories,omitempty"`
	BlockedMerchants  []string          `json:"blocked_merchants,omitempty" yaml:"blocked_merchants,omitempty"`
	Guardrails        GuardrailSettings `json:"guardrails" yaml:"guardrails"`
	CustomRules       []Rule            `json:"custom_rules,omitempty" yaml:"custom_rules,omitempty"`
}

// Default limits used when a scenario does not override them.
const (
	DefaultPerTransaction       = 100
	DefaultDailyLimit           = 500
	DefaultAutoApproveThreshold = 25
	DefaultMaxRiskLevel         = 5
	DefaultRequireApprovalAbove = 3
)

// NewAgentConfig returns a validated config with the default limits and the
// default guardrail mandates.
func NewAgentConfig(id, name string, agentType AgentType) (AgentConfig, error) {
	cfg := AgentConfig{
		ID:      id,
		Name:    name,
		Type:    agentType,
		Enabled: true,
		SpendingLimits: SpendingLimits{
			PerTransaction:       DefaultPerTransaction,
			Daily:                DefaultDailyLimit,
			AutoApproveThreshold: DefaultAutoApproveThreshold,
		},
		RiskSettings: RiskSettings{
			MaxRiskLevel:         DefaultMaxRiskLevel,
			RequireApprovalAbove: DefaultRequireApprovalAbove,
		},
		Guardrails: DefaultMandates(),
	}
	if err := cfg.Validate(); err != nil {
		return AgentConfig{}, err
	}
	return cfg, nil
}

// Validate reports precondition violations. Callers must not evaluate items
// against a config that fails validation.
func (c AgentConfig) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("agent id is required"))
	}
	if !c.Type.IsValid() {
		errs = append(errs, fmt.Errorf("unknown agent type %q", c.Type))
	}
	if c.SpendingLimits.PerTransaction <= 0 || notFinite(c.SpendingLimits.PerTransaction) {
		errs = append(errs, errors.New("per-transaction limit must be positive"))
	}
	if c.SpendingLimits.Daily < 0 || notFinite(c.SpendingLimits.Daily) {
		errs = append(errs, errors.New("daily limit must not be negative"))
	}
	if c.SpendingLimits.AutoApproveThreshold < 0 || notFinite(c.SpendingLimits.AutoApproveThreshold) {
		errs = append(errs, errors.New("auto-approve threshold must not be negative"))
	}
	if c.RiskSettings.MaxRiskLevel < 1 || c.RiskSettings.MaxRiskLevel > 5 {
		errs = append(errs, fmt.Errorf("max risk level must be within 1-5, got %d", c.RiskSettings.MaxRiskLevel))
	}
	if c.RiskSettings.RequireApprovalAbove < 0 || c.RiskSettings.RequireApprovalAbove > 5 {
		errs = append(errs, fmt.Errorf("require-approval-above must be within 0-5, got %d", c.RiskSettings.RequireApprovalAbove))
	}
	if err := c.Guardrails.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, r := range c.CustomRules {
		if r.ID == "" || r.Condition == "" {
			errs = append(errs, errors.New("custom rules need an id and a condition"))
			continue
		}
		if !r.Action.IsValid() {
			errs = append(errs, fmt.Errorf("custom rule %s: unknown action %q", r.ID, r.Action))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("agent config %q: %w: %w", c.ID, sentinel.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// IsMerchantBlocked reports whether merchantID is on the agent's block list.
func (c AgentConfig) IsMerchantBlocked(merchantID string) bool {
	return slices.Contains(c.BlockedMerchants, merchantID)
}

// IsCategoryAllowed treats an empty allow-list as "all categories allowed".
func (c AgentConfig) IsCategoryAllowed(category string) bool {
	if len(c.AllowedCategories) == 0 {
		return true
	}
	return slices.Contains(c.AllowedCategories, category)
}

// FormatAmount renders a dollar amount without trailing zeros ("14.95", "129", "9.9").
func FormatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func notFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
