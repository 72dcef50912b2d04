package engine

import (
	"fmt"

	"agentsim/internal/agent/models"
	"agentsim/internal/policy"
	"agentsim/pkg/platform/sentinel"
)

// Preview runs item through the full decision pipeline against the current
// wallet and clock. Nothing is committed, reserved, counted or logged.
func (e *Engine) Preview(item models.Item) (models.Decision, policy.Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateUninitialized {
		return models.Decision{}, policy.Settlement{}, fmt.Errorf("preview: no scenario loaded: %w", sentinel.ErrInvalidState)
	}
	if item == nil {
		return models.Decision{}, policy.Settlement{}, fmt.Errorf("preview: item is required: %w", sentinel.ErrInvalidInput)
	}

	cfg, ok := e.roster.ForType(policy.AgentTypeFor(item))
	if !ok {
		return models.Decision{}, policy.Settlement{}, fmt.Errorf("%s item %s: %w", policy.AgentTypeFor(item), item.ItemID(), ErrNoAgent)
	}
	rt, err := e.runtime(cfg)
	if err != nil {
		return models.Decision{}, policy.Settlement{}, err
	}

	now := e.clock.CurrentTime()
	pctx := e.policyContext(now)
	d, err := rt.policy.Evaluate(item, pctx)
	if err != nil {
		return models.Decision{}, policy.Settlement{}, fmt.Errorf("preview %s: %w", item.ItemID(), err)
	}
	s := policy.Settle(item, d)
	d, _, err = e.gate(cfg, rt, d, s, pctx.RecentTransactions, now)
	return d, s, err
}
