package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agentsim/internal/agent/models"
	"agentsim/internal/audit"
	"agentsim/internal/guardrail"
	"agentsim/internal/guardrail/rules"
	"agentsim/internal/policy"
	"agentsim/internal/simulation/queue"
	"agentsim/internal/wallet"
	"agentsim/pkg/platform/sentinel"
)

// tick is the clock callback. It dispatches at most one ready event, so two
// events due at the same time can never both raise an approval.
func (e *Engine) tick(_, now int64) {
	ctx := context.Background()
	n := &notes{}

	e.mu.Lock()
	// A tick still in flight when a callback stopped or reset the clock is stale.
	if e.state != StateRunning || now != e.clock.CurrentTime() {
		e.mu.Unlock()
		return
	}
	e.rollover(now)
	e.metrics.SetSimulatedTime(e.scenarioID(), now)
	if ev, ok := e.queue.NextEvent(now); ok {
		e.dispatch(ctx, ev, now, n)
	}
	e.observe(n)
	e.mu.Unlock()

	e.fire(n)
}

// rollover starts a new spending day on every simulated day boundary.
func (e *Engine) rollover(now int64) {
	day := now / DayMillis
	if day > e.day {
		e.day = day
		e.ledger.ResetDailySpent()
		e.logger.Debug("daily spending reset", "scenario_id", e.scenarioID(), "day", day)
	}
}

// dispatch must be called with e.mu held.
func (e *Engine) dispatch(ctx context.Context, ev queue.Event, now int64, n *notes) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.dispatch", trace.WithAttributes(
		attribute.String("scenario.id", e.scenarioID()),
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", string(ev.Type)),
		attribute.Int64("sim.time_ms", now),
	))
	defer span.End()

	processed, ok := e.queue.ProcessEvent(ev.ID)
	if !ok {
		return
	}
	e.counters.EventsProcessed++
	e.metrics.IncrementEvent(e.scenarioID(), string(ev.Type))

	if err := e.route(ctx, processed, now, n); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.WarnContext(ctx, "event dispatch failed", "event_id", ev.ID, "event_type", string(ev.Type), "error", err)
		n.errs = append(n.errs, err)
	}
	n.events = append(n.events, processed)
	e.metrics.ObserveDispatchLatency(e.scenarioID(), time.Since(start))
}

func (e *Engine) route(ctx context.Context, ev queue.Event, now int64, n *notes) error {
	payload, err := decodePayload(ev.Payload)
	if err != nil {
		return fmt.Errorf("event %s (%s): %w", ev.ID, ev.Type, err)
	}

	switch p := payload.(type) {
	case ItemPayload:
		e.items[p.Item.ItemID()] = p.Item
		return e.evaluate(ctx, p.Item, now, n)
	case ItemRef:
		item, ok := e.items[p.ItemID]
		if !ok {
			return fmt.Errorf("event %s: unknown item %q: %w", ev.ID, p.ItemID, ErrUnexpectedPayload)
		}
		return e.evaluate(ctx, item, now, n)
	case PriceUpdate:
		item, ok := e.items[p.ItemID]
		if !ok {
			return fmt.Errorf("event %s: unknown item %q: %w", ev.ID, p.ItemID, ErrUnexpectedPayload)
		}
		item, err := reprice(item, p.Price)
		if err != nil {
			return fmt.Errorf("event %s: %w", ev.ID, err)
		}
		e.items[p.ItemID] = item
		return e.evaluate(ctx, item, now, n)
	case Notice:
		e.emit(ctx, n, audit.Action{
			AgentID:     e.agentID,
			Type:        audit.ActionEvaluate,
			Description: p.Message,
			Data:        map[string]any{"event_id": ev.ID, "event_type": string(ev.Type)},
			Timestamp:   now,
		})
		return nil
	}
	return fmt.Errorf("event %s: payload %T: %w", ev.ID, payload, ErrUnexpectedPayload)
}

// evaluate runs one item through the decision pipeline and carries out the
// final verdict.
func (e *Engine) evaluate(ctx context.Context, item models.Item, now int64, n *notes) error {
	agentType := policy.AgentTypeFor(item)
	cfg, ok := e.roster.ForType(agentType)
	if !ok {
		return fmt.Errorf("%s item %s: %w", agentType, item.ItemID(), ErrNoAgent)
	}
	rt, err := e.runtime(cfg)
	if err != nil {
		return err
	}

	e.roster.SetStatus(cfg.ID, models.AgentStatusThinking)
	e.emit(ctx, n, audit.Action{
		AgentID:     cfg.ID,
		Type:        audit.ActionEvaluate,
		Description: "Evaluating " + itemName(item),
		Data:        map[string]any{"item_id": item.ItemID()},
		Timestamp:   now,
	})

	pctx := e.policyContext(now)
	d, err := rt.policy.Evaluate(item, pctx)
	if err != nil {
		e.roster.SetStatus(cfg.ID, models.AgentStatusError)
		return fmt.Errorf("evaluate %s: %w", item.ItemID(), err)
	}
	settlement := policy.Settle(item, d)

	d, constraint, err := e.gate(cfg, rt, d, settlement, pctx.RecentTransactions, now)
	if err != nil {
		n.errs = append(n.errs, err)
	}
	if constraint != "" {
		e.metrics.IncrementGuardrailHit(e.scenarioID(), constraint)
	}

	e.metrics.IncrementDecision(e.scenarioID(), string(cfg.Type), string(d.Action))
	e.emit(ctx, n, audit.Action{
		AgentID:     cfg.ID,
		Type:        audit.ActionDecide,
		Description: d.Reason,
		Data: map[string]any{
			"item_id":    item.ItemID(),
			"action":     string(d.Action),
			"risk_level": d.RiskLevel,
			"amount":     d.Amount,
		},
		Timestamp: now,
	})
	e.logger.DebugContext(ctx, "decision reached",
		"agent_id", cfg.ID,
		"item_id", item.ItemID(),
		"action", string(d.Action),
		"risk_level", d.RiskLevel,
	)

	switch d.Action {
	case models.ActionApprove:
		return e.execute(ctx, cfg, item, d, settlement, now, n)
	case models.ActionRequestApproval:
		return e.requestApproval(ctx, cfg, rt, item, d, settlement, now, n)
	default:
		e.reject(ctx, cfg.ID, item, d.Reason, now, n)
		return nil
	}
}

// policyContext reads the wallet the way policies see it: reserved funds are
// not spendable and only settled transactions count as history.
func (e *Engine) policyContext(now int64) policy.Context {
	snap := e.ledger.Snapshot()
	return policy.Context{
		Balance:            snap.Available,
		DailySpent:         snap.DailySpent,
		DailyLimit:         snap.DailyLimit,
		RecentTransactions: completed(e.ledger.Transactions()),
		Now:                now,
	}
}

// gate composes the policy verdict with the agent's mandates and custom rules.
// Rule 1: policy rejections are final.
// Rule 2: a hard mandate breach rejects; an approvable breach turns an
// approval into an approval request.
// Rule 3: a matching custom rule may reject or escalate, and may relax an
// approval request only when the mandates allowed the transaction.
// A custom rule that fails to evaluate leaves the decision unchanged.
// gate reports the violated mandate, if any; it has no side effects.
func (e *Engine) gate(cfg models.AgentConfig, rt *agentRuntime, d models.Decision, s policy.Settlement, history []wallet.Transaction, now int64) (models.Decision, string, error) {
	// Rule 1
	if d.Action == models.ActionReject {
		return d, "", nil
	}

	// Rule 2
	var constraint string
	if d.Flow == models.FlowDebit && d.Amount > 0 {
		res := guardrail.ValidateMandate(cfg, guardrail.Candidate{
			Amount:       d.Amount,
			Category:     s.Category,
			MerchantID:   s.MerchantID,
			MerchantName: s.MerchantName,
		}, history, e.isNewMerchant(s.MerchantID, history), now)
		if !res.Allowed {
			constraint = res.Constraint
			d = applyMandate(d, res)
			if d.Action == models.ActionReject {
				return d, constraint, nil
			}
		}
	}

	// Rule 3
	match, err := rt.rules.Evaluate(rules.Input{
		Amount:        d.Amount,
		Category:      s.Category,
		Merchant:      s.MerchantID,
		AgentType:     cfg.Type,
		RiskLevel:     d.RiskLevel,
		PaymentMethod: models.DefaultPaymentMethod,
	})
	if err != nil {
		return d, constraint, fmt.Errorf("agent %s custom rules: %w", cfg.ID, err)
	}
	if match != nil {
		d = applyRule(d, *match, constraint == "")
	}
	return d, constraint, nil
}

func applyMandate(d models.Decision, res guardrail.Result) models.Decision {
	node := &models.DecisionNode{
		ID:          "mandate_" + res.Constraint,
		Type:        models.NodeCondition,
		Label:       "Mandate: " + res.Constraint,
		Description: res.Reason,
		Result:      models.ResultPending,
	}
	if res.HardReject() {
		node.Result = models.ResultFail
		d.Action = models.ActionReject
		d.Reason = res.Reason
		d.RiskLevel = max(d.RiskLevel, res.Severity.RiskLevel())
	} else if d.Action == models.ActionApprove {
		d.Action = models.ActionRequestApproval
		d.Reason = res.Reason
		d.RiskLevel = max(d.RiskLevel, res.Severity.RiskLevel())
	}
	d.Tree = policy.AppendNode(d.Tree, node)
	return d
}

func applyRule(d models.Decision, r models.Rule, mandatesAllow bool) models.Decision {
	node := &models.DecisionNode{
		ID:          "rule_" + r.ID,
		Type:        models.NodeCondition,
		Label:       "Custom rule " + r.ID,
		Description: r.Condition,
	}
	switch r.Action {
	case models.ActionReject:
		node.Result = models.ResultFail
		d.Action = models.ActionReject
		d.Reason = fmt.Sprintf("Custom rule %s rejected the transaction", r.ID)
	case models.ActionRequestApproval:
		node.Result = models.ResultPending
		if d.Action == models.ActionApprove {
			d.Action = models.ActionRequestApproval
			d.Reason = fmt.Sprintf("Custom rule %s requires approval", r.ID)
		}
	case models.ActionApprove:
		node.Result = models.ResultPass
		if d.Action == models.ActionRequestApproval && mandatesAllow {
			d.Action = models.ActionApprove
			d.Reason = fmt.Sprintf("Custom rule %s approved the transaction", r.ID)
		}
	}
	d.Tree = policy.AppendNode(d.Tree, node)
	return d
}

// isNewMerchant reports a merchant that is neither part of the scenario nor
// paid before.
func (e *Engine) isNewMerchant(merchantID string, history []wallet.Transaction) bool {
	if merchantID == "" || e.known[merchantID] {
		return false
	}
	for _, t := range history {
		if t.MerchantID == merchantID {
			return false
		}
	}
	return true
}

// execute commits an approved decision with a single ledger call.
func (e *Engine) execute(ctx context.Context, cfg models.AgentConfig, item models.Item, d models.Decision, s policy.Settlement, now int64, n *notes) error {
	e.roster.SetStatus(cfg.ID, models.AgentStatusExecuting)
	data := map[string]any{"item_id": item.ItemID(), "amount": d.Amount}
	if d.MovesMoney() {
		txn, err := e.ledger.AddTransaction(transaction(cfg.ID, d, s, now))
		if err != nil {
			if errors.Is(err, sentinel.ErrInsufficientFunds) {
				e.reject(ctx, cfg.ID, item, "Insufficient available funds: "+err.Error(), now, n)
				return nil
			}
			e.roster.SetStatus(cfg.ID, models.AgentStatusError)
			return fmt.Errorf("commit %s: %w", item.ItemID(), err)
		}
		e.counters.TransactionsCompleted++
		data["transaction_id"] = txn.ID
	}
	e.counters.AutoApproved++
	e.carryOut(item, s)
	e.emit(ctx, n, audit.Action{
		AgentID:     cfg.ID,
		Type:        audit.ActionExecute,
		Description: s.Description,
		Data:        data,
		Timestamp:   now,
	})
	e.roster.SetStatus(cfg.ID, models.AgentStatusIdle)
	return nil
}

func (e *Engine) reject(ctx context.Context, agentID string, item models.Item, reason string, now int64, n *notes) {
	e.counters.DecisionsRejected++
	e.emit(ctx, n, audit.Action{
		AgentID:     agentID,
		Type:        audit.ActionComplete,
		Description: "Rejected: " + reason,
		Data:        map[string]any{"item_id": item.ItemID(), "outcome": "rejected"},
		Timestamp:   now,
	})
	e.roster.SetStatus(agentID, models.AgentStatusIdle)
}

// requestApproval stores the single outstanding request, holds the funds it
// would spend and pauses the clock.
func (e *Engine) requestApproval(ctx context.Context, cfg models.AgentConfig, rt *agentRuntime, item models.Item, d models.Decision, s policy.Settlement, now int64, n *notes) error {
	req, err := rt.policy.CreateApprovalRequest(item, d, now)
	if err != nil {
		return fmt.Errorf("approval request for %s: %w", item.ItemID(), err)
	}
	p := &pendingApproval{request: req, item: item, decision: d, settlement: s}
	if d.Flow == models.FlowDebit && d.Amount > 0 {
		res, err := e.ledger.CreateReservation(d.Amount, cfg.ID, s.Description, now)
		switch {
		case err == nil:
			p.reservationID = res.ID
		case errors.Is(err, sentinel.ErrInsufficientFunds):
			e.logger.InfoContext(ctx, "approval requested without a reservation", "request_id", req.ID, "error", err)
		default:
			return fmt.Errorf("reserve funds for %s: %w", item.ItemID(), err)
		}
	}

	e.pending = p
	e.state = StateAwaitingApproval
	e.clock.Pause()
	e.roster.SetStatus(cfg.ID, models.AgentStatusWaitingApproval)
	e.counters.ApprovalsRequested++

	e.emit(ctx, n, audit.Action{
		AgentID:     cfg.ID,
		Type:        audit.ActionWait,
		Description: "Awaiting approval: " + s.Description,
		Data: map[string]any{
			"request_id":     req.ID,
			"item_id":        item.ItemID(),
			"amount":         req.Amount,
			"risk_level":     req.RiskLevel,
			"reservation_id": p.reservationID,
		},
		Timestamp: now,
	})
	e.logger.InfoContext(ctx, "approval required",
		"request_id", req.ID,
		"agent_id", cfg.ID,
		"item_id", item.ItemID(),
		"risk_level", req.RiskLevel,
	)
	n.approval = &req
	return nil
}

// carryOut applies the non-ledger effects of a decision to the scenario items.
func (e *Engine) carryOut(item models.Item, s policy.Settlement) {
	switch it := item.(type) {
	case models.Bill:
		it.IsPaid = true
		e.items[it.ID] = it
	case models.Subscription:
		e.counters.Savings += s.Savings
		switch {
		case s.Cancels:
			it.IsActive = false
			e.items[it.ID] = it
			e.counters.SubscriptionsCancelled++
		case s.SwitchTo != nil:
			e.items[it.ID] = it.Switched(*s.SwitchTo)
		}
	}
}

// emit appends to the action log. Sink failures are reported to the host but
// never change the outcome.
func (e *Engine) emit(ctx context.Context, n *notes, action audit.Action) {
	if err := e.actions.Emit(ctx, action); err != nil {
		e.logger.WarnContext(ctx, "failed to record agent action", "type", string(action.Type), "error", err)
		n.errs = append(n.errs, fmt.Errorf("record %s action: %w", action.Type, err))
	}
}

func transaction(agentID string, d models.Decision, s policy.Settlement, now int64) wallet.Transaction {
	txnType := wallet.Debit
	if d.Flow == models.FlowCredit {
		txnType = wallet.Credit
	}
	return wallet.Transaction{
		Timestamp:    now,
		Amount:       d.Amount,
		Type:         txnType,
		Status:       wallet.StatusCompleted,
		MerchantID:   s.MerchantID,
		MerchantName: s.MerchantName,
		Category:     s.Category,
		AgentID:      agentID,
		Description:  s.Description,
		Reasoning:    d.Reason,
	}
}

// completed keeps settled entries, newest first, for rate and cooldown checks.
func completed(txns []wallet.Transaction) []wallet.Transaction {
	out := txns[:0:0]
	for _, t := range txns {
		if t.Status == wallet.StatusCompleted {
			out = append(out, t)
		}
	}
	return out
}

func itemName(item models.Item) string {
	switch it := item.(type) {
	case models.Product:
		return it.Name
	case models.Bill:
		return it.Name
	case models.Subscription:
		return it.Name
	case models.Investment:
		return it.Name
	}
	return item.ItemID()
}
