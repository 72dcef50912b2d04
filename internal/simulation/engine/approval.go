package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agentsim/internal/agent/models"
	"agentsim/internal/audit"
	"agentsim/internal/wallet"
)

const (
	approvalGranted = "approved"
	approvalDenied  = "rejected"
	approvalExpired = "expired"
)

// ApproveRequest commits the outstanding request and resumes the run. It
// returns false when id is not the outstanding request.
func (e *Engine) ApproveRequest(ctx context.Context, id string) bool {
	ctx, span := e.tracer.Start(ctx, "engine.approve", trace.WithAttributes(attribute.String("approval.id", id)))
	defer span.End()

	n := &notes{}
	e.mu.Lock()
	p := e.pending
	if p == nil || p.request.ID != id {
		e.mu.Unlock()
		return false
	}
	now := e.clock.CurrentTime()
	agentID := p.request.AgentID

	data := map[string]any{"request_id": id, "item_id": p.item.ItemID(), "amount": p.request.Amount}
	txn, committed, err := e.commit(p, now)
	if err != nil {
		span.RecordError(err)
		e.logger.WarnContext(ctx, "approved request could not be committed", "request_id", id, "error", err)
		e.emit(ctx, n, audit.Action{
			AgentID:     agentID,
			Type:        audit.ActionComplete,
			Description: "Approved but failed: " + err.Error(),
			Data:        map[string]any{"request_id": id, "item_id": p.item.ItemID(), "outcome": "failed"},
			Timestamp:   now,
		})
		n.errs = append(n.errs, fmt.Errorf("commit approval %s: %w", id, err))
	} else {
		if committed {
			e.counters.TransactionsCompleted++
			data["transaction_id"] = txn.ID
		}
		e.carryOut(p.item, p.settlement)
		e.emit(ctx, n, audit.Action{
			AgentID:     agentID,
			Type:        audit.ActionExecute,
			Description: "Approved: " + p.settlement.Description,
			Data:        data,
			Timestamp:   now,
		})
	}
	e.counters.ApprovalsGranted++
	e.metrics.IncrementApproval(e.scenarioID(), approvalGranted)
	e.logger.InfoContext(ctx, "approval granted", "request_id", id, "agent_id", agentID)
	e.settle(agentID, n)
	e.mu.Unlock()

	e.fire(n)
	return true
}

// RejectRequest discards the outstanding request, releases any held funds and
// resumes the run. It returns false when id is not the outstanding request.
func (e *Engine) RejectRequest(ctx context.Context, id string) bool {
	ctx, span := e.tracer.Start(ctx, "engine.reject", trace.WithAttributes(attribute.String("approval.id", id)))
	defer span.End()

	n := &notes{}
	e.mu.Lock()
	p := e.pending
	if p == nil || p.request.ID != id {
		e.mu.Unlock()
		return false
	}
	now := e.clock.CurrentTime()
	agentID := p.request.AgentID

	if p.reservationID != "" {
		e.ledger.ReleaseReservation(p.reservationID)
	}
	e.emit(ctx, n, audit.Action{
		AgentID:     agentID,
		Type:        audit.ActionComplete,
		Description: "Rejected by user: " + p.settlement.Description,
		Data:        map[string]any{"request_id": id, "item_id": p.item.ItemID(), "outcome": "rejected"},
		Timestamp:   now,
	})
	e.counters.ApprovalsDenied++
	e.metrics.IncrementApproval(e.scenarioID(), approvalDenied)
	e.logger.InfoContext(ctx, "approval denied", "request_id", id, "agent_id", agentID)
	e.settle(agentID, n)
	e.mu.Unlock()

	e.fire(n)
	return true
}

// commit books the approved decision. Held funds settle the debit; otherwise
// the transaction is added directly and may still fail for lack of funds.
func (e *Engine) commit(p *pendingApproval, now int64) (wallet.Transaction, bool, error) {
	if !p.decision.MovesMoney() {
		return wallet.Transaction{}, false, nil
	}
	txn := transaction(p.request.AgentID, p.decision, p.settlement, now)
	if p.reservationID != "" {
		out, err := e.ledger.CompleteReservation(p.reservationID, txn)
		return out, err == nil, err
	}
	out, err := e.ledger.AddTransaction(txn)
	return out, err == nil, err
}

// settle clears the resolved request and resumes the clock. Must be called
// with e.mu held.
func (e *Engine) settle(agentID string, n *notes) {
	e.pending = nil
	e.roster.SetStatus(agentID, models.AgentStatusIdle)
	if e.state == StateAwaitingApproval {
		e.state = StateRunning
		e.clock.Resume()
	}
	e.observe(n)
}

// expire drops the outstanding request when the run halts. Must be called
// with e.mu held.
func (e *Engine) expire(ctx context.Context, n *notes) {
	p := e.pending
	if p == nil {
		return
	}
	if p.reservationID != "" {
		e.ledger.ReleaseReservation(p.reservationID)
	}
	e.emit(ctx, n, audit.Action{
		AgentID:     p.request.AgentID,
		Type:        audit.ActionComplete,
		Description: "Approval expired: " + p.settlement.Description,
		Data:        map[string]any{"request_id": p.request.ID, "item_id": p.item.ItemID(), "outcome": approvalExpired},
		Timestamp:   e.clock.CurrentTime(),
	})
	e.metrics.IncrementApproval(e.scenarioID(), approvalExpired)
	e.logger.InfoContext(ctx, "approval expired", "request_id", p.request.ID)
	e.pending = nil
	e.roster.SetStatus(p.request.AgentID, models.AgentStatusIdle)
}
