package scenario

import "sync"

// CriterionKind names the engine counter an objective tracks.
type CriterionKind string

const (
	CriterionEventsProcessed        CriterionKind = "events_processed"
	CriterionTransactionsCompleted  CriterionKind = "transactions_completed"
	CriterionAutoApproved           CriterionKind = "auto_approved"
	CriterionApprovalsRequested     CriterionKind = "approvals_requested"
	CriterionApprovalsResolved      CriterionKind = "approvals_resolved"
	CriterionApprovalsGranted       CriterionKind = "approvals_granted"
	CriterionApprovalsDenied        CriterionKind = "approvals_denied"
	CriterionDecisionsRejected      CriterionKind = "decisions_rejected"
	CriterionSubscriptionsCancelled CriterionKind = "subscriptions_cancelled"
	CriterionSavings                CriterionKind = "savings"
	CriterionAgentUpdated           CriterionKind = "agent_updated"
)

func (k CriterionKind) IsValid() bool {
	switch k {
	case CriterionEventsProcessed, CriterionTransactionsCompleted, CriterionAutoApproved,
		CriterionApprovalsRequested, CriterionApprovalsResolved, CriterionApprovalsGranted,
		CriterionApprovalsDenied, CriterionDecisionsRejected, CriterionSubscriptionsCancelled,
		CriterionSavings, CriterionAgentUpdated:
		return true
	}
	return false
}

// Criterion completes an objective once the named counter reaches Value.
type Criterion struct {
	Kind  CriterionKind `json:"kind" yaml:"kind"`
	Value float64       `json:"value" yaml:"value"`
}

type Objective struct {
	ID          string     `json:"id" yaml:"id"`
	Description string     `json:"description" yaml:"description"`
	IsCompleted bool       `json:"is_completed" yaml:"is_completed"`
	IsOptional  bool       `json:"is_optional" yaml:"is_optional"`
	ConceptID   string     `json:"concept_id,omitempty" yaml:"concept_id,omitempty"`
	Criterion   *Criterion `json:"criterion,omitempty" yaml:"criterion,omitempty"`
}

// Counters are the run totals objectives are measured against.
type Counters struct {
	EventsProcessed        int     `json:"events_processed"`
	TransactionsCompleted  int     `json:"transactions_completed"`
	AutoApproved           int     `json:"auto_approved"`
	ApprovalsRequested     int     `json:"approvals_requested"`
	ApprovalsGranted       int     `json:"approvals_granted"`
	ApprovalsDenied        int     `json:"approvals_denied"`
	DecisionsRejected      int     `json:"decisions_rejected"`
	SubscriptionsCancelled int     `json:"subscriptions_cancelled"`
	Savings                float64 `json:"savings"`
	AgentUpdates           int     `json:"agent_updates"`
}

// ApprovalsResolved counts approvals granted or denied by a human.
func (c Counters) ApprovalsResolved() int {
	return c.ApprovalsGranted + c.ApprovalsDenied
}

func (c Counters) value(kind CriterionKind) float64 {
	switch kind {
	case CriterionEventsProcessed:
		return float64(c.EventsProcessed)
	case CriterionTransactionsCompleted:
		return float64(c.TransactionsCompleted)
	case CriterionAutoApproved:
		return float64(c.AutoApproved)
	case CriterionApprovalsRequested:
		return float64(c.ApprovalsRequested)
	case CriterionApprovalsResolved:
		return float64(c.ApprovalsResolved())
	case CriterionApprovalsGranted:
		return float64(c.ApprovalsGranted)
	case CriterionApprovalsDenied:
		return float64(c.ApprovalsDenied)
	case CriterionDecisionsRejected:
		return float64(c.DecisionsRejected)
	case CriterionSubscriptionsCancelled:
		return float64(c.SubscriptionsCancelled)
	case CriterionSavings:
		return c.Savings
	case CriterionAgentUpdated:
		return float64(c.AgentUpdates)
	}
	return 0
}

// Progress tracks the objectives of the active scenario.
type Progress struct {
	mu         sync.Mutex
	objectives []Objective
}

func NewProgress() *Progress {
	return &Progress{}
}

// Load replaces the tracked objectives with fresh, incomplete copies.
func (p *Progress) Load(objectives []Objective) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objectives = make([]Objective, len(objectives))
	for i, o := range objectives {
		o.IsCompleted = false
		p.objectives[i] = o
	}
}

// Complete marks an objective done. It reports false for unknown or already
// completed objectives.
func (p *Progress) Complete(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.objectives {
		if p.objectives[i].ID == id {
			if p.objectives[i].IsCompleted {
				return false
			}
			p.objectives[i].IsCompleted = true
			return true
		}
	}
	return false
}

// Observe completes every objective whose criterion the counters meet and
// returns the ids newly completed.
func (p *Progress) Observe(c Counters) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var done []string
	for i := range p.objectives {
		o := &p.objectives[i]
		if o.IsCompleted || o.Criterion == nil {
			continue
		}
		if c.value(o.Criterion.Kind) >= o.Criterion.Value {
			o.IsCompleted = true
			done = append(done, o.ID)
		}
	}
	return done
}

// AllRequiredComplete is false when there are no required objectives.
func (p *Progress) AllRequiredComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	required := 0
	for _, o := range p.objectives {
		if o.IsOptional {
			continue
		}
		required++
		if !o.IsCompleted {
			return false
		}
	}
	return required > 0
}

// CompletionPercentage is the share of required objectives completed, 100
// when there are none.
func (p *Progress) CompletionPercentage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	required, completed := 0, 0
	for _, o := range p.objectives {
		if o.IsOptional {
			continue
		}
		required++
		if o.IsCompleted {
			completed++
		}
	}
	if required == 0 {
		return 100
	}
	return float64(completed) / float64(required) * 100
}

func (p *Progress) Objectives() []Objective {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Objective, len(p.objectives))
	copy(out, p.objectives)
	return out
}
