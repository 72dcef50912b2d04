package audit

import (
	"context"
	"time"
)

// ActionType classifies a step an agent took.
type ActionType string

const (
	ActionSearch   ActionType = "search"
	ActionEvaluate ActionType = "evaluate"
	ActionDecide   ActionType = "decide"
	ActionExecute  ActionType = "execute"
	ActionWait     ActionType = "wait"
	ActionComplete ActionType = "complete"
)

// Action is one structured record in the append-only agent action log.
// Timestamp is simulated milliseconds; RecordedAt is wall-clock time.
type Action struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agent_id"`
	Type        ActionType     `json:"type"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   int64          `json:"timestamp"`
	RecordedAt  time.Time      `json:"recorded_at"`
}

// Store persists actions. Implementations must keep append order.
type Store interface {
	Append(ctx context.Context, action Action) error
	ListAll(ctx context.Context) ([]Action, error)
	ListByAgent(ctx context.Context, agentID string) ([]Action, error)
	Clear(ctx context.Context) error
}
