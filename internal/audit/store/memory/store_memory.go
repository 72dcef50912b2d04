package memory

import (
	"context"
	"sync"

	"agentsim/internal/audit"
)

// InMemoryStore keeps actions in append order. One store serves one simulation.
type InMemoryStore struct {
	mu      sync.RWMutex
	actions []audit.Action
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, action audit.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Action{}, s.actions...), nil
}

func (s *InMemoryStore) ListByAgent(_ context.Context, agentID string) ([]audit.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Action
	for _, a := range s.actions {
		if a.AgentID == agentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = nil
	return nil
}
