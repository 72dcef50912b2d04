package roster

import (
	"fmt"
	"slices"
	"sync"

	"agentsim/internal/agent/models"
	"agentsim/pkg/platform/sentinel"
)

type entry struct {
	config models.AgentConfig
	status models.AgentStatus
}

// Roster holds the agents taking part in a simulation and their live status.
// Configs are copied in and out; callers change them only through Update.
type Roster struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

func New() *Roster {
	return &Roster{entries: make(map[string]*entry)}
}

// Add registers a validated agent. Ids must be unique.
func (r *Roster) Add(cfg models.AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[cfg.ID]; ok {
		return fmt.Errorf("agent %s: %w", cfg.ID, sentinel.ErrConflict)
	}
	r.entries[cfg.ID] = &entry{config: cloneConfig(cfg), status: models.AgentStatusIdle}
	r.order = append(r.order, cfg.ID)
	return nil
}

// Update applies fn to a copy of the agent's config and keeps the result only
// if it still validates. The agent id cannot change.
func (r *Roster) Update(id string, fn func(*models.AgentConfig)) (models.AgentConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return models.AgentConfig{}, fmt.Errorf("agent %s: %w", id, sentinel.ErrNotFound)
	}
	next := cloneConfig(e.config)
	fn(&next)
	next.ID = id
	if err := next.Validate(); err != nil {
		return models.AgentConfig{}, err
	}
	e.config = next
	return cloneConfig(next), nil
}

// Remove drops an agent. It reports whether the agent existed.
func (r *Roster) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	return true
}

func (r *Roster) Get(id string) (models.AgentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return models.AgentConfig{}, false
	}
	return cloneConfig(e.config), true
}

// ForType returns the first enabled agent of the given type, in insertion order.
func (r *Roster) ForType(t models.AgentType) (models.AgentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if e := r.entries[id]; e.config.Enabled && e.config.Type == t {
			return cloneConfig(e.config), true
		}
	}
	return models.AgentConfig{}, false
}

// Primary returns the first enabled agent.
func (r *Roster) Primary() (models.AgentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if e := r.entries[id]; e.config.Enabled {
			return cloneConfig(e.config), true
		}
	}
	return models.AgentConfig{}, false
}

// SetStatus records an agent's status. Unknown ids are ignored.
func (r *Roster) SetStatus(id string, status models.AgentStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.status = status
	return true
}

func (r *Roster) Status(id string) (models.AgentStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return "", false
	}
	return e.status, true
}

// ResetStatuses returns every agent to idle.
func (r *Roster) ResetStatuses() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.status = models.AgentStatusIdle
	}
}

// All returns every agent config in insertion order.
func (r *Roster) All() []models.AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AgentConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneConfig(r.entries[id].config))
	}
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// cloneConfig copies the slices of a config so callers cannot alias roster state.
// Mandate constraints are pointers to immutable values and are shared.
func cloneConfig(c models.AgentConfig) models.AgentConfig {
	c.AllowedCategories = slices.Clone(c.AllowedCategories)
	c.BlockedMerchants = slices.Clone(c.BlockedMerchants)
	c.CustomRules = slices.Clone(c.CustomRules)
	return c
}
