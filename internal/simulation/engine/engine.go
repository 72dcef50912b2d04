package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"agentsim/internal/agent/models"
	"agentsim/internal/agent/roster"
	"agentsim/internal/guardrail/rules"
	"agentsim/internal/policy"
	"agentsim/internal/scenario"
	"agentsim/internal/simulation/clock"
	"agentsim/internal/simulation/metrics"
	"agentsim/internal/simulation/queue"
	"agentsim/internal/wallet"
	"agentsim/pkg/platform/sentinel"
)

var (
	// ErrUnexpectedPayload is reported through OnError when an event carries a
	// payload the engine cannot interpret.
	ErrUnexpectedPayload = errors.New("unexpected event payload")
	// ErrNoAgent is reported through OnError when no enabled agent handles an item.
	ErrNoAgent = errors.New("no agent for item")
)

// DayMillis is one simulated day. Daily spending resets on every boundary.
const DayMillis int64 = 24 * 60 * 60 * 1000

// State is the engine lifecycle state.
type State string

const (
	StateUninitialized    State = "uninitialized"
	StateStopped          State = "stopped"
	StateRunning          State = "running"
	StatePaused           State = "paused"
	StateAwaitingApproval State = "awaiting_approval"
	StateCompleted        State = "completed"
)

// Callbacks are the host notification surface. They run after the engine lock
// is released, so a callback may call back into the engine.
type Callbacks struct {
	OnEventProcessed     func(queue.Event)
	OnApprovalRequired   func(models.ApprovalRequest)
	OnObjectiveCompleted func(objectiveID string)
	OnSimulationComplete func()
	OnError              func(error)
}

// Deps are the collaborators the engine drives. Ledger and Actions are
// required; the rest default to fresh instances.
type Deps struct {
	Queue   *queue.Queue
	Clock   *clock.Controller
	Roster  *roster.Roster
	Ledger  Ledger
	Actions ActionLog
}

// Stats is a snapshot of a run.
type Stats struct {
	ScenarioID           string                  `json:"scenario_id,omitempty"`
	State                State                   `json:"state"`
	Clock                clock.State             `json:"clock"`
	Queue                queue.Stats             `json:"queue"`
	Counters             scenario.Counters       `json:"counters"`
	Wallet               wallet.Snapshot         `json:"wallet"`
	Objectives           []scenario.Objective    `json:"objectives"`
	CompletionPercentage float64                 `json:"completion_percentage"`
	PendingApproval      *models.ApprovalRequest `json:"pending_approval,omitempty"`
}

type agentRuntime struct {
	policy *policy.Policy
	rules  *rules.Evaluator
}

// pendingApproval is the single outstanding approval and what it would commit.
type pendingApproval struct {
	request       models.ApprovalRequest
	item          models.Item
	decision      models.Decision
	settlement    policy.Settlement
	reservationID string
}

// Engine runs one scenario: it turns clock ticks into event dispatches,
// decisions into ledger calls, and pauses whenever a human must approve.
type Engine struct {
	mu sync.Mutex

	queue   *queue.Queue
	clock   *clock.Controller
	roster  *roster.Roster
	ledger  Ledger
	actions ActionLog

	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	callbacks  Callbacks
	policyOpts []policy.Option

	state    State
	scenario *scenario.Scenario
	agentID  string
	items    map[string]models.Item
	known    map[string]bool
	agents   map[string]*agentRuntime
	progress *scenario.Progress
	counters scenario.Counters
	pending  *pendingApproval
	day      int64
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

func WithCallbacks(cb Callbacks) Option {
	return func(e *Engine) {
		e.callbacks = cb
	}
}

// WithPolicyOptions tunes every decision policy the engine builds.
func WithPolicyOptions(opts ...policy.Option) Option {
	return func(e *Engine) {
		e.policyOpts = append(e.policyOpts, opts...)
	}
}

// New wires an engine to its collaborators and binds the clock's tick to it.
func New(deps Deps, opts ...Option) (*Engine, error) {
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger is required: %w", sentinel.ErrInvalidInput)
	}
	if deps.Actions == nil {
		return nil, fmt.Errorf("action log is required: %w", sentinel.ErrInvalidInput)
	}
	e := &Engine{
		queue:    deps.Queue,
		clock:    deps.Clock,
		roster:   deps.Roster,
		ledger:   deps.Ledger,
		actions:  deps.Actions,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer("agentsim/engine"),
		state:    StateUninitialized,
		progress: scenario.NewProgress(),
		agents:   make(map[string]*agentRuntime),
	}
	if e.queue == nil {
		e.queue = queue.New()
	}
	if e.clock == nil {
		e.clock = clock.New(nil)
	}
	if e.roster == nil {
		e.roster = roster.New()
	}
	for _, opt := range opts {
		opt(e)
	}
	e.clock.OnTick(e.tick)
	return e, nil
}

// Initialize loads a scenario: the wallet is reset to the initial balance, the
// action log is cleared, objectives are loaded and the initial events are
// scheduled. Calling it again starts the scenario over. An outstanding
// approval is expired first.
func (e *Engine) Initialize(ctx context.Context, s scenario.Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	cfg, err := s.AgentConfig()
	if err != nil {
		return err
	}
	if _, err := rules.NewEvaluator(cfg.CustomRules); err != nil {
		return fmt.Errorf("scenario %s: %w", s.ID, err)
	}

	n := e.halt(ctx)
	e.clock.Reset()

	e.mu.Lock()
	err = e.load(ctx, s, cfg)
	e.mu.Unlock()

	e.fire(n)
	return err
}

// load must be called with e.mu held.
func (e *Engine) load(ctx context.Context, s scenario.Scenario, cfg models.AgentConfig) error {
	e.queue.Reset()
	e.ledger.Reset(s.InitialBalance)
	e.ledger.SetDailyLimit(cfg.SpendingLimits.Daily)
	if err := e.actions.Clear(ctx); err != nil {
		return fmt.Errorf("clear action log: %w", err)
	}

	if e.agentID != "" {
		e.roster.Remove(e.agentID)
	}
	e.roster.Remove(cfg.ID)
	if err := e.roster.Add(cfg); err != nil {
		return err
	}
	e.roster.ResetStatuses()

	e.agentID = cfg.ID
	e.agents = make(map[string]*agentRuntime)
	e.scenario = &s
	e.items = make(map[string]models.Item)
	e.known = make(map[string]bool)
	for _, m := range s.KnownMerchants() {
		e.known[m] = true
	}
	e.progress.Load(s.Objectives)
	e.counters = scenario.Counters{}
	e.pending = nil
	e.day = 0

	specs := initialEvents(s)
	for _, spec := range specs {
		if p, ok := spec.Payload.(ItemPayload); ok {
			e.items[p.Item.ItemID()] = p.Item
		}
	}
	e.queue.AddEvents(specs)
	e.state = StateStopped

	e.logger.InfoContext(ctx, "scenario initialized",
		"scenario_id", s.ID,
		"agent_id", cfg.ID,
		"agent_type", string(cfg.Type),
		"events", len(specs),
		"initial_balance", s.InitialBalance,
	)
	return nil
}

// initialEvents staggers the scenario content: products every 5s, investments
// every 8s, bills at their due time and subscriptions at renewal.
func initialEvents(s scenario.Scenario) []queue.Spec {
	var specs []queue.Spec
	for i, p := range s.Products {
		specs = append(specs, queue.Spec{
			ScheduledTime: int64(i+1) * 5000,
			Type:          queue.EventAgentAction,
			Priority:      5,
			Payload:       ItemPayload{Item: p},
		})
	}
	for _, b := range s.Bills {
		specs = append(specs, queue.Spec{
			ScheduledTime: max(0, b.DueAt),
			Type:          queue.EventBillDue,
			Priority:      10,
			Payload:       ItemPayload{Item: b},
		})
	}
	for _, sub := range s.Subscriptions {
		specs = append(specs, queue.Spec{
			ScheduledTime: max(0, sub.RenewalAt),
			Type:          queue.EventAgentAction,
			Priority:      7,
			Payload:       ItemPayload{Item: sub},
		})
	}
	for i, inv := range s.Investments {
		specs = append(specs, queue.Spec{
			ScheduledTime: int64(i+1) * 8000,
			Type:          queue.EventMarketChange,
			Priority:      6,
			Payload:       ItemPayload{Item: inv},
		})
	}
	for _, ev := range s.Events {
		var payload any
		if ev.Payload != nil {
			payload = ev.Payload
		}
		specs = append(specs, queue.Spec{
			ScheduledTime: ev.At,
			Type:          ev.Type,
			Priority:      ev.Priority,
			Payload:       payload,
		})
	}
	return specs
}

// Start runs the simulation, initializing the last loaded scenario if needed.
// Starting a paused run resumes it; starting while an approval is outstanding
// or after completion does nothing.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateUninitialized {
		if e.scenario == nil {
			e.mu.Unlock()
			return fmt.Errorf("start: no scenario loaded: %w", sentinel.ErrInvalidState)
		}
		s := *e.scenario
		e.mu.Unlock()
		if err := e.Initialize(ctx, s); err != nil {
			return err
		}
		e.mu.Lock()
	}
	defer e.mu.Unlock()

	switch e.state {
	case StateStopped:
		e.state = StateRunning
		e.clock.Start()
		e.logger.InfoContext(ctx, "simulation started", "scenario_id", e.scenarioID(), "current_time", e.clock.CurrentTime())
	case StatePaused:
		e.state = StateRunning
		e.clock.Resume()
	}
	return nil
}

// Pause halts a running simulation. It reports whether the state changed.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return false
	}
	e.state = StatePaused
	e.clock.Pause()
	e.roster.SetStatus(e.agentID, models.AgentStatusPaused)
	return true
}

// Resume continues a paused simulation. It is refused while an approval is
// outstanding.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused || e.pending != nil {
		return false
	}
	e.state = StateRunning
	e.clock.Resume()
	e.roster.SetStatus(e.agentID, models.AgentStatusIdle)
	return true
}

// Stop halts the simulation and keeps simulated time. An outstanding approval
// is expired: its reservation is released and the expiry is logged.
func (e *Engine) Stop(ctx context.Context) {
	e.fire(e.halt(ctx))
}

// halt stops the clock outside the engine lock; the heartbeat goroutine may be
// waiting on that lock inside a tick. When halt runs from a host callback on
// the heartbeat goroutine, the clock does not wait for that goroutine.
func (e *Engine) halt(ctx context.Context) *notes {
	n := &notes{}
	e.mu.Lock()
	if e.pending != nil {
		e.expire(ctx, n)
	}
	switch e.state {
	case StateRunning, StatePaused, StateAwaitingApproval:
		e.state = StateStopped
		e.roster.ResetStatuses()
		e.logger.InfoContext(ctx, "simulation stopped", "scenario_id", e.scenarioID(), "current_time", e.clock.CurrentTime())
	}
	e.mu.Unlock()

	e.clock.Stop()
	return n
}

// Reset stops the run and clears the queue, clock, wallet, action log and
// progress. The scenario stays loaded so Start can begin it again.
func (e *Engine) Reset(ctx context.Context) error {
	n := e.halt(ctx)
	e.clock.Reset()

	e.mu.Lock()
	e.queue.Reset()
	balance := 0.0
	if e.scenario != nil {
		balance = e.scenario.InitialBalance
	}
	e.ledger.Reset(balance)
	err := e.actions.Clear(ctx)
	if e.scenario != nil {
		e.progress.Load(e.scenario.Objectives)
	}
	e.counters = scenario.Counters{}
	e.pending = nil
	e.day = 0
	e.roster.ResetStatuses()
	e.state = StateUninitialized
	e.mu.Unlock()

	e.fire(n)
	if err != nil {
		return fmt.Errorf("clear action log: %w", err)
	}
	return nil
}

// SetSpeed changes the simulated-time multiplier. Unsupported speeds are ignored.
func (e *Engine) SetSpeed(s clock.Speed) {
	e.clock.SetSpeed(s)
}

func (e *Engine) Speed() clock.Speed {
	return e.clock.Speed()
}

// AddEvent schedules an ad hoc event and returns its id.
func (e *Engine) AddEvent(spec queue.Spec) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := spec.Payload.(ItemPayload); ok && p.Item != nil {
		if e.items == nil {
			e.items = make(map[string]models.Item)
		}
		e.items[p.Item.ItemID()] = p.Item
	}
	return e.queue.AddEvent(spec)
}

// UpdateAgent edits an agent's config. Invalid edits are rejected and the old
// config kept. Policies and custom rules are rebuilt on next use.
func (e *Engine) UpdateAgent(ctx context.Context, agentID string, fn func(*models.AgentConfig)) (models.AgentConfig, error) {
	n := &notes{}
	e.mu.Lock()
	var ruleErr error
	cfg, err := e.roster.Update(agentID, func(c *models.AgentConfig) {
		next := *c
		fn(&next)
		if _, ruleErr = rules.NewEvaluator(next.CustomRules); ruleErr != nil {
			return
		}
		*c = next
	})
	if err == nil {
		err = ruleErr
	}
	if err != nil {
		e.mu.Unlock()
		return models.AgentConfig{}, err
	}
	delete(e.agents, agentID)
	if agentID == e.agentID {
		e.ledger.SetDailyLimit(cfg.SpendingLimits.Daily)
	}
	e.counters.AgentUpdates++
	e.logger.InfoContext(ctx, "agent updated", "agent_id", agentID)
	e.observe(n)
	e.mu.Unlock()

	e.fire(n)
	return cfg, nil
}

// CompleteObjective marks an objective done on the host's behalf. It reports
// false for unknown or already completed objectives.
func (e *Engine) CompleteObjective(id string) bool {
	n := &notes{}
	e.mu.Lock()
	ok := e.progress.Complete(id)
	if ok {
		n.objectives = append(n.objectives, id)
		e.checkCompletion(n)
	}
	e.mu.Unlock()

	e.fire(n)
	return ok
}

// CurrentApprovalRequest returns the outstanding approval, if any.
func (e *Engine) CurrentApprovalRequest() (models.ApprovalRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return models.ApprovalRequest{}, false
	}
	return e.pending.request, true
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Roster exposes the agents the engine evaluates with.
func (e *Engine) Roster() *roster.Roster {
	return e.roster
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Stats{
		ScenarioID:           e.scenarioID(),
		State:                e.state,
		Clock:                e.clock.State(),
		Queue:                e.queue.Stats(),
		Counters:             e.counters,
		Wallet:               e.ledger.Snapshot(),
		Objectives:           e.progress.Objectives(),
		CompletionPercentage: e.progress.CompletionPercentage(),
	}
	if e.pending != nil {
		req := e.pending.request
		st.PendingApproval = &req
	}
	return st
}

func (e *Engine) scenarioID() string {
	if e.scenario == nil {
		return ""
	}
	return e.scenario.ID
}

// runtime returns the cached policy and rule evaluator for cfg.
func (e *Engine) runtime(cfg models.AgentConfig) (*agentRuntime, error) {
	if rt, ok := e.agents[cfg.ID]; ok {
		return rt, nil
	}
	p, err := policy.New(cfg, e.policyOpts...)
	if err != nil {
		return nil, err
	}
	ev, err := rules.NewEvaluator(cfg.CustomRules)
	if err != nil {
		return nil, err
	}
	rt := &agentRuntime{policy: p, rules: ev}
	e.agents[cfg.ID] = rt
	return rt, nil
}

// observe completes objectives the counters now meet. Must be called with
// e.mu held.
func (e *Engine) observe(n *notes) {
	n.objectives = append(n.objectives, e.progress.Observe(e.counters)...)
	e.checkCompletion(n)
}

// checkCompletion ends the run once every required objective is done. It uses
// StopAsync because it runs inside the tick callback. Must be called with
// e.mu held.
func (e *Engine) checkCompletion(n *notes) {
	if e.state == StateCompleted || e.state == StateUninitialized || !e.progress.AllRequiredComplete() {
		return
	}
	if e.pending != nil {
		return
	}
	e.state = StateCompleted
	e.clock.StopAsync()
	e.roster.SetStatus(e.agentID, models.AgentStatusCompleted)
	n.complete = true
	e.logger.Info("scenario completed", "scenario_id", e.scenarioID(), "current_time", e.clock.CurrentTime())
}

// notes collects host notifications while the engine lock is held.
type notes struct {
	events     []queue.Event
	objectives []string
	approval   *models.ApprovalRequest
	errs       []error
	complete   bool
}

func (e *Engine) fire(n *notes) {
	if n == nil {
		return
	}
	cb := e.callbacks
	for _, ev := range n.events {
		if cb.OnEventProcessed != nil {
			cb.OnEventProcessed(ev)
		}
	}
	for _, id := range n.objectives {
		if cb.OnObjectiveCompleted != nil {
			cb.OnObjectiveCompleted(id)
		}
	}
	for _, err := range n.errs {
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}
	if n.approval != nil && cb.OnApprovalRequired != nil {
		cb.OnApprovalRequired(*n.approval)
	}
	if n.complete && cb.OnSimulationComplete != nil {
		cb.OnSimulationComplete()
	}
}
