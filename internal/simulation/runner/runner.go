package runner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agentsim/internal/agent/models"
	"agentsim/internal/audit"
	"agentsim/internal/audit/store/memory"
	"agentsim/internal/audit/store/sqlite"
	"agentsim/internal/platform/config"
	"agentsim/internal/scenario"
	"agentsim/internal/simulation/clock"
	"agentsim/internal/simulation/engine"
	"agentsim/internal/simulation/metrics"
	"agentsim/internal/simulation/queue"
	"agentsim/internal/wallet"
	"agentsim/pkg/platform/sentinel"
)

// actionBuffer bounds actions queued for a database-backed store.
const actionBuffer = 256

// LowRiskCeiling is the highest risk level the low-risk approval mode grants.
const LowRiskCeiling = 2

// Options control how a scenario is driven to completion.
type Options struct {
	Speed        clock.Speed
	TickInterval time.Duration
	// Realtime uses the wall-clock heartbeat. Otherwise simulated time is
	// fast-forwarded to the next scheduled event.
	Realtime     bool
	ApprovalMode string
	Timeout      time.Duration
}

// OptionsFromConfig maps host settings onto run options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Speed:        clock.Speed(cfg.Speed),
		TickInterval: cfg.TickInterval,
		ApprovalMode: cfg.ApprovalMode,
		Timeout:      cfg.RunTimeout,
	}
}

func (o Options) validate() error {
	if !o.Speed.IsValid() {
		return fmt.Errorf("unsupported speed %d: %w", o.Speed, sentinel.ErrInvalidInput)
	}
	if o.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive: %w", sentinel.ErrInvalidInput)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %w", sentinel.ErrInvalidInput)
	}
	switch o.ApprovalMode {
	case config.ApprovalModeApprove, config.ApprovalModeReject, config.ApprovalModeLowRisk:
	default:
		return fmt.Errorf("unknown approval mode %q: %w", o.ApprovalMode, sentinel.ErrInvalidInput)
	}
	return nil
}

// ApprovalOutcome records how the host resolved one approval request.
type ApprovalOutcome struct {
	RequestID   string  `json:"request_id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	RiskLevel   int     `json:"risk_level"`
	Approved    bool    `json:"approved"`
}

// Report summarizes one finished run.
type Report struct {
	RunID                string               `json:"run_id"`
	ScenarioID           string               `json:"scenario_id"`
	ScenarioName         string               `json:"scenario_name"`
	State                engine.State         `json:"state"`
	TimedOut             bool                 `json:"timed_out"`
	SimulatedMs          int64                `json:"simulated_ms"`
	InitialBalance       float64              `json:"initial_balance"`
	Wallet               wallet.Snapshot      `json:"wallet"`
	Counters             scenario.Counters    `json:"counters"`
	Objectives           []scenario.Objective `json:"objectives"`
	CompletionPercentage float64              `json:"completion_percentage"`
	Approvals            []ApprovalOutcome    `json:"approvals"`
	Errors               []string             `json:"errors,omitempty"`
	Actions              []audit.Action       `json:"actions,omitempty"`
}

// Runner drives scenarios to completion with an automatic approver standing
// in for the human.
type Runner struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	db      *sql.DB
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics shares one metrics set across every run.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithActionDB persists action logs to a SQLite database, one run id per run.
func WithActionDB(db *sql.DB) Option {
	return func(r *Runner) {
		r.db = db
	}
}

func New(opts Options, options ...Option) (*Runner, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		opts:   opts,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// RunAll runs scenarios in parallel. Reports keep the input order.
func (r *Runner) RunAll(ctx context.Context, scenarios []scenario.Scenario) ([]Report, error) {
	reports := make([]Report, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range scenarios {
		g.Go(func() error {
			rep, err := r.Run(ctx, s)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.ID, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Run plays one scenario until its objectives complete, its events run out
// or the timeout passes.
func (r *Runner) Run(ctx context.Context, s scenario.Scenario) (Report, error) {
	runID := uuid.NewString()
	store, err := r.actionStore(runID)
	if err != nil {
		return Report{}, err
	}
	pubOpts := []audit.Option{audit.WithLogger(r.logger)}
	if r.db != nil {
		// SQLite writes are kept off the tick path; List flushes before reading.
		pubOpts = append(pubOpts, audit.WithAsyncBuffer(actionBuffer))
	}
	actions := audit.NewPublisher(store, pubOpts...)
	defer actions.Close()

	h := &host{mode: r.opts.ApprovalMode, done: make(chan struct{})}
	wall := time.Now()
	clockOpts := []clock.Option{
		clock.WithSpeed(r.opts.Speed),
		clock.WithTickInterval(r.opts.TickInterval),
		clock.WithLogger(r.logger),
	}
	if !r.opts.Realtime {
		clockOpts = append(clockOpts, clock.WithManualHeartbeat(), clock.WithNow(func() time.Time { return wall }))
	}
	clk := clock.New(nil, clockOpts...)
	q := queue.New()

	eng, err := engine.New(engine.Deps{
		Queue:   q,
		Clock:   clk,
		Ledger:  wallet.NewLedger(),
		Actions: actions,
	},
		engine.WithLogger(r.logger.With("run_id", runID, "scenario_id", s.ID)),
		engine.WithMetrics(r.metrics),
		engine.WithCallbacks(h.callbacks()),
	)
	if err != nil {
		return Report{}, err
	}
	h.engine = eng

	if err := eng.Initialize(ctx, s); err != nil {
		return Report{}, err
	}
	if err := eng.Start(ctx); err != nil {
		return Report{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	finished := func() bool {
		if eng.State() == engine.StateCompleted {
			return true
		}
		_, pending := eng.CurrentApprovalRequest()
		return q.Stats().Pending == 0 && !pending
	}

	if r.opts.Realtime {
		r.waitRealtime(runCtx, h.done, finished)
	} else {
		for !finished() && runCtx.Err() == nil {
			wall = wall.Add(r.step(q, clk))
			clk.Beat(wall)
		}
	}
	timedOut := runCtx.Err() != nil && !finished()

	// The run context may be spent; the report is still collected.
	reportCtx := context.WithoutCancel(ctx)
	eng.Stop(reportCtx)
	return r.report(reportCtx, runID, s, eng, actions, h, timedOut)
}

// step is the wall-clock jump that brings simulated time to the next
// scheduled event, never less than one tick interval.
func (r *Runner) step(q *queue.Queue, clk *clock.Controller) time.Duration {
	step := r.opts.TickInterval
	pending := q.PendingEvents()
	if len(pending) == 0 {
		return step
	}
	gap := pending[0].ScheduledTime - clk.CurrentTime()
	speed := int64(r.opts.Speed)
	if jump := time.Duration((gap+speed-1)/speed) * time.Millisecond; jump > step {
		return jump
	}
	return step
}

func (r *Runner) waitRealtime(ctx context.Context, done <-chan struct{}, finished func() bool) {
	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if finished() {
				return
			}
		}
	}
}

func (r *Runner) actionStore(runID string) (audit.Store, error) {
	if r.db == nil {
		return memory.NewInMemoryStore(), nil
	}
	st, err := sqlite.New(r.db, runID)
	if err != nil {
		return nil, fmt.Errorf("action store: %w", err)
	}
	return st, nil
}

func (r *Runner) report(ctx context.Context, runID string, s scenario.Scenario, eng *engine.Engine, actions *audit.Publisher, h *host, timedOut bool) (Report, error) {
	st := eng.Stats()
	list, err := actions.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list actions: %w", err)
	}
	approvals, errs := h.results()
	rep := Report{
		RunID:                runID,
		ScenarioID:           s.ID,
		ScenarioName:         s.Name,
		State:                st.State,
		TimedOut:             timedOut,
		SimulatedMs:          st.Clock.CurrentTime,
		InitialBalance:       s.InitialBalance,
		Wallet:               st.Wallet,
		Counters:             st.Counters,
		Objectives:           st.Objectives,
		CompletionPercentage: st.CompletionPercentage,
		Approvals:            approvals,
		Actions:              list,
	}
	for _, e := range errs {
		rep.Errors = append(rep.Errors, e.Error())
	}
	r.logger.InfoContext(ctx, "run finished",
		"run_id", runID,
		"scenario_id", s.ID,
		"state", string(st.State),
		"timed_out", timedOut,
		"events", st.Counters.EventsProcessed,
		"errors", len(errs),
	)
	return rep, nil
}

// host answers the engine's callbacks on the user's behalf.
type host struct {
	mode   string
	engine *engine.Engine
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	approvals []ApprovalOutcome
	errs      []error
}

func (h *host) callbacks() engine.Callbacks {
	return engine.Callbacks{
		OnApprovalRequired:   h.resolve,
		OnSimulationComplete: func() { h.once.Do(func() { close(h.done) }) },
		OnError: func(err error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.errs = append(h.errs, err)
		},
	}
}

func (h *host) resolve(req models.ApprovalRequest) {
	approve := Decide(h.mode, req)
	h.mu.Lock()
	h.approvals = append(h.approvals, ApprovalOutcome{
		RequestID:   req.ID,
		Description: req.Description,
		Amount:      req.Amount,
		RiskLevel:   req.RiskLevel,
		Approved:    approve,
	})
	h.mu.Unlock()

	ctx := context.Background()
	if approve {
		h.engine.ApproveRequest(ctx, req.ID)
		return
	}
	h.engine.RejectRequest(ctx, req.ID)
}

func (h *host) results() ([]ApprovalOutcome, []error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.approvals), slices.Clone(h.errs)
}

// Decide applies an approval mode to a request.
func Decide(mode string, req models.ApprovalRequest) bool {
	switch mode {
	case config.ApprovalModeApprove:
		return true
	case config.ApprovalModeLowRisk:
		return req.RiskLevel <= LowRiskCeiling
	}
	return false
}
