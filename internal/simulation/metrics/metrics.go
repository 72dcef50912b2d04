package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for simulation runs. One instance may be
// shared by several engines; every series carries the scenario id.
type Metrics struct {
	// Events dispatched by type
	EventsProcessed *prometheus.CounterVec

	// Decision verdicts by agent type and action
	Decisions *prometheus.CounterVec

	// Guardrail interventions by constraint
	GuardrailHits *prometheus.CounterVec

	// Human approval resolutions by outcome (approved, rejected, expired)
	Approvals *prometheus.CounterVec

	// Wall-clock time spent dispatching one event
	DispatchLatency *prometheus.HistogramVec

	// Simulated time reached by the run, in milliseconds
	SimulatedTime *prometheus.GaugeVec
}

// New registers the simulation metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		EventsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentsim_events_processed_total",
			Help: "Total simulation events dispatched by type",
		}, []string{"scenario", "type"}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentsim_decisions_total",
			Help: "Total final decisions by agent type and action",
		}, []string{"scenario", "agent_type", "action"}),

		GuardrailHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentsim_guardrail_interventions_total",
			Help: "Total guardrail interventions by constraint",
		}, []string{"scenario", "constraint"}),

		Approvals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentsim_approvals_total",
			Help: "Total approval requests resolved by outcome",
		}, []string{"scenario", "outcome"}), // outcome: "approved", "rejected", "expired"

		DispatchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentsim_dispatch_duration_seconds",
			Help:    "Duration of dispatching one event through the decision pipeline",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"scenario"}),

		SimulatedTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agentsim_simulated_time_ms",
			Help: "Simulated milliseconds elapsed in the run",
		}, []string{"scenario"}),
	}
}

func (m *Metrics) IncrementEvent(scenario, eventType string) {
	if m != nil {
		m.EventsProcessed.WithLabelValues(scenario, eventType).Inc()
	}
}

// IncrementDecision records a final verdict after guardrails and custom rules.
func (m *Metrics) IncrementDecision(scenario, agentType, action string) {
	if m != nil {
		m.Decisions.WithLabelValues(scenario, agentType, action).Inc()
	}
}

func (m *Metrics) IncrementGuardrailHit(scenario, constraint string) {
	if m != nil {
		m.GuardrailHits.WithLabelValues(scenario, constraint).Inc()
	}
}

func (m *Metrics) IncrementApproval(scenario, outcome string) {
	if m != nil {
		m.Approvals.WithLabelValues(scenario, outcome).Inc()
	}
}

func (m *Metrics) ObserveDispatchLatency(scenario string, d time.Duration) {
	if m != nil {
		m.DispatchLatency.WithLabelValues(scenario).Observe(d.Seconds())
	}
}

func (m *Metrics) SetSimulatedTime(scenario string, ms int64) {
	if m != nil {
		m.SimulatedTime.WithLabelValues(scenario).Set(float64(ms))
	}
}
