package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	reg := NewRegistry()
	events := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "agentsim_test_events_total",
		Help: "test",
	}, []string{"scenario"})
	clock := promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "agentsim_test_time_ms",
		Help: "test",
	})
	promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Name: "agentsim_test_latency_seconds",
		Help: "test",
	}).Observe(0.1)

	events.WithLabelValues("b").Add(2)
	events.WithLabelValues("a").Inc()
	clock.Set(1500)

	lines, err := Summarize(reg, "agentsim_")
	require.NoError(t, err)
	assert.Equal(t, []string{
		`agentsim_test_events_total{scenario="a"} 1`,
		`agentsim_test_events_total{scenario="b"} 2`,
		`agentsim_test_time_ms 1500`,
	}, lines)
}

func TestNewRegistryCollectsRuntime(t *testing.T) {
	families, err := NewRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
