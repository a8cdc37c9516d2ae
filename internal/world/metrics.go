package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts tool calls served by a world process.
type Metrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "worldbench",
				Subsystem: "world",
				Name:      "tool_calls_total",
				Help:      "Tool operations invoked, by fully-qualified name.",
			},
			[]string{"tool"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "worldbench",
				Subsystem: "world",
				Name:      "tool_errors_total",
				Help:      "Tool operations that returned an error result.",
			},
			[]string{"tool"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "worldbench",
				Subsystem: "world",
				Name:      "tool_call_duration_seconds",
				Help:      "Time spent inside tool handlers.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
	}
	reg.MustRegister(m.calls, m.errors, m.latency)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(tool string, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(tool).Inc()
	if failed {
		m.errors.WithLabelValues(tool).Inc()
	}
	m.latency.WithLabelValues(tool).Observe(d.Seconds())
}
