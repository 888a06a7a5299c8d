// Package metrics exposes Prometheus instrumentation for agent runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ToolInvocationsTotal counts tool calls by tool name and outcome.
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cosmoagent",
			Name:      "tool_invocations_total",
			Help:      "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)

	// FallbackAttemptsTotal counts location fallback probes by field and outcome.
	FallbackAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cosmoagent",
			Name:      "fallback_attempts_total",
			Help:      "Total number of location fallback probes",
		},
		[]string{"field", "outcome"},
	)

	// RequestDuration tracks end-to-end question handling latency.
	RequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cosmoagent",
			Name:      "request_duration_seconds",
			Help:      "End-to-end question handling duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(ToolInvocationsTotal)
	prometheus.MustRegister(FallbackAttemptsTotal)
	prometheus.MustRegister(RequestDuration)
}
