// Package metrics registers the Prometheus instruments for the
// verification pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veriscore_provider_invocations_total",
			Help: "Total provider invocations by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "veriscore_provider_latency_seconds",
			Help: "Provider invocation latency in seconds",
		},
		[]string{"provider"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veriscore_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"provider", "to_state"},
	)

	QuotaDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veriscore_quota_denials_total",
			Help: "Invocations skipped because a rate quota was exhausted",
		},
		[]string{"provider"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veriscore_cache_lookups_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	Verdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veriscore_verdicts_total",
			Help: "Final verdicts emitted, by verdict and degraded flag",
		},
		[]string{"verdict", "degraded"},
	)
)
