// Package metrics exposes Prometheus instrumentation for action dispatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RemediationsSubmitted prometheus.Counter
	FallbacksInvoked      prometheus.Counter
	DispatchFailures      *prometheus.CounterVec
	ChecksUpdated         *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		RemediationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftgate_dispatch_remediations_submitted_total",
			Help: "Remediation change requests handed to the SCM collaborator.",
		}),
		FallbacksInvoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "driftgate_dispatch_fallbacks_invoked_total",
			Help: "Fallback handler chains run for opted-out repositories.",
		}),
		DispatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "driftgate_dispatch_failures_total",
			Help: "Per-aspect dispatch failures, isolated from sibling groups.",
		}, []string{"aspect"}),
		ChecksUpdated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "driftgate_dispatch_checks_updated_total",
			Help: "Commit status checks pushed, by conclusion.",
		}, []string{"conclusion"}),
	}
}
