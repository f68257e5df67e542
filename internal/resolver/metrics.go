// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package resolver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hyperperms/hyperperms/internal/wildcard"
)

// Metrics for permission resolution. Exposing them over HTTP is the host's
// concern; this package only records.
var (
	// resolveDuration tracks the latency of Resolve() calls.
	resolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hyperperms_resolve_duration_seconds",
		Help:    "Histogram of permission resolution latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// checkOutcomes counts permission checks by tri-state result.
	checkOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hyperperms_checks_total",
		Help: "Total number of permission checks by tri-state outcome",
	}, []string{"result"})
)

func observeResolve(duration time.Duration) {
	resolveDuration.Observe(duration.Seconds())
}

func observeCheck(result wildcard.TriState) {
	checkOutcomes.WithLabelValues(result.String()).Inc()
}
