// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import "github.com/prometheus/client_golang/prometheus"

// Monitor exposes Prometheus instrumentation for a resolver invocation. A
// nil *Monitor is safe to use: every method becomes a no-op, matching
// internal/db.Monitor's convention so callers that don't care about metrics
// don't need a stub implementation.
type Monitor struct {
	resolveDuration   prometheus.Histogram
	candidatesFound   prometheus.Histogram
	rejectionsByStage *prometheus.CounterVec
}

// NewMonitor builds a Monitor registered under the placement_resolver
// namespace; register it with a prometheus.Registerer separately.
func NewMonitor() *Monitor {
	return &Monitor{
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "placement_resolver_resolve_duration_seconds",
			Help:    "Time spent computing allocation candidates for one request.",
			Buckets: prometheus.DefBuckets,
		}),
		candidatesFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "placement_resolver_resolve_candidates_total",
			Help:    "Number of allocation candidates returned per request.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),
		rejectionsByStage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_resolver_resolve_rejections_total",
			Help: "Count of resolutions that returned zero candidates, by the stage that emptied them (group_empty, merge_empty).",
		}, []string{"stage"}),
	}
}

func (m *Monitor) ObserveResolve(durationSeconds float64, candidates int) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(durationSeconds)
	m.candidatesFound.Observe(float64(candidates))
}

func (m *Monitor) ObserveRejection(stage string) {
	if m == nil {
		return
	}
	m.rejectionsByStage.WithLabelValues(stage).Inc()
}

// Describe implements prometheus.Collector.
func (m *Monitor) Describe(ch chan<- *prometheus.Desc) {
	if m == nil {
		return
	}
	m.resolveDuration.Describe(ch)
	m.candidatesFound.Describe(ch)
	m.rejectionsByStage.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Monitor) Collect(ch chan<- prometheus.Metric) {
	if m == nil {
		return
	}
	m.resolveDuration.Collect(ch)
	m.candidatesFound.Collect(ch)
	m.rejectionsByStage.Collect(ch)
}
