// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Monitor observes how long SELECT queries against the backing store take.
type Monitor struct {
	selectTimer *prometheus.HistogramVec
}

// NewMonitor constructs a Monitor with its collectors ready to register.
func NewMonitor() *Monitor {
	return &Monitor{
		selectTimer: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placement_resolver_db_select_duration_seconds",
			Help:    "Duration of SELECT queries issued by the placement data-access layer.",
			Buckets: prometheus.DefBuckets,
		}, []string{"group"}),
	}
}

// ObserveSelect records the duration of one SELECT under the given group
// label. group is expected to be a short, stable identifier (such as the
// calling Store method's name), never the literal SQL text: callers build
// queries with dynamic WHERE clauses whose text would otherwise blow up the
// metric's cardinality.
func (m *Monitor) ObserveSelect(group string, d time.Duration) {
	if m == nil || m.selectTimer == nil {
		return
	}
	m.selectTimer.WithLabelValues(group).Observe(d.Seconds())
}

// Describe implements prometheus.Collector.
func (m *Monitor) Describe(ch chan<- *prometheus.Desc) {
	m.selectTimer.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Monitor) Collect(ch chan<- prometheus.Metric) {
	m.selectTimer.Collect(ch)
}
