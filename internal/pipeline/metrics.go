// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus instrumentation for pipeline runs.
type Metrics struct {
	runs     *prometheus.CounterVec
	aborts   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "querygate_runs_total",
		Help: "Pipeline runs by terminal state and query type",
	}, []string{"state", "query_type"})

	aborts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "querygate_aborts_total",
		Help: "Aborted runs by stage and reason",
	}, []string{"stage", "reason"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "querygate_run_duration_seconds",
		Help:    "Wall-clock duration of pipeline runs",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"state"})

	reg.MustRegister(runs)
	reg.MustRegister(aborts)
	reg.MustRegister(duration)

	return &Metrics{runs: runs, aborts: aborts, duration: duration}
}

func (m *Metrics) observe(o Outcome) {
	m.runs.WithLabelValues(string(o.State), o.Type.String()).Inc()
	if o.State == StateAborted {
		m.aborts.WithLabelValues(string(o.Stage), string(o.Reason)).Inc()
	}
	m.duration.WithLabelValues(string(o.State)).Observe(o.Elapsed.Seconds())
}
