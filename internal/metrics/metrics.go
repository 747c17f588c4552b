// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mia-platform/tabingest/internal/pipeline"
)

const (
	namespace = "tabingest"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

var _ pipeline.Recorder = &Metrics{}

// Metrics records batches and runs of the pipelines.
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	batches      *prometheus.CounterVec
	rowsFetched  *prometheus.CounterVec
	rowsAppended *prometheus.CounterVec
	duplicates   *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
}

// New returns a Metrics registered on a new registry together with the go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"dataset"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_committed_total",
			Help:      "Batches appended to the sink and checkpointed.",
		}, []string{"dataset"}),
		rowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Raw records read from the source in committed batches.",
		}, []string{"dataset"}),
		rowsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_appended_total",
			Help:      "Rows appended to the sink.",
		}, []string{"dataset"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Records discarded by deduplication.",
		}, []string{"dataset"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"dataset"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs,
		m.runDuration,
		m.batches,
		m.rowsFetched,
		m.rowsAppended,
		m.duplicates,
		m.lastSuccess,
	)
	return m
}

func (m *Metrics) ObserveBatch(datasetID string, fetched, appended, duplicates int) {
	m.batches.WithLabelValues(datasetID).Inc()
	m.rowsFetched.WithLabelValues(datasetID).Add(float64(fetched))
	m.rowsAppended.WithLabelValues(datasetID).Add(float64(appended))
	m.duplicates.WithLabelValues(datasetID).Add(float64(duplicates))
}

func (m *Metrics) ObserveRun(datasetID string, _ pipeline.RunResult, err error, elapsed time.Duration) {
	m.runDuration.WithLabelValues(datasetID).Observe(elapsed.Seconds())
	if err != nil {
		m.runs.WithLabelValues(datasetID, outcomeFailure).Inc()
		return
	}

	m.runs.WithLabelValues(datasetID, outcomeSuccess).Inc()
	m.lastSuccess.WithLabelValues(datasetID).SetToCurrentTime()
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
