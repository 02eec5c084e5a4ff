// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics records per-run counters on a private Prometheus registry
// and exports them in the node_exporter textfile format. A nil *Recorder is
// valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalog_engine"

// Recorder holds the metrics of one CLI run.
type Recorder struct {
	reg *prometheus.Registry

	fetchEntries    *prometheus.CounterVec
	fetchRecords    *prometheus.CounterVec
	compactions     *prometheus.CounterVec
	compactAppended prometheus.Counter
	annotations     *prometheus.CounterVec
	scoredItems     *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
}

// New registers every metric on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		fetchEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fetch", Name: "entries_total",
			Help: "Source entries processed, by status.",
		}, []string{"status"}),
		fetchRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fetch", Name: "records_total",
			Help: "Detail documents handled, by outcome (written, existing, invalid).",
		}, []string{"outcome"}),
		compactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "compact", Name: "partitions_total",
			Help: "Partitions compacted, by outcome.",
		}, []string{"outcome"}),
		compactAppended: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "compact", Name: "records_appended_total",
			Help: "Records newly appended to compacted streams.",
		}),
		annotations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "annotate", Name: "items_total",
			Help: "Items handled by the annotation stage, by outcome.",
		}, []string{"outcome"}),
		scoredItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "score", Name: "items_total",
			Help: "Items handled by the scoring stage, by outcome (scored, rejected).",
		}, []string{"outcome"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Wall time of each stage run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"stage"}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// FetchEntry records one finished source entry.
func (r *Recorder) FetchEntry(status string, written, existing, invalid int) {
	if r == nil {
		return
	}
	r.fetchEntries.WithLabelValues(status).Inc()
	r.fetchRecords.WithLabelValues("written").Add(float64(written))
	r.fetchRecords.WithLabelValues("existing").Add(float64(existing))
	r.fetchRecords.WithLabelValues("invalid").Add(float64(invalid))
}

// Compaction records one partition outcome (success, failed, locked, empty).
func (r *Recorder) Compaction(outcome string, appended int) {
	if r == nil {
		return
	}
	r.compactions.WithLabelValues(outcome).Inc()
	r.compactAppended.Add(float64(appended))
}

// Annotation records n items with the given outcome.
func (r *Recorder) Annotation(outcome string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.annotations.WithLabelValues(outcome).Add(float64(n))
}

// Scored records the outcome of a scoring run.
func (r *Recorder) Scored(scored, rejected int) {
	if r == nil {
		return
	}
	r.scoredItems.WithLabelValues("scored").Add(float64(scored))
	r.scoredItems.WithLabelValues("rejected").Add(float64(rejected))
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes the registry to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
