// Package metrics exposes reconciliation counters in Prometheus format.
//
// Each Recorder owns its own registry so tests and multiple services in one
// process never collide on metric names.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reconciler"

// RunStats is what a finished run reports
type RunStats struct {
	DryRun                bool
	Duration              time.Duration
	Candidates            int
	Conflicts             int
	Learned               int
	UnmatchedReceipts     int
	UnmatchedTransactions int
	Skipped               map[string]int // by record kind
	Assignments           []AssignmentStat
}

// AssignmentStat labels one assignment
type AssignmentStat struct {
	Tier     string
	Strategy string
}

// Recorder collects reconciliation metrics
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	assignments *prometheus.CounterVec
	candidates  prometheus.Counter
	conflicts   prometheus.Counter
	skipped     *prometheus.CounterVec
	unmatched   *prometheus.CounterVec
	learned     prometheus.Counter
	aliases     prometheus.Gauge
}

// NewRecorder creates a recorder with a fresh registry that also carries the
// Go runtime and process collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Reconciliation runs by outcome.",
		}, []string{"status", "dry_run"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a reconciliation run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Receipt/transaction assignments by tier and strategy.",
		}, []string{"tier", "strategy"}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Scored candidates that reached the resolver.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Candidates that lost to a better pairing.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_records_total",
			Help:      "Malformed input records skipped, by kind.",
		}, []string{"kind"}),
		unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_total",
			Help:      "Records left unmatched at the end of a run, by kind.",
		}, []string{"kind"}),
		learned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aliases_learned_total",
			Help:      "Alias observations committed by the learn phase.",
		}),
		aliases: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aliases",
			Help:      "Alias keys currently in the table.",
		}),
	}

	r.registry.MustRegister(
		r.runs,
		r.runDuration,
		r.assignments,
		r.candidates,
		r.conflicts,
		r.skipped,
		r.unmatched,
		r.learned,
		r.aliases,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRun records a completed run
func (r *Recorder) ObserveRun(stats RunStats) {
	r.runs.WithLabelValues("completed", boolLabel(stats.DryRun)).Inc()
	r.runDuration.Observe(stats.Duration.Seconds())
	r.candidates.Add(float64(stats.Candidates))
	r.conflicts.Add(float64(stats.Conflicts))
	r.learned.Add(float64(stats.Learned))
	r.unmatched.WithLabelValues("receipt").Add(float64(stats.UnmatchedReceipts))
	r.unmatched.WithLabelValues("transaction").Add(float64(stats.UnmatchedTransactions))
	for kind, n := range stats.Skipped {
		r.skipped.WithLabelValues(kind).Add(float64(n))
	}
	for _, a := range stats.Assignments {
		r.assignments.WithLabelValues(a.Tier, a.Strategy).Inc()
	}
}

// ObserveFailure records a run that did not complete
func (r *Recorder) ObserveFailure(dryRun bool) {
	r.runs.WithLabelValues("failed", boolLabel(dryRun)).Inc()
}

// SetAliasCount updates the alias table size
func (r *Recorder) SetAliasCount(n int) {
	r.aliases.Set(float64(n))
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
