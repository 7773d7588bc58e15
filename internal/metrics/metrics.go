package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for preprocessing runs. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Fragments by outcome: optimized, unchanged, rejected, malformed
	Fragments *prometheus.CounterVec

	// Annotations dropped by reconciliation
	AnnotationsRemoved prometheus.Counter

	// Style attributes and class tokens dropped by cleanup
	CleanupRemovals *prometheus.CounterVec

	// Result cache lookups by outcome: hit, miss, error
	CacheLookups *prometheus.CounterVec

	// Async jobs by final status
	Jobs *prometheus.CounterVec

	// Duration of one composition through the pipeline
	PreprocessLatency prometheus.Histogram
}

// New registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Fragments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "epiprep_fragments_total",
			Help: "Narrative fragments processed by outcome",
		}, []string{"outcome"}),

		AnnotationsRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "epiprep_annotations_removed_total",
			Help: "HtmlElementLink annotations removed because their class is unused",
		}),

		CleanupRemovals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "epiprep_cleanup_removals_total",
			Help: "Style attributes and class tokens removed by cleanup",
		}, []string{"kind"}), // kind: "style", "class"

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "epiprep_cache_lookups_total",
			Help: "Result cache lookups by outcome",
		}, []string{"outcome"}),

		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "epiprep_jobs_total",
			Help: "Async preprocessing jobs by final status",
		}, []string{"status"}),

		PreprocessLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "epiprep_preprocess_duration_seconds",
			Help:    "Duration of preprocessing one composition",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncFragment records one fragment outcome.
func (m *Metrics) IncFragment(outcome string) {
	if m != nil {
		m.Fragments.WithLabelValues(outcome).Inc()
	}
}

// AddAnnotationsRemoved records dropped annotations.
func (m *Metrics) AddAnnotationsRemoved(n int) {
	if m != nil && n > 0 {
		m.AnnotationsRemoved.Add(float64(n))
	}
}

// AddCleanupRemovals records cleanup removals of one kind.
func (m *Metrics) AddCleanupRemovals(kind string, n int) {
	if m != nil && n > 0 {
		m.CleanupRemovals.WithLabelValues(kind).Add(float64(n))
	}
}

// IncCacheLookup records a cache lookup outcome.
func (m *Metrics) IncCacheLookup(outcome string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(outcome).Inc()
	}
}

// IncJob records a finished async job.
func (m *Metrics) IncJob(status string) {
	if m != nil {
		m.Jobs.WithLabelValues(status).Inc()
	}
}

// ObservePreprocess records how long one composition took.
func (m *Metrics) ObservePreprocess(d time.Duration) {
	if m != nil {
		m.PreprocessLatency.Observe(d.Seconds())
	}
}
