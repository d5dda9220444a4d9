// Package metrics holds the Prometheus instruments for document assembly.
// Every method is safe on a nil *Metrics so components can run unmetered.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reportpdf"

// Metrics contains the Prometheus metrics for assembly runs and their factories.
type Metrics struct {
	// RunsStarted counts workflow runs started.
	RunsStarted prometheus.Counter

	// RunsFinished counts workflow runs by outcome ("done", "error", "aborted").
	RunsFinished *prometheus.CounterVec

	// RunDuration observes the duration of successful runs in seconds.
	RunDuration prometheus.Histogram

	// FragmentsProduced counts fragments by group.
	FragmentsProduced *prometheus.CounterVec

	// PageCountRetries counts page count attempts that failed and were retried.
	PageCountRetries prometheus.Counter

	// PagesAssembled counts pages written to merged outputs.
	PagesAssembled prometheus.Counter

	// AttachmentPlaceholders counts image attachments replaced by the placeholder.
	AttachmentPlaceholders prometheus.Counter
}

// New registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Workflow runs started.",
		}),
		RunsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Workflow runs finished, by outcome.",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of successful workflow runs.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		FragmentsProduced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_produced_total",
			Help:      "Fragments rendered or fetched, by group.",
		}, []string{"group"}),
		PageCountRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_count_retries_total",
			Help:      "Failed page count attempts that were retried.",
		}),
		PagesAssembled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_assembled_total",
			Help:      "Pages written to merged outputs.",
		}),
		AttachmentPlaceholders: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_placeholders_total",
			Help:      "Image attachments replaced by the placeholder image.",
		}),
	}
}

// Outcomes reported through RunFinished.
const (
	OutcomeDone    = "done"
	OutcomeError   = "error"
	OutcomeAborted = "aborted"
)

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsStarted.Inc()
}

// RunFinished records the outcome; the duration is only observed for OutcomeDone.
func (m *Metrics) RunFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsFinished.WithLabelValues(outcome).Inc()
	if outcome == OutcomeDone {
		m.RunDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) FragmentProduced(group string) {
	if m == nil {
		return
	}
	m.FragmentsProduced.WithLabelValues(group).Inc()
}

func (m *Metrics) PageCountRetried() {
	if m == nil {
		return
	}
	m.PageCountRetries.Inc()
}

func (m *Metrics) Pages(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PagesAssembled.Add(float64(n))
}

func (m *Metrics) PlaceholderUsed() {
	if m == nil {
		return
	}
	m.AttachmentPlaceholders.Inc()
}
