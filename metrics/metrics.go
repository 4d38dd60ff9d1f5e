// Package metrics exports wizard session events to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbxark/stepform/wizard"
)

var _ wizard.Observer = (*Observer)(nil)

// Observer implements wizard.Observer. One Observer is shared by all sessions
// of a process.
type Observer struct {
	advances    *prometheus.CounterVec
	saveLatency *prometheus.HistogramVec
	staged      *prometheus.CounterVec
	reconciled  *prometheus.CounterVec
	fetchErrors prometheus.Counter
}

// New creates the collectors under namespace and registers them on reg.
func New(reg prometheus.Registerer, namespace string) (*Observer, error) {
	if namespace == "" {
		namespace = "stepform"
	}
	o := &Observer{
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wizard",
			Name:      "advances_total",
			Help:      "Advance attempts by step and outcome.",
		}, []string{"step", "outcome"}),
		saveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wizard",
			Name:      "save_duration_seconds",
			Help:      "Time from advance to the end of a step save, for attempts that reached the gateway.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		staged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uploads",
			Name:      "staged_total",
			Help:      "Files staged per field.",
		}, []string{"field"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "draft",
			Name:      "reconciled_fields_total",
			Help:      "Fields processed while reconciling a fetched draft, by result.",
		}, []string{"result"}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "draft",
			Name:      "fetch_errors_total",
			Help:      "Draft fetches that failed and left the session empty.",
		}),
	}
	for _, c := range []prometheus.Collector{o.advances, o.saveLatency, o.staged, o.reconciled, o.fetchErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) AdvanceFinished(step int, outcome wizard.Outcome, elapsed time.Duration) {
	label := strconv.Itoa(step)
	o.advances.WithLabelValues(label, string(outcome)).Inc()
	switch outcome {
	case wizard.OutcomeSaved, wizard.OutcomeCompleted, wizard.OutcomeFailed:
		o.saveLatency.WithLabelValues(label).Observe(elapsed.Seconds())
	}
}

func (o *Observer) UploadStaged(key string) {
	o.staged.WithLabelValues(key).Inc()
}

func (o *Observer) DraftReconciled(adopted, kept int, err error) {
	if err != nil {
		o.fetchErrors.Inc()
		return
	}
	o.reconciled.WithLabelValues("adopted").Add(float64(adopted))
	o.reconciled.WithLabelValues("kept").Add(float64(kept))
}
