// Package metrics instruments ledger boundary calls and account classification.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pbaille/crowd/internal/domain"
)

const namespace = "crowd"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	calls      *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	classified *prometheus.CounterVec
	discarded  prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundary_calls_total",
			Help:      "Ledger boundary calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "boundary_call_duration_seconds",
			Help:      "Ledger boundary call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classified_accounts_total",
			Help:      "Fetched accounts by resolved layout.",
		}, []string{"kind"}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_discarded_total",
			Help:      "Listing results dropped because a newer listing was applied or the session ended.",
		}),
	}
	reg.MustRegister(m.calls, m.latency, m.classified, m.discarded)
	return m
}

// ObserveCall records one boundary call that started at start.
func (m *Metrics) ObserveCall(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveClassified counts one classified account.
func (m *Metrics) ObserveClassified(kind domain.Kind) {
	if m == nil {
		return
	}
	m.classified.WithLabelValues(kind.String()).Inc()
}

// ObserveDiscarded counts one dropped listing result.
func (m *Metrics) ObserveDiscarded() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}
