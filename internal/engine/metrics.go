package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Round outcomes, used as the "outcome" label.
const (
	outcomeSynchronized = "synchronized"
	outcomeRefused      = "refused"
	outcomeFailed       = "failed"
)

// Metrics counts synchronization rounds.
type Metrics struct {
	rounds   *prometheus.CounterVec
	events   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates round metrics registered on reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rounds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treesync_sync_rounds_total",
				Help: "Synchronization rounds by outcome.",
			},
			[]string{"outcome"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treesync_sync_events_total",
				Help: "Reconciled atomic events by mapping bucket.",
			},
			[]string{"bucket"},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "treesync_sync_round_duration_seconds",
				Help:    "Duration of successful synchronization rounds.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) observeRound(outcome string, seconds float64) {
	m.rounds.WithLabelValues(outcome).Inc()
	if outcome == outcomeSynchronized {
		m.duration.Observe(seconds)
	}
}

func (m *Metrics) observeMapping(mapped, unmappedRemote, unmappedLocal int) {
	m.events.WithLabelValues("mapped").Add(float64(mapped))
	m.events.WithLabelValues("unmapped_remote").Add(float64(unmappedRemote))
	m.events.WithLabelValues("unmapped_local").Add(float64(unmappedLocal))
}
