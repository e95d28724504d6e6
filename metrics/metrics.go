package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects bracket progression counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	advances     *prometheus.CounterVec
	cascadeDepth prometheus.Histogram
	resets       prometheus.Counter
	tournaments  *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knockout",
			Name:      "advances_total",
			Help:      "Match completions processed, by outcome.",
		}, []string{"outcome"}),
		cascadeDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "knockout",
			Name:      "cascade_depth",
			Help:      "Number of rounds a single completion propagated through.",
			Buckets:   []float64{1, 2, 3, 4},
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "knockout",
			Name:      "downstream_resets_total",
			Help:      "Completed slots whose result was wiped by an upstream correction.",
		}),
		tournaments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knockout",
			Name:      "tournament_events_total",
			Help:      "Tournament lifecycle events.",
		}, []string{"event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knockout",
			Name:      "operation_failures_total",
			Help:      "Failed bracket operations, by error kind.",
		}, []string{"operation", "kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.advances, m.cascadeDepth, m.resets, m.tournaments, m.failures)
	}
	return m
}

func (m *Metrics) ObserveAdvance(outcome string, depth int, resets int) {
	if m == nil {
		return
	}
	m.advances.WithLabelValues(outcome).Inc()
	if depth > 0 {
		m.cascadeDepth.Observe(float64(depth))
	}
	if resets > 0 {
		m.resets.Add(float64(resets))
	}
}

func (m *Metrics) TournamentEvent(event string) {
	if m == nil {
		return
	}
	m.tournaments.WithLabelValues(event).Inc()
}

func (m *Metrics) Failure(operation, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation, kind).Inc()
}
