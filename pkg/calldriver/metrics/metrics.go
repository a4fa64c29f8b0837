// Package metrics exposes Prometheus instruments for the classification
// pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "calldriver"

// Metrics groups the pipeline's collectors.
type Metrics struct {
	ticketsClassified *prometheus.CounterVec
	reductionRounds   *prometheus.CounterVec
	otherFraction     prometheus.Gauge
	clustersFound     prometheus.Histogram
	labelAttempts     *prometheus.CounterVec
	labelLatency      *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses a private registry,
// which keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		// Labels: source (rule, taxonomy, cluster, other)
		ticketsClassified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_classified_total",
			Help:      "Tickets by the stage that assigned their final driver",
		}, []string{"source"}),
		// Labels: algorithm (density, partition, none)
		reductionRounds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reduction",
			Name:      "rounds_total",
			Help:      "Other-reduction rounds run, by clustering algorithm",
		}, []string{"algorithm"}),
		otherFraction: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reduction",
			Name:      "other_fraction",
			Help:      "Share of tickets labeled Other after the last round",
		}),
		clustersFound: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reduction",
			Name:      "clusters_found",
			Help:      "Clusters discovered per round",
			Buckets:   []float64{0, 1, 2, 4, 8, 12, 16, 32, 64},
		}),
		// Labels: provider, outcome (ok, error, parse_error, skipped)
		labelAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "label",
			Name:      "attempts_total",
			Help:      "Cluster label attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		labelLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "label",
			Name:      "latency_seconds",
			Help:      "Label provider attempt latency",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
	}
}

// TicketsClassified adds n tickets to the given source.
func (m *Metrics) TicketsClassified(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ticketsClassified.WithLabelValues(source).Add(float64(n))
}

// Round records one reduction round.
func (m *Metrics) Round(algorithm string, clusters int, otherFraction float64) {
	if m == nil {
		return
	}
	m.reductionRounds.WithLabelValues(algorithm).Inc()
	m.clustersFound.Observe(float64(clusters))
	m.otherFraction.Set(otherFraction)
}

// LabelAttempt records one provider attempt and its duration.
func (m *Metrics) LabelAttempt(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.labelAttempts.WithLabelValues(provider, outcome).Inc()
	m.labelLatency.WithLabelValues(provider).Observe(seconds)
}
