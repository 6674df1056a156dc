// Package metrics exposes Prometheus metrics for the companion core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters and histograms updated per turn.
type Metrics struct {
	// Turn outcomes, labelled generated|fallback|rejected.
	TurnsTotal   *prometheus.CounterVec
	TurnDuration prometheus.Histogram

	// Provider calls, labelled text|image.
	ProviderFailuresTotal *prometheus.CounterVec
	ImagesGeneratedTotal  prometheus.Counter

	// Store health.
	PersistenceFailuresTotal prometheus.Counter
}

// New creates and registers the metric set with reg. Passing nil registers
// against the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companion_turns_total",
				Help: "Total number of conversation turns by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "companion_turn_duration_seconds",
				Help:    "End-to-end duration of a conversation turn",
				Buckets: prometheus.DefBuckets,
			},
		),
		ProviderFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companion_provider_failures_total",
				Help: "External provider calls that failed or timed out",
			},
			[]string{"provider"},
		),
		ImagesGeneratedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "companion_images_generated_total",
				Help: "Scene images successfully produced",
			},
		),
		PersistenceFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "companion_persistence_failures_total",
				Help: "Durable store writes that failed and were swallowed",
			},
		),
	}
}
