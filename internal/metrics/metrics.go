// Package metrics provides Prometheus metrics for the prediction pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects prediction pipeline metrics in a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PredictionsTotal   *prometheus.CounterVec
	PredictionDuration *prometheus.HistogramVec
	ProviderFailures   *prometheus.CounterVec
	CircuitOpen        *prometheus.GaugeVec
	CacheLookups       *prometheus.CounterVec
	FallbacksTotal     prometheus.Counter
}

// New creates and registers all collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpredictor_predictions_total",
				Help: "Total number of predictions served",
			},
			[]string{"source", "outcome"},
		),
		PredictionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matchpredictor_prediction_duration_seconds",
				Help:    "Time to serve a prediction",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
			},
			[]string{"source"},
		),
		ProviderFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpredictor_provider_failures_total",
				Help: "Failed completion attempts by provider id and failure kind",
			},
			[]string{"provider_id", "kind"},
		),
		CircuitOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matchpredictor_provider_circuit_open",
				Help: "1 while the provider circuit is open",
			},
			[]string{"provider_id"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpredictor_cache_lookups_total",
				Help: "Prediction cache lookups by result",
			},
			[]string{"result"},
		),
		FallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "matchpredictor_fallback_predictions_total",
				Help: "Predictions produced by the form heuristic",
			},
		),
	}

	registry.MustRegister(
		m.PredictionsTotal,
		m.PredictionDuration,
		m.ProviderFailures,
		m.CircuitOpen,
		m.CacheLookups,
		m.FallbacksTotal,
	)

	return m
}

// Registry returns the underlying registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordPrediction records a served prediction
func (m *Metrics) RecordPrediction(source, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(source, outcome).Inc()
	m.PredictionDuration.WithLabelValues(source).Observe(took.Seconds())
}

// RecordProviderFailure records a failed completion attempt
func (m *Metrics) RecordProviderFailure(providerID, kind string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(providerID, kind).Inc()
}

// SetCircuitOpen tracks breaker transitions
func (m *Metrics) SetCircuitOpen(providerID string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitOpen.WithLabelValues(providerID).Set(v)
}

// RecordCacheLookup records a cache hit, miss or error
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordFallback counts a heuristic prediction
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}
