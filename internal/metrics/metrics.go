package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "surge_forecast"

// Recorder holds the service's prometheus collectors.
type Recorder struct {
	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	CacheRequests      *prometheus.CounterVec
	SurgePercent       *prometheus.GaugeVec
	PeakAQI            *prometheus.GaugeVec
	RecommendationCost *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Number of series generations by forecaster and result",
			},
			[]string{"forecaster", "result"}, // "success", "validation_error", "invalid_series", "error"
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Latency of series generation plus summarization",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"forecaster"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Session run lookups by result",
			},
			[]string{"result"}, // "hit", "miss", "stale"
		),
		SurgePercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "surge_percent",
				Help:      "Predicted surge percentage of the latest run per session",
			},
			[]string{"session"},
		),
		PeakAQI: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peak_aqi",
				Help:      "Peak AQI of the latest run per session",
			},
			[]string{"session"},
		),
		RecommendationCost: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "recommendation_cost",
				Help:      "Total cost of the last served recommendation plan per session",
			},
			[]string{"session"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			r.Generations,
			r.GenerationDuration,
			r.CacheRequests,
			r.SurgePercent,
			r.PeakAQI,
			r.RecommendationCost,
		)
	}
	return r
}
