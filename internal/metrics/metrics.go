package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const OutcomeSuccess = "success"

var (
	// DispatchesTotal counts provider calls started by the broker.
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summarist_dispatches_total",
		Help: "Total requests dispatched to a provider.",
	}, []string{"provider", "operation"})

	// RetriesTotal counts rate-limited requests scheduled for another attempt.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summarist_retries_total",
		Help: "Total rate-limited requests re-enqueued with backoff.",
	}, []string{"provider"})

	// ResultsTotal counts delivered results by outcome: success or a failure kind.
	ResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summarist_results_total",
		Help: "Total results delivered to callers.",
	}, []string{"provider", "outcome"})

	ProviderCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "summarist_provider_call_duration_seconds",
		Help:    "Time spent on a single provider round trip.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "summarist_queue_length",
		Help: "Number of jobs waiting for dispatch.",
	})
)
