package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APICallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gramvault_api_calls_total",
		Help: "Outbound calls to the fetcher API by operation and outcome",
	}, []string{"operation", "outcome"})

	APICallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gramvault_api_call_duration_seconds",
		Help:    "Outbound fetcher API call duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	RefreshOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gramvault_refresh_outcomes_total",
		Help: "Profile picture refresh invocations by terminal outcome",
	}, []string{"outcome"})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gramvault_refresh_duration_seconds",
		Help:    "Profile picture refresh duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gramvault_http_latency_seconds",
		Help:    "Inbound request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gramvault_refresh_queue_depth",
		Help: "Pending jobs in the refresh queue at last poll",
	})

	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gramvault_http_in_flight_requests",
		Help: "Inbound requests currently being served",
	})
)
