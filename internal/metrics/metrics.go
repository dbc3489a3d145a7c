package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treinoia_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treinoia_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "treinoia_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treinoia_ai_requests_total",
			Help: "Total number of AI gateway calls by request kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	AIRemoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treinoia_ai_remote_duration_seconds",
			Help:    "Round trip time of the remote completion call.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"kind"},
	)

	QuotaDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treinoia_quota_denied_total",
			Help: "Metered actions blocked by a plan limit.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPInFlight,
		AIRequestsTotal,
		AIRemoteDuration,
		QuotaDeniedTotal,
	)
}
