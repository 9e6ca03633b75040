package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagegate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "usagegate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DecisionsTotal counts engine outcomes per component.
	// component: ratelimit|quota|credits|account
	// outcome: allowed|denied|error
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagegate_decisions_total",
			Help: "Total number of gating decisions by component and outcome.",
		},
		[]string{"component", "outcome"},
	)

	CreditsConsumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "usagegate_credits_consumed_total",
			Help: "Total credits deducted from buckets.",
		},
	)

	BucketsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "usagegate_buckets_expired_total",
			Help: "Total credit buckets transitioned to expired by the read sweep.",
		},
	)

	UsageLogFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "usagegate_usage_log_failures_total",
			Help: "Total usage-log records that could not be published.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DecisionsTotal,
		CreditsConsumedTotal,
		BucketsExpiredTotal,
		UsageLogFailuresTotal,
	)
}
