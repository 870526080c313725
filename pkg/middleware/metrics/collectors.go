package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsFromRole = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_from_role", Help: "http requests from role"},
		[]string{"role"},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	handlerDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cms_handler_dispatch_total", Help: "internal handler dispatches by handler and result"},
		[]string{"handler", "result"},
	)

	exportOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cms_export_total", Help: "not-found handling by export outcome"},
		[]string{"outcome"},
	)

	exportLockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cms_export_lock_wait_seconds",
			Help:    "time spent waiting for the export lock.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsFromRole,
		totalHttpRequestsToUri,
		totalHttpRequests,
		handlerDispatches,
		exportOutcomes,
		exportLockWait,
	)
}
