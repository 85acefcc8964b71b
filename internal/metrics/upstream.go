package metrics

import "github.com/prometheus/client_golang/prometheus"

// Upstream and gateway domain Prometheus metrics.
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normgate",
			Name:      "upstream_requests_total",
			Help:      "Total number of requests sent to the Infoleg registry",
		},
		[]string{"operation", "status"}, // status: 2xx, 4xx, 5xx, error
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "normgate",
			Name:      "upstream_request_duration_seconds",
			Help:      "Registry request duration in seconds, until response headers",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normgate",
			Name:      "upstream_errors_total",
			Help:      "Total registry errors",
		},
		[]string{"operation", "error_type"}, // unavailable, rejected, malformed
	)

	ResourceResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normgate",
			Name:      "resource_responses_total",
			Help:      "Resource proxy responses by classification",
		},
		[]string{"kind"}, // html / stream
	)

	QuotaRequestsRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "normgate",
			Name:      "quota_requests_remaining",
			Help:      "Remaining upstream request quota (-1 = unlimited)",
		},
		[]string{"period"},
	)

	AnswerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normgate",
			Name:      "answer_requests_total",
			Help:      "Total answer provider requests",
		},
		[]string{"model", "status"},
	)
)

var domainMetricsRegistered bool

// RegisterDomainMetrics registers upstream, resource, quota and answer metrics. Must be called once from main.
func RegisterDomainMetrics() {
	if domainMetricsRegistered {
		return
	}
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(UpstreamErrorsTotal)
	prometheus.MustRegister(ResourceResponsesTotal)
	prometheus.MustRegister(QuotaRequestsRemaining)
	prometheus.MustRegister(AnswerRequestsTotal)
	domainMetricsRegistered = true
}

// StatusClass maps an HTTP status to its metric label.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "error"
	}
}
