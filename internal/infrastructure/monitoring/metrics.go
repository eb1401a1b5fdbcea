package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	EventsLogged         *prometheus.CounterVec
	AlertsDispatched     *prometheus.CounterVec
	EventsEvicted        *prometheus.CounterVec
	RateLimitRejections  *prometheus.CounterVec
	KeyValidations       *prometheus.CounterVec
	CacheOperations      *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	AuditReportDurations prometheus.Histogram
}

// NewMetrics creates and registers the collectors on the default registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsFor registers collectors on a caller-supplied registry. Tests use
// this to avoid duplicate registration across cases.
func NewMetricsFor(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsLogged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_security_events_total",
				Help: "Total number of security events logged.",
			},
			[]string{"type", "severity"},
		),
		AlertsDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_alerts_dispatched_total",
				Help: "Total number of alerts dispatched for high and critical events.",
			},
			[]string{"sink", "result"},
		),
		EventsEvicted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_events_evicted_total",
				Help: "Total number of events removed from the store.",
			},
			[]string{"reason"},
		),
		RateLimitRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_rate_limit_rejections_total",
				Help: "Total number of requests rejected by per-key rate limiting.",
			},
			[]string{"organization_id"},
		),
		KeyValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_api_key_validations_total",
				Help: "Total number of API key validation attempts.",
			},
			[]string{"result"},
		),
		CacheOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_cache_operations_total",
				Help: "Total cache operations by backend and outcome.",
			},
			[]string{"backend", "operation", "result"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_http_requests_total",
				Help: "Total HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuditReportDurations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentinel_audit_report_duration_seconds",
				Help:    "Time spent generating audit reports.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
