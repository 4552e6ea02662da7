package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Sync metrics
	WebhookEventsTotal        *prometheus.CounterVec
	WebhookProcessingDuration *prometheus.HistogramVec
	PropagationOutcomesTotal  *prometheus.CounterVec
	GatewayRetriesTotal       *prometheus.CounterVec
	ActivityEntriesPruned     prometheus.Counter
}

// New creates a Metrics instance on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Total number of contact webhook events processed",
			},
			[]string{"event_type", "result"}, // success, failure, duplicate
		),
		WebhookProcessingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webhook_processing_duration_seconds",
				Help:    "Time spent reconciling one webhook event",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"event_type"},
		),
		PropagationOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propagation_outcomes_total",
				Help: "Per-platform results of cross-platform propagation",
			},
			[]string{"integration", "action", "result"},
		),
		GatewayRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_retries_total",
				Help: "Gateway action attempts that were retried",
			},
			[]string{"integration", "action"},
		),
		ActivityEntriesPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "activity_entries_pruned_total",
			Help: "Activity log entries removed by the retention job",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, e.g. /api/v1/contacts/:id

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)

			return err
		}
	}
}

// RecordWebhookEvent counts a processed webhook and its duration
func (m *Metrics) RecordWebhookEvent(eventType, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(eventType, result).Inc()
	m.WebhookProcessingDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordPropagation counts one per-platform propagation outcome
func (m *Metrics) RecordPropagation(integration, action string, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.PropagationOutcomesTotal.WithLabelValues(integration, action, result).Inc()
}

// RecordGatewayRetry counts a retried gateway action
func (m *Metrics) RecordGatewayRetry(integration, action string) {
	if m == nil {
		return
	}
	m.GatewayRetriesTotal.WithLabelValues(integration, action).Inc()
}

// RecordActivityPruned counts entries removed by retention
func (m *Metrics) RecordActivityPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ActivityEntriesPruned.Add(float64(n))
}
