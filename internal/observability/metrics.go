package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the dispatcher and its sinks.
// A nil *Metrics is valid and records nothing, so components can take it
// as an optional dependency.
type Metrics struct {
	registry *prometheus.Registry

	detectRequestsTotal  *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	providerCallErrors   *prometheus.CounterVec
	sinkEventsTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		detectRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "detectext_requests_total",
				Help: "Total detection requests by engine and status",
			},
			[]string{"engine", "status"},
		),
		providerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "detectext_provider_call_duration_seconds",
				Help:    "Remote OCR call duration by provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		providerCallErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "detectext_provider_call_errors_total",
				Help: "Failed remote OCR calls by provider",
			},
			[]string{"provider"},
		),
		sinkEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "detectext_sink_events_total",
				Help: "Archival/notification events by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordRequest counts one detection request.
func (m *Metrics) RecordRequest(engine, status string) {
	if m == nil {
		return
	}
	m.detectRequestsTotal.WithLabelValues(engine, status).Inc()
}

// RecordProviderCall observes one completed provider call.
func (m *Metrics) RecordProviderCall(provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		m.providerCallErrors.WithLabelValues(provider).Inc()
	}
}

// RecordSinkEvent counts one sink outcome (archived, notified, dropped,
// archive_error, notify_error).
func (m *Metrics) RecordSinkEvent(outcome string) {
	if m == nil {
		return
	}
	m.sinkEventsTotal.WithLabelValues(outcome).Inc()
}

// Handler returns a Fiber handler serving the metrics endpoint.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
