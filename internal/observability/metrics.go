package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "verdant"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
	ordersCreated        prometheus.Counter
	orderFailures        *prometheus.CounterVec
	paymentTokens        *prometheus.CounterVec
	paymentNotifications *prometheus.CounterVec
	webhookDuplicates    *prometheus.CounterVec
	sameOriginBlocked    *prometheus.CounterVec
	eventsPublished      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders committed to the database.",
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_create_failures_total",
			Help:      "Order creation attempts that were rejected or failed.",
		}, []string{"reason"}),
		paymentTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_tokens_total",
			Help:      "Payment token requests by provider and result.",
		}, []string{"provider", "result"}),
		paymentNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_notifications_total",
			Help:      "Payment gateway notifications by provider and outcome.",
		}, []string{"provider", "outcome"}),
		webhookDuplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_duplicates_total",
			Help:      "Webhook deliveries skipped because the event was already processed.",
		}, []string{"provider"}),
		sameOriginBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "same_origin_blocked_total",
			Help:      "State-changing requests rejected by the same-origin check.",
		}, []string{"reason"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_published_total",
			Help:      "Order lifecycle events published by type and result.",
		}, []string{"type", "result"}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.ordersCreated,
		m.orderFailures,
		m.paymentTokens,
		m.paymentNotifications,
		m.webhookDuplicates,
		m.sameOriginBlocked,
		m.eventsPublished,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderFailed(reason string) {
	if m == nil {
		return
	}
	m.orderFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) PaymentToken(provider, result string) {
	if m == nil {
		return
	}
	m.paymentTokens.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) PaymentNotification(provider, outcome string) {
	if m == nil {
		return
	}
	m.paymentNotifications.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) WebhookDuplicate(provider string) {
	if m == nil {
		return
	}
	m.webhookDuplicates.WithLabelValues(provider).Inc()
}

func (m *Metrics) SameOriginBlocked(reason string) {
	if m == nil {
		return
	}
	m.sameOriginBlocked.WithLabelValues(reason).Inc()
}

func (m *Metrics) EventPublished(eventType, result string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}

type metricsContextKey struct{}

// WithMetrics returns a context carrying m.
func WithMetrics(ctx context.Context, m *Metrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metricsContextKey{}, m)
}

// MetricsFromContext returns the metrics carried by ctx, or nil.
func MetricsFromContext(ctx context.Context) *Metrics {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(metricsContextKey{}).(*Metrics)
	return m
}
