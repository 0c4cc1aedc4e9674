// Package metrics exposes the Prometheus collectors shared by the HTTP layer,
// the webhook ingestion path and the messaging gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_webhook_events_total",
			Help: "Inbound WhatsApp webhook events by event name and outcome",
		},
		[]string{"event", "outcome"},
	)

	gatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_gateway_calls_total",
			Help: "Outbound calls to the WhatsApp provider by operation and result",
		},
		[]string{"operation", "result"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whatsapp_gateway_call_duration_seconds",
			Help:    "Duration of outbound provider calls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	dealTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_deal_transitions_total",
			Help: "Deal stage transitions by kind (move, won, lost)",
		},
		[]string{"kind"},
	)

	notificationsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_queued_total",
			Help: "Notifications written to the outbox by kind",
		},
		[]string{"kind"},
	)
)

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWebhookEvent counts one processed webhook delivery.
func RecordWebhookEvent(event, outcome string) {
	webhookEvents.WithLabelValues(event, outcome).Inc()
}

// RecordGatewayCall counts one provider call and observes its duration.
func RecordGatewayCall(operation string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayCalls.WithLabelValues(operation, result).Inc()
	gatewayDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// RecordDealTransition counts a pipeline transition.
func RecordDealTransition(kind string) {
	dealTransitions.WithLabelValues(kind).Inc()
}

// RecordNotificationQueued counts a notification written to the outbox.
func RecordNotificationQueued(kind string) {
	notificationsQueued.WithLabelValues(kind).Inc()
}
