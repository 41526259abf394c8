package metrics

import (
	"time"

	"github.com/jayjaytrn/storefront-checkout/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Notifications   *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	GatewayRequests *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Payment notifications handled, by outcome.",
		}, []string{"outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transitions applied.",
		}, []string{"from", "to"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Calls to the payment gateway, by operation and result.",
		}, []string{"operation", "result"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_seconds",
			Help:      "Payment gateway call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(m.Notifications, m.Transitions, m.GatewayRequests, m.GatewayLatency)
	return m
}

func (m *Metrics) Notification(outcome models.NotificationOutcome) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) Transition(from, to models.OrderStatus) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) GatewayRequest(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(operation, result).Inc()
	m.GatewayLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}
