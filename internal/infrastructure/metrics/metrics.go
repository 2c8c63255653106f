package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketchat"

var (
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Messages appended to conversations.",
	})

	ConversationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversations_created_total",
		Help:      "Conversations created on first contact.",
	})

	CustomOrders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "custom_orders_total",
		Help:      "Custom order proposals by lifecycle event.",
	}, []string{"event"})

	FulfillmentOrders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fulfillment_orders_total",
		Help:      "Fulfillment order materialization outcomes per item.",
	}, []string{"result"})

	NotificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Notifications that could not be stored.",
	})

	UnreadReconciled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unread_reconciled_total",
		Help:      "Conversations whose unread counters were corrected by reconciliation.",
	})

	WebSocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Open websocket sessions.",
	})
)

func init() {
	prometheus.MustRegister(
		MessagesSent,
		ConversationsCreated,
		CustomOrders,
		FulfillmentOrders,
		NotificationFailures,
		UnreadReconciled,
		WebSocketConnections,
	)
}

// Handler exposes the default registry for echo.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
