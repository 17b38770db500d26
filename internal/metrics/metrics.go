// Package metrics defines the Prometheus collectors exported by the Ripple server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ripple_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ripple_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Presence metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ripple_ws_connections",
			Help: "Live websocket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ripple_online_users",
			Help: "Users with at least one live connection",
		},
	)

	// Messaging metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ripple_messages_sent_total",
			Help: "Messages accepted for persistence",
		},
		[]string{"delivery"}, // "live" or "missed"
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ripple_messages_deleted_total",
			Help: "Messages soft-deleted",
		},
	)

	MissedAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ripple_missed_acknowledged_total",
			Help: "Missed-message acknowledgements",
		},
	)

	SendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ripple_send_errors_total",
			Help: "Send-path failures by error code",
		},
		[]string{"code"},
	)
)
