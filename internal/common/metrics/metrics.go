package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "portal_http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"route"},
	)

	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_proxy_requests_total",
			Help: "Panel proxy requests by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	PanelUpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_panel_upstream_duration_seconds",
			Help:    "Latency of game panel API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_notifications_sent_total",
			Help: "Emails sent by the application dispatcher",
		},
		[]string{"form_type", "kind", "outcome"},
	)

	ApplicationsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_applications_received_total",
			Help: "Application submissions received by form type and outcome",
		},
		[]string{"form_type", "outcome"},
	)
)
