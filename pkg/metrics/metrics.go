package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts appended conversation messages by sender type (user|vendor).
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_messages_sent_total",
			Help: "Total number of messages appended to service requests",
		},
		[]string{"sender"},
	)

	// OwnershipOutcomes records what a vendor reply did to request ownership (assigned|kept|rejected).
	OwnershipOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_ownership_outcomes_total",
			Help: "Ownership decisions taken on vendor replies",
		},
		[]string{"outcome"},
	)

	// StatusTransitions counts request status changes by target status.
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_status_transitions_total",
			Help: "Service request status transitions",
		},
		[]string{"to"},
	)

	// NotificationsDispatched counts dispatcher results (created|skipped|failed).
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_notifications_dispatched_total",
			Help: "Notification dispatch attempts by result",
		},
		[]string{"type", "result"},
	)

	// LiveSubscriptions tracks open live feeds.
	LiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "directory_live_subscriptions",
			Help: "Number of open live subscriptions",
		},
	)

	// OwnershipRepaired counts requests touched by the ownership repair procedures.
	OwnershipRepaired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_ownership_repaired_total",
			Help: "Requests repaired by ownership backfill or integrity scan",
		},
		[]string{"procedure"},
	)

	// StreamSessions tracks open websocket streams by route.
	StreamSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "directory_stream_sessions",
			Help: "Number of open websocket stream sessions",
		},
		[]string{"route"},
	)

	// RateLimited counts writes rejected by the per-user rate limit.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// APILatency measures HTTP request latencies. Websocket streams are excluded.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directory_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
