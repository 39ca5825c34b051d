package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RealtimeConnections records chat socket dial attempts by result (open|failed|skipped).
	RealtimeConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidylink_realtime_connections_total",
			Help: "Total number of chat socket connection attempts",
		},
		[]string{"result"},
	)

	// RealtimeFrames counts inbound frames by routed kind (message|read|typing|status|error|ignored|invalid).
	RealtimeFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidylink_realtime_frames_total",
			Help: "Total number of inbound chat socket frames",
		},
		[]string{"kind"},
	)

	// RealtimeReconnects counts scheduled reconnect attempts.
	RealtimeReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidylink_realtime_reconnects_total",
			Help: "Total number of scheduled chat socket reconnects",
		},
	)

	// DuplicateMessages counts inserts dropped because the message id was already stored.
	DuplicateMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidylink_store_duplicate_messages_total",
			Help: "Total number of duplicate chat messages ignored by the store",
		},
	)

	// NotificationsClassified counts classifier results by final category.
	NotificationsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidylink_notifications_classified_total",
			Help: "Total number of notifications normalised by category",
		},
		[]string{"category"},
	)

	// UnreadCount exposes the last known unread counters (notifications|messages).
	UnreadCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tidylink_unread_count",
			Help: "Last known unread counter value",
		},
		[]string{"kind"},
	)

	// APILatency measures HTTP request latencies on the dev backend.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tidylink_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
