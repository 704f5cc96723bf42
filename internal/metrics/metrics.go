package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pairchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pairchat_rooms_created_total",
			Help: "Total pairwise rooms created",
		},
	)

	RoomsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pairchat_rooms_resolved_existing_total",
			Help: "Room lookups that returned an existing room",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairchat_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"kind"}, // "text" or "file"
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pairchat_messages_deleted_total",
			Help: "Total messages deleted",
		},
	)

	ReadReceipts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairchat_read_receipts_total",
			Help: "Read receipt updates by outcome",
		},
		[]string{"result"}, // "applied" or "stale"
	)

	BlockActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairchat_block_actions_total",
			Help: "Block and unblock actions",
		},
		[]string{"action"},
	)

	ObjectDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairchat_object_deletions_total",
			Help: "Best-effort file object deletions by outcome",
		},
		[]string{"result"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairchat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	PostgresTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pairchat_postgres_tx_duration_seconds",
			Help:    "Duration of chat transactions",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"op"},
	)
)
