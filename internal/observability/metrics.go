package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchday_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchday_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CommentTreeBuildLatency records how long a full comment tree takes to assemble.
	CommentTreeBuildLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchday_comment_tree_build_seconds",
		Help:    "Comment tree build latency in seconds by like lookup mode",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// CommentTreeFailures counts tree builds that surfaced COMMENTS_UNAVAILABLE.
	CommentTreeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchday_comment_tree_failures_total",
		Help: "Total number of comment tree builds that failed",
	})

	// ReportTransitions counts moderation transitions by kind and outcome status.
	ReportTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchday_report_transitions_total",
		Help: "Total number of report status transitions",
	}, []string{"kind", "status"})

	// NotificationsEmitted counts stored notifications by type.
	NotificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchday_notifications_emitted_total",
		Help: "Total number of notifications emitted by type",
	}, []string{"type"})

	// EdgeFunctionCalls counts hosted function calls by function and result.
	EdgeFunctionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchday_edge_function_calls_total",
		Help: "Total number of edge function calls by function and result",
	}, []string{"function", "result"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchday_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchday_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackTreeBuild returns a function that records comment tree build latency.
func TrackTreeBuild(mode string) func() {
	start := time.Now()
	return func() {
		CommentTreeBuildLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}
}
