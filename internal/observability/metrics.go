package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesTotal counts ledger transitions by target kind and outcome (added, removed, switched).
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_votes_total",
		Help: "Total vote ledger transitions",
	}, []string{"target", "outcome"})

	// VoteConflicts counts vote transactions retried after a conflict.
	VoteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_vote_conflicts_total",
		Help: "Total vote transactions retried after a uniqueness or serialization conflict",
	})

	// RepliesTotal counts reply creations and deletions.
	RepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_replies_total",
		Help: "Total reply mutations",
	}, []string{"operation"})

	// TopicViews counts recorded topic views.
	TopicViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_topic_views_total",
		Help: "Total topic views recorded",
	})

	// ModerationActions counts moderation toggles by action.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_moderation_actions_total",
		Help: "Total moderation actions",
	}, []string{"action"})

	// ChangeEvents counts published change events by kind and delivery result.
	ChangeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_change_events_total",
		Help: "Total change events by kind and result",
	}, []string{"change_kind", "result"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ProfileCacheLookups counts author profile cache lookups by result.
	ProfileCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_profile_cache_lookups_total",
		Help: "Author profile cache lookups by result",
	}, []string{"result"})

	// DatabaseQueryLatency records transaction latency by operation.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_database_query_latency_seconds",
		Help:    "Database transaction latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// WebSocketConnections is the gauge of active change-feed connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agora_websocket_connections",
		Help: "Number of active change-feed websocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_websocket_backpressure_drops_total",
		Help: "Total number of websocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records latency for operation when called (e.g. defer).
func TrackQuery(operation string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
