// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quad_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// RedisCommandDuration records Redis round trips by command.
	RedisCommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quad_redis_command_duration_seconds",
		Help:    "Redis command latency",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"command"})

	// CacheLookups counts cache-aside reads by keyspace and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quad_cache_lookups_total",
		Help: "Cache-aside lookups by keyspace and result",
	}, []string{"keyspace", "result"})

	// NotificationsPublished counts realtime events published by event type.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quad_notifications_published_total",
		Help: "Total number of realtime notification events published",
	}, []string{"event_type"})

	// MessageCryptoOps counts message field encryptions and decryptions.
	MessageCryptoOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quad_message_crypto_operations_total",
		Help: "Total number of message fields sealed or opened",
	}, []string{"operation"})

	// MessageDecryptFailures counts stored messages that could not be decrypted.
	MessageDecryptFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quad_message_decrypt_failures_total",
		Help: "Total number of stored messages that failed to decrypt",
	})

	// RecommendationLatency records time spent building recommendation lists.
	RecommendationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quad_recommendation_latency_seconds",
		Help:    "Time spent computing connection recommendations",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// WebSocketConnections is the gauge of active notification sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quad_websocket_connections",
		Help: "Number of active notification WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quad_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// ObserveRecommendation records how long a recommendation lookup took.
// source is "cache" or "computed".
func ObserveRecommendation(source string, start time.Time) {
	RecommendationLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
}
