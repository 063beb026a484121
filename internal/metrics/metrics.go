// Package metrics defines the Prometheus collectors for the actor runtime
// and the transport layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Actor runtime metrics
var (
	// ActiveActors tracks the number of live entity actors by kind.
	ActiveActors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actor_active_total",
			Help: "Number of live entity actors by kind",
		},
		[]string{"kind"},
	)

	// ActorMailboxDepth tracks the command channel depth per actor kind.
	ActorMailboxDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actor_mailbox_depth",
			Help: "Current command channel depth by actor kind",
		},
		[]string{"kind"},
	)

	// MutationsTotal tracks committed mutations by actor kind and status.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actor_mutations_total",
			Help: "Total mutations by actor kind and status",
		},
		[]string{"kind", "status"},
	)

	// MutationDuration tracks mutation handling latency in seconds.
	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "actor_mutation_duration_seconds",
			Help:    "Mutation handling duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"kind"},
	)

	// ActorPanicsTotal tracks panics recovered in actor run loops.
	ActorPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "actor_panics_total",
			Help: "Total panics recovered in actor run loops",
		},
	)
)

// Broadcast metrics
var (
	// ConnectedSessions tracks connected WebSocket sessions across all actors.
	ConnectedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_connected_sessions",
			Help: "Total connected WebSocket sessions across all actors",
		},
	)

	// BroadcastsTotal tracks broadcast messages by phase (first, retry, rebroadcast).
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Broadcast deliveries by phase",
		},
		[]string{"phase"},
	)

	// DeadSessionsPruned tracks sessions removed after failed delivery.
	DeadSessionsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_dead_sessions_pruned_total",
			Help: "Sessions removed after send failed on both attempts",
		},
	)

	// BatchFlushesTotal tracks flushed batches.
	BatchFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_batch_flushes_total",
			Help: "Total batch flushes",
		},
	)

	// BatchSize tracks the number of changes per flushed batch.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_batch_size",
			Help:    "Changes per flushed batch",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)
)

// Transport metrics
var (
	// WebSocketMessageSendDuration tracks send latency in seconds.
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// WebSocketPingFailures tracks failed keepalive pings.
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total failed keepalive pings",
		},
	)

	// ConnectionsRejectedTotal tracks rejected upgrades by reason.
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Rejected WebSocket upgrades by reason",
		},
		[]string{"reason"},
	)

	// InboundFramesDropped tracks frames dropped by the per-connection rate limiter.
	InboundFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_inbound_frames_dropped_total",
			Help: "Inbound frames dropped by the rate limiter",
		},
	)
)

// Persistence metrics
var (
	// StoreOpsTotal tracks durable store operations by backend, operation and status.
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Durable store operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)

	// EventLogCircuitState tracks the Redis event log circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	EventLogCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_log_circuit_state",
			Help: "Canvas event log circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Redis client metrics, collected via hooks on every command.
var (
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Redis operations by command and status",
		},
		[]string{"operation", "status"},
	)

	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration by command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Failed Redis connection attempts",
		},
	)

	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)
)
