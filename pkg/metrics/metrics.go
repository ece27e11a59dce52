package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CollectorFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_fetches_total",
			Help: "Total number of source fetch attempts by the collector (count)",
		},
		[]string{"source", "status"},
	)

	CollectorFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_fetch_duration_ms",
			Help:    "Duration of a single source fetch in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"source"},
	)

	CollectorEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_events_total",
			Help: "Total number of price events handled by the collector (count)",
		},
		[]string{"status"},
	)

	MatcherEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_events_total",
			Help: "Total number of price events processed by the matcher (count)",
		},
		[]string{"status"},
	)

	MatcherProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matcher_processing_duration_ms",
			Help:    "Processing duration of one event through the matcher in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"status"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of alert notifications dispatched (count)",
		},
		[]string{"notifier", "status"},
	)

	QueueMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_total",
			Help: "Total number of queue operations (count)",
		},
		[]string{"queue", "operation", "status"},
	)

	QueueMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_message_size_bytes",
			Help:    "Size of queue messages in bytes",
			Buckets: []float64{100, 250, 500, 1000, 5000, 10000},
		},
		[]string{"queue", "direction"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Messages waiting in the queue, per partition (count)",
		},
		[]string{"queue", "partition"},
	)

	QueueConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_connected",
			Help: "Broker session state (1=connected, 0=degraded)",
		},
		[]string{"queue"},
	)

	QueueLocalBufferSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_local_buffer_size",
			Help: "Events held in the local publish buffer while the broker is unreachable (count)",
		},
		[]string{"queue"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	TaskRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_restarts_total",
			Help: "Total number of supervised task restarts after a panic (count)",
		},
		[]string{"task"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"database", "operation"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CollectorFetchesTotal,
			CollectorFetchDuration,
			CollectorEventsTotal,
			MatcherEventsTotal,
			MatcherProcessingDuration,
			NotificationsTotal,
			QueueMessagesTotal,
			QueueMessageSizeBytes,
			QueueDepth,
			QueueConnected,
			QueueLocalBufferSize,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			TaskRestartsTotal,
			DatabaseQueriesTotal,
			DatabaseQueryDuration,
		)
	})
}

func ObserveSourceFetch(source, status string, duration time.Duration) {
	CollectorFetchesTotal.WithLabelValues(source, status).Inc()
	CollectorFetchDuration.WithLabelValues(source).Observe(float64(duration.Milliseconds()))
}

func IncCollectorEvents(status string) {
	CollectorEventsTotal.WithLabelValues(status).Inc()
}

func ObserveMatcherEvent(status string, duration time.Duration) {
	MatcherEventsTotal.WithLabelValues(status).Inc()
	MatcherProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncNotifications(notifier, status string) {
	NotificationsTotal.WithLabelValues(notifier, status).Inc()
}

func IncQueueMessages(queue, operation, status string) {
	QueueMessagesTotal.WithLabelValues(queue, operation, status).Inc()
}

func ObserveQueueMessageSize(queue, direction string, sizeBytes int) {
	QueueMessageSizeBytes.WithLabelValues(queue, direction).Observe(float64(sizeBytes))
}

func SetQueueDepth(queue string, partition int, depth int64) {
	QueueDepth.WithLabelValues(queue, strconv.Itoa(partition)).Set(float64(depth))
}

func SetQueueConnected(queue string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	QueueConnected.WithLabelValues(queue).Set(v)
}

func SetQueueLocalBufferSize(queue string, size int) {
	QueueLocalBufferSize.WithLabelValues(queue).Set(float64(size))
}

func IncTaskRestarts(task string) {
	TaskRestartsTotal.WithLabelValues(task).Inc()
}

func ObserveDatabaseQuery(database, operation, status string, duration time.Duration) {
	DatabaseQueriesTotal.WithLabelValues(database, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(database, operation).Observe(float64(duration.Milliseconds()))
}
