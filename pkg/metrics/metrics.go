package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event bus metrics
	BusEventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventplane_bus_events_published_total",
			Help: "Total number of events published by event type",
		},
		[]string{"event_type"},
	)

	BusSubscriptionQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventplane_bus_subscription_queue_depth",
			Help: "Current number of buffered events per subscription",
		},
		[]string{"subscription_id"},
	)

	BusEventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventplane_bus_events_dropped_total",
			Help: "Total number of events dropped due to a full subscription queue",
		},
		[]string{"subscription_id"},
	)

	BusDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventplane_bus_dispatch_duration_seconds",
			Help:    "Time taken to dispatch an event to all matching subscriptions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	// Router metrics
	RouterConnectionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventplane_router_connections_total",
			Help: "Total number of registered client connections",
		},
	)

	RouterBroadcastDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventplane_router_broadcast_duration_seconds",
			Help:    "Time taken to fan a broadcast out to all subscribed connections",
			Buckets: prometheus.DefBuckets,
		},
	)

	RouterConnectionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventplane_router_connection_failures_total",
			Help: "Total number of delivery failures by connection",
		},
		[]string{"connection_id"},
	)

	RouterConnectionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventplane_router_connections_evicted_total",
			Help: "Total number of connections evicted after repeated delivery failures",
		},
	)

	RouterBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventplane_router_batch_size",
			Help:    "Number of events included in a flushed batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Observer metrics
	ObserverAnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventplane_observer_analysis_duration_seconds",
			Help:    "Time taken to analyze a completed execution's metrics",
			Buckets: prometheus.DefBuckets,
		},
	)

	ObserverExecutionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventplane_observer_executions_active",
			Help: "Number of executions currently buffered by the metrics observer",
		},
	)

	ObserverPersistFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventplane_observer_persist_failures_total",
			Help: "Total number of failed attempts to persist execution state",
		},
	)

	// Forwarder metrics
	ForwarderEventsForwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventplane_forwarder_events_forwarded_total",
			Help: "Total number of events successfully forwarded, by event type",
		},
		[]string{"event_type"},
	)

	ForwarderRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventplane_forwarder_retries_total",
			Help: "Total number of forward retry attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(BusEventsPublishedTotal)
	prometheus.MustRegister(BusSubscriptionQueueDepth)
	prometheus.MustRegister(BusEventsDroppedTotal)
	prometheus.MustRegister(BusDispatchDuration)

	prometheus.MustRegister(RouterConnectionsTotal)
	prometheus.MustRegister(RouterBroadcastDuration)
	prometheus.MustRegister(RouterConnectionFailuresTotal)
	prometheus.MustRegister(RouterConnectionsEvictedTotal)
	prometheus.MustRegister(RouterBatchSize)

	prometheus.MustRegister(ObserverAnalysisDuration)
	prometheus.MustRegister(ObserverExecutionsActive)
	prometheus.MustRegister(ObserverPersistFailuresTotal)

	prometheus.MustRegister(ForwarderEventsForwardedTotal)
	prometheus.MustRegister(ForwarderRetriesTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
