/*
Package metrics provides Prometheus metrics collection and exposition for the
event plane.

The metrics package defines and registers all event-plane metrics using the
Prometheus client library, providing observability into event bus throughput,
router fan-out, observer analysis, and forwarder delivery. Metrics are
exposed via HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (connections)        │          │
	│  │  Counter: Monotonic increases (events)      │          │
	│  │  Histogram: Distributions (latency, batch)  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Bus: Published, dropped, queue depth       │          │
	│  │  Router: Connections, broadcast, evictions  │          │
	│  │  Observer: Analysis duration, persist fails │          │
	│  │  Forwarder: Forwarded events, retries       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Bus Metrics:

eventplane_bus_events_published_total{event_type}:
  - Type: Counter
  - Description: Total events published, by event type
  - Labels: event_type

eventplane_bus_subscription_queue_depth{subscription_id}:
  - Type: Gauge
  - Description: Current buffered event count per subscription
  - Labels: subscription_id

eventplane_bus_events_dropped_total{subscription_id}:
  - Type: Counter
  - Description: Events dropped because a subscription's queue was full
  - Labels: subscription_id

eventplane_bus_dispatch_duration_seconds{event_type}:
  - Type: Histogram
  - Description: Time to dispatch an event to all matching subscriptions
  - Labels: event_type

Router Metrics:

eventplane_router_connections_total:
  - Type: Gauge
  - Description: Total registered client connections

eventplane_router_broadcast_duration_seconds:
  - Type: Histogram
  - Description: Time to fan a broadcast out to all subscribed connections

eventplane_router_connection_failures_total{connection_id}:
  - Type: Counter
  - Description: Delivery failures, by connection
  - Labels: connection_id

eventplane_router_connections_evicted_total:
  - Type: Counter
  - Description: Connections evicted after repeated delivery failures

eventplane_router_batch_size:
  - Type: Histogram
  - Description: Number of events included in a flushed batch
  - Buckets: 1, 5, 10, 25, 50, 100, 250, 500

Observer Metrics:

eventplane_observer_analysis_duration_seconds:
  - Type: Histogram
  - Description: Time to analyze a completed execution's metrics

eventplane_observer_executions_active:
  - Type: Gauge
  - Description: Executions currently buffered by the metrics observer

eventplane_observer_persist_failures_total:
  - Type: Counter
  - Description: Failed attempts to persist execution state

Forwarder Metrics:

eventplane_forwarder_events_forwarded_total{event_type}:
  - Type: Counter
  - Description: Events successfully forwarded, by event type
  - Labels: event_type

eventplane_forwarder_retries_total:
  - Type: Counter
  - Description: Forward retry attempts

# Usage

Updating Gauge Metrics:

	import "github.com/dipeo/eventplane/pkg/metrics"

	metrics.RouterConnectionsTotal.Set(5)
	metrics.ObserverExecutionsActive.Inc()
	metrics.ObserverExecutionsActive.Dec()

Updating Counter Metrics:

	metrics.BusEventsPublishedTotal.WithLabelValues("NODE_STARTED").Inc()
	metrics.ForwarderRetriesTotal.Inc()

Recording Histogram Observations:

	// Direct observation
	metrics.RouterBatchSize.Observe(12)

	// Using Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.ObserverAnalysisDuration)

Using Timer with Labels:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.BusDispatchDuration, "NODE_COMPLETED")

# Integration Points

This package integrates with:

  - pkg/eventbus: Instruments publish/dispatch and queue depth
  - pkg/router: Instruments broadcast duration, batch size, connection health
  - pkg/observers: Instruments analysis duration and persist failures
  - pkg/forwarder: Instruments forwarded events and retries
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels
  - Avoid high-cardinality labels (execution IDs, timestamps)
  - Keep label count low

Timer Pattern:
  - Create timer at operation start
  - Defer or explicitly call ObserveDuration
  - Supports both simple and vector histograms

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
