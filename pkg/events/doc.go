/*
Package events defines the typed domain event contract shared by every
consumer of diagram execution telemetry: the event bus, the message
router, the metrics and result observers, and the event forwarder.

It intentionally contains no dispatch logic. Dispatch lives in
pkg/eventbus (in-process pub/sub) and pkg/router (client broadcast); this
package only fixes what an event *is* and what predicates can be asked of
one.

# Architecture

	┌──────────────────── EVENT CONTRACTS ─────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │                 DomainEvent                  │          │
	│  │  - Type      (closed EventType enum)        │          │
	│  │  - Scope     (execution/node/connection)    │          │
	│  │  - Payload   (one variant per Type)         │          │
	│  │  - Priority  (LOW|NORMAL|HIGH|CRITICAL)      │          │
	│  │  - CorrelationID / CausationID / Meta       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │ constructed by                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         NewExecutionStarted(...)             │          │
	│  │         NewNodeCompleted(...)                │          │
	│  │         ... one constructor per EventType    │          │
	│  │  Invariants enforced here:                   │          │
	│  │    - execution id required                   │          │
	│  │    - node id required for NODE_* events       │          │
	│  │    - terminal events default to CRITICAL      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │ evaluated by                        │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │                  Filter                      │          │
	│  │                                               │          │
	│  │  ExecutionScopeFilter  - by execution id     │          │
	│  │  NodeScopeFilter       - by node id set      │          │
	│  │  EventTypeFilter       - by type set         │          │
	│  │  CompositeFilter       - AND/OR of filters   │          │
	│  │  SubDiagramFilter      - parent/child scope  │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Closed event types

EXECUTION_STARTED, EXECUTION_COMPLETED, EXECUTION_ERROR,
EXECUTION_STATUS_CHANGED, EXECUTION_LOG, NODE_STARTED, NODE_COMPLETED,
NODE_ERROR, NODE_OUTPUT, NODE_STATUS_CHANGED, METRICS_COLLECTED,
OPTIMIZATION_SUGGESTED, WEBHOOK_RECEIVED. EXECUTION_STATUS_CHANGED and
NODE_STATUS_CHANGED are never constructed by a producer directly — the
router synthesizes them from the other lifecycle events (see pkg/router).

# Facade

Producers that only need to emit events, never subscribe, depend on
Facade rather than the bus directly:

	facade := events.NewFacade(bus)
	err := facade.NodeCompleted(ctx, execID, nodeID, events.NodeCompletedPayload{
		NodeType:   "job",
		DurationMS: 42,
	})

# Integration points

This package is imported by:

  - pkg/eventbus: subscribes handlers to EventTypes, applies Filters
  - pkg/router: serializes DomainEvent to the wire format, synthesizes
    UI envelopes
  - pkg/observers: consumes DomainEvent to build metrics and persist
    terminal status
  - pkg/forwarder: filters and re-emits a subset of types to a remote
    service

# Limitations

No schema versioning; adding a field to a payload variant is a breaking
change for external wire consumers unless the field is additive-only.
No built-in event replay (that lives in pkg/router's buffer) and no
persistence (that lives behind the observers' repository port).
*/
package events
