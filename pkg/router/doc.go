/*
Package router implements the message router: the broadcast engine that
turns the event bus's internal fan-out into a stream of JSON messages for
external client connections.

	┌───────────────────── MESSAGE ROUTER ──────────────────────┐
	│                                                             │
	│  Handle(event)  ◄── registered as an eventbus.Handler        │
	│       │                                                     │
	│       ├── Serialize(event)          → primary Message        │
	│       └── SynthesizeUIEnvelope(event) → optional UI Message   │
	│              (NODE_STARTED/COMPLETED/ERROR,                   │
	│               EXECUTION_STARTED/COMPLETED only)                │
	│       │                                                     │
	│       ▼                                                     │
	│  BroadcastToExecution(execID, msg)                          │
	│       │                                                     │
	│       ├── bufferEvent   → replay ring buffer (skips "_batch_")│
	│       └── batch enqueue → flush at BatchMax or BatchInterval  │
	│                │                                             │
	│                ▼                                             │
	│         flush(execID): BATCH_UPDATE envelope                  │
	│                │  fan out, one goroutine per connection        │
	│                ▼                                             │
	│         RouteToConnection(connID, msg)                        │
	│           - backpressure check (outstanding vs MaxQueueSize)  │
	│           - latency + moving-average health update            │
	│           - 3 consecutive failures → UnregisterConnection     │
	└─────────────────────────────────────────────────────────────┘

A late-joining connection calls SubscribeConnectionToExecution, which
replays the execution's buffered messages (skipping HEARTBEAT and
CONNECTION_ESTABLISHED) in order before any new broadcast reaches it.

redis.go provides RedisRouter, a cross-process variant that publishes to
a Redis channel ("exec:{execution_id}") instead of delivering locally; a
per-execution subscriber goroutine feeds received messages back through
the embedded Router's ordinary local batching path.

compat.go provides CompatAdapter, a narrower façade for callers that only
need connection registration and broadcast, not the full Router surface.
*/
package router
