/*
Package forwarder implements the event forwarder: it subscribes to one
execution's events and relays the node/execution lifecycle subset to a
remote client, retrying transient failures.

	Handle(event)
	    │  filter: event.Scope.ExecutionID == f.executionID
	    │  filter: event.Type ∈ {NODE_STARTED, NODE_COMPLETED, NODE_ERROR,
	    │                         EXECUTION_COMPLETED, EXECUTION_ERROR}
	    ▼
	queue (bounded, drop-on-full)
	    │
	    ▼
	processQueue (single goroutine, FIFO)
	    │
	    ▼
	forwardWithRetry: up to 3 attempts, 100ms→1s exponential backoff,
	                  retries only on a *TransientError
	    │
	    ▼
	Client.UpdateNodeState / Client.ControlExecution

Stop() closes the queue and waits for processQueue to drain it before
returning, so in-flight events are not silently lost on shutdown.
*/
package forwarder
