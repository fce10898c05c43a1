/*
Package observers implements the consumers that sit downstream of the
event bus and do not talk to external connections: metrics collection and
analysis, and final-state persistence.

	EXECUTION_STARTED ──► MetricsObserver.buffer[execID] created
	NODE_STARTED      ──► NodeMetrics recorded, dependency hints captured
	NODE_COMPLETED    ──► duration + token usage recorded
	NODE_ERROR        ──► duration + error recorded
	EXECUTION_COMPLETED
	    │
	    ├─ MetricsAnalyzer.AnalyzeExecution
	    │     bottlenecks, critical path, parallelizable groups
	    │     → EXECUTION_LOG ("metrics collected")
	    │     → OPTIMIZATION_SUGGESTED (if parallelizable groups found)
	    │
	    ├─ timing.Collector.Pop(execID) merged into per-node ModuleTimings
	    │
	    └─ StateRepository.SaveExecution + PersistNow (if capable)

ResultObserver is independent of MetricsObserver: it only tracks the
execution lifecycle far enough to persist COMPLETED/FAILED status,
including the EXECUTION_ERROR path that also covers timeouts.
*/
package observers
