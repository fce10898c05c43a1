// Package forwarder implements the event forwarder: a per-execution
// subscriber that drains a bounded internal queue and forwards node- and
// execution-level events to a remote control-plane client, retrying
// transient connection failures with exponential backoff.
package forwarder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/log"
	"github.com/dipeo/eventplane/pkg/metrics"
)

// Client is the remote surface the forwarder drives. Grounded on
// event_forwarder.py's two GraphQL mutations (UpdateNodeState,
// ControlExecution), generalized to an interface so the transport (HTTP,
// gRPC, or an in-process fake for tests) is not fixed by this package.
type Client interface {
	UpdateNodeState(ctx context.Context, executionID, nodeID, status, errMsg string) error
	ControlExecution(ctx context.Context, executionID, action, reason string) error
}

// TransientError wraps a Client error the forwarder should retry (a
// connection failure or timeout), as opposed to a permanent rejection
// that retrying would not fix.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

const (
	maxRetries    = 3
	initialDelay  = 100 * time.Millisecond
	maxDelay      = 1 * time.Second
	queueCapacity = 256
)

// Forwarder subscribes to a single execution's events and forwards the
// node/execution lifecycle subset to Client, retrying transient failures.
type Forwarder struct {
	executionID string
	client      Client
	logger      zerolog.Logger

	queue chan events.DomainEvent

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func New(executionID string, client Client) *Forwarder {
	return &Forwarder{
		executionID: executionID,
		client:      client,
		logger:      log.WithExecutionID(executionID).With().Str("component", "event_forwarder").Logger(),
		queue:       make(chan events.DomainEvent, queueCapacity),
	}
}

func (f *Forwarder) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.done = make(chan struct{})
	done := f.done
	f.mu.Unlock()

	go f.processQueue(done)
	f.logger.Debug().Msg("event forwarder started")
}

// Stop drains any events already queued before returning; it does not
// accept new events once stopping begins.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	done := f.done
	f.mu.Unlock()

	close(f.queue)
	<-done
	f.logger.Debug().Msg("event forwarder stopped")
}

// Handle implements eventbus.Handler. Only events scoped to this
// forwarder's execution id, and only the node/execution lifecycle subset
// the remote client cares about, are queued.
func (f *Forwarder) Handle(ctx context.Context, event events.DomainEvent) error {
	f.mu.Lock()
	running := f.running
	f.mu.Unlock()
	if !running {
		return nil
	}
	if event.Scope.ExecutionID != f.executionID {
		return nil
	}
	if !relevant(event.Type) {
		return nil
	}

	select {
	case f.queue <- event:
	default:
		f.logger.Warn().Str("event_type", string(event.Type)).Msg("forward queue full, dropping event")
	}
	return nil
}

func relevant(t events.EventType) bool {
	switch t {
	case events.NodeStarted, events.NodeCompleted, events.NodeError, events.ExecutionCompleted, events.ExecutionError:
		return true
	default:
		return false
	}
}

func (f *Forwarder) processQueue(done chan struct{}) {
	defer close(done)
	for event := range f.queue {
		f.forwardWithRetry(context.Background(), event)
	}
}

func (f *Forwarder) forwardWithRetry(ctx context.Context, event events.DomainEvent) {
	delay := initialDelay
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := f.forward(ctx, event)
		if err == nil {
			metrics.ForwarderEventsForwardedTotal.WithLabelValues(string(event.Type)).Inc()
			return
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			f.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to forward event")
			return
		}

		if attempt == maxRetries-1 {
			f.logger.Warn().Err(err).Int("attempts", maxRetries).Msg("could not forward event after max retries")
			return
		}
		metrics.ForwarderRetriesTotal.Inc()
		f.logger.Debug().Int("attempt", attempt+1).Msg("retrying event forward")
		time.Sleep(delay)
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, event events.DomainEvent) error {
	switch event.Type {
	case events.ExecutionCompleted:
		return f.client.ControlExecution(ctx, f.executionID, "complete", "Execution completed successfully")
	case events.ExecutionError:
		reason := "Execution failed"
		if payload, ok := event.Payload.(events.ExecutionErrorPayload); ok && payload.ErrorMessage != "" {
			reason = payload.ErrorMessage
		}
		return f.client.ControlExecution(ctx, f.executionID, "abort", reason)
	default:
		return f.forwardNodeEvent(ctx, event)
	}
}

func (f *Forwarder) forwardNodeEvent(ctx context.Context, event events.DomainEvent) error {
	nodeID := event.Scope.NodeID
	if nodeID == "" {
		f.logger.Warn().Str("event_type", string(event.Type)).Msg("event missing node_id in scope, skipping forward")
		return nil
	}

	status, errMsg := nodeStatusAndError(event)
	if status == "" {
		f.logger.Warn().Str("event_type", string(event.Type)).Msg("unknown event type, skipping forward")
		return nil
	}
	return f.client.UpdateNodeState(ctx, f.executionID, nodeID, status, errMsg)
}

func nodeStatusAndError(event events.DomainEvent) (status, errMsg string) {
	switch event.Type {
	case events.NodeStarted:
		return "RUNNING", ""
	case events.NodeCompleted:
		return "COMPLETED", ""
	case events.NodeError:
		if payload, ok := event.Payload.(events.NodeErrorPayload); ok {
			return "FAILED", payload.ErrorMessage
		}
		return "FAILED", ""
	default:
		return "", ""
	}
}
