// Package observers implements the event-sourcing consumers that sit
// downstream of the event bus: metrics collection and analysis, and
// final-state persistence.
package observers

import (
	"context"

	"github.com/dipeo/eventplane/pkg/events"
)

// ExecutionState is the persisted view of a single execution, as read and
// written through StateRepository.
type ExecutionState struct {
	ExecutionID string
	Status      events.Status
	Error       string
	Metrics     *ExecutionMetrics
}

// StateRepository is the storage port observers depend on. A repository
// either supports forcing an immediate durable write or it doesn't, and
// that capability is declared through ImmediatePersistenceCapable rather
// than discovered by probing at runtime.
type StateRepository interface {
	GetExecution(ctx context.Context, executionID string) (*ExecutionState, error)
	SaveExecution(ctx context.Context, state *ExecutionState) error
	UpdateStatus(ctx context.Context, executionID string, status events.Status, errMsg string) error

	// ImmediatePersistenceCapable reports whether PersistNow is meaningful
	// for this repository. A cache-only implementation returns false;
	// PersistNow is then a no-op for it.
	ImmediatePersistenceCapable() bool

	// PersistNow forces a durable write of executionID's current state,
	// bypassing any write-behind buffering. Observers call this on
	// terminal status transitions (COMPLETED, FAILED) where losing the
	// update to a crash between cache-write and flush is unacceptable.
	PersistNow(ctx context.Context, executionID string) error
}
