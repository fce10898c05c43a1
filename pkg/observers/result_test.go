package observers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeo/eventplane/pkg/events"
)

func TestResultObserverPersistsCompletion(t *testing.T) {
	repo := newFakeRepo(false)
	o := NewResultObserver(repo)

	completed, err := events.NewExecutionCompleted(events.Scope{ExecutionID: "E1"}, events.ExecutionCompletedPayload{})
	require.NoError(t, err)
	require.NoError(t, o.Handle(context.Background(), completed))

	state, err := repo.GetExecution(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, events.StatusCompleted, state.Status)
}

func TestResultObserverForcesPersistenceOnError(t *testing.T) {
	repo := newFakeRepo(true)
	o := NewResultObserver(repo)

	errEvt, err := events.NewExecutionError(events.Scope{ExecutionID: "E1"}, events.ExecutionErrorPayload{ErrorMessage: "boom"})
	require.NoError(t, err)
	require.NoError(t, o.Handle(context.Background(), errEvt))

	state, err := repo.GetExecution(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, events.StatusFailed, state.Status)
	assert.Equal(t, "boom", state.Error)

	repo.mu.Lock()
	assert.True(t, repo.persisted["E1"])
	repo.mu.Unlock()
}

func TestResultObserverErrorWithoutImmediatePersistence(t *testing.T) {
	repo := newFakeRepo(false)
	o := NewResultObserver(repo)

	errEvt, err := events.NewExecutionError(events.Scope{ExecutionID: "E2"}, events.ExecutionErrorPayload{ErrorMessage: "timeout"})
	require.NoError(t, err)
	require.NoError(t, o.Handle(context.Background(), errEvt))

	state, err := repo.GetExecution(context.Background(), "E2")
	require.NoError(t, err)
	assert.Equal(t, events.StatusFailed, state.Status)

	repo.mu.Lock()
	assert.False(t, repo.persisted["E2"])
	repo.mu.Unlock()
}
