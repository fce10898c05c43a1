package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/observers"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveExecution(ctx, &observers.ExecutionState{ExecutionID: "E1", Status: events.StatusRunning}))

	got, err := s.GetExecution(ctx, "E1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, events.StatusRunning, got.Status)
}

func TestBoltStoreUpdateStatusCreatesEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateStatus(ctx, "E2", events.StatusFailed, "boom"))

	got, err := s.GetExecution(ctx, "E2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, events.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestBoltStorePersistNowSurvivesCacheEviction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveExecution(ctx, &observers.ExecutionState{ExecutionID: "E3", Status: events.StatusCompleted}))
	require.NoError(t, s.PersistNow(ctx, "E3"))

	s.mu.Lock()
	delete(s.cache, "E3")
	s.mu.Unlock()

	got, err := s.GetExecution(ctx, "E3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, events.StatusCompleted, got.Status)
}

func TestBoltStorePersistNowNoopWithoutDirtyEntry(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.PersistNow(context.Background(), "nonexistent"))
}

func TestBoltStoreImmediatePersistenceCapable(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.ImmediatePersistenceCapable())
}
