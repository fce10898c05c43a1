package observers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeo/eventplane/pkg/events"
)

type fakeBus struct {
	mu        sync.Mutex
	published []events.DomainEvent
}

func (b *fakeBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
	return nil
}

func (b *fakeBus) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for _, e := range evts {
		if err := b.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (b *fakeBus) eventsOfType(t events.EventType) []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.DomainEvent
	for _, e := range b.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeRepo struct {
	mu         sync.Mutex
	states     map[string]*ExecutionState
	persisted  map[string]bool
	immediate  bool
}

func newFakeRepo(immediate bool) *fakeRepo {
	return &fakeRepo{states: make(map[string]*ExecutionState), persisted: make(map[string]bool), immediate: immediate}
}

func (r *fakeRepo) GetExecution(ctx context.Context, executionID string) (*ExecutionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[executionID]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (r *fakeRepo) SaveExecution(ctx context.Context, state *ExecutionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.ExecutionID] = state
	return nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, executionID string, status events.Status, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[executionID]
	if !ok {
		s = &ExecutionState{ExecutionID: executionID}
		r.states[executionID] = s
	}
	s.Status = status
	s.Error = errMsg
	return nil
}

func (r *fakeRepo) ImmediatePersistenceCapable() bool { return r.immediate }

func (r *fakeRepo) PersistNow(ctx context.Context, executionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persisted[executionID] = true
	return nil
}

func TestMetricsObserverFullLifecycle(t *testing.T) {
	bus := &fakeBus{}
	repo := newFakeRepo(true)
	o := NewMetricsObserver(bus, repo)
	ctx := context.Background()
	require.NoError(t, repo.SaveExecution(ctx, &ExecutionState{ExecutionID: "E1", Status: events.StatusRunning}))

	started, err := events.NewExecutionStarted(events.Scope{ExecutionID: "E1"}, events.ExecutionStartedPayload{DiagramID: "D"})
	require.NoError(t, err)
	require.NoError(t, o.Handle(ctx, started))

	nodeStarted, err := events.NewNodeStarted(events.Scope{ExecutionID: "E1", NodeID: "N1"}, events.NodeStartedPayload{NodeType: "job"})
	require.NoError(t, err)
	require.NoError(t, o.Handle(ctx, nodeStarted))

	time.Sleep(2 * time.Millisecond)

	nodeCompleted, err := events.NewNodeCompleted(events.Scope{ExecutionID: "E1", NodeID: "N1"}, events.NodeCompletedPayload{DurationMS: 1500})
	require.NoError(t, err)
	require.NoError(t, o.Handle(ctx, nodeCompleted))

	completed, err := events.NewExecutionCompleted(events.Scope{ExecutionID: "E1"}, events.ExecutionCompletedPayload{Status: events.StatusCompleted})
	require.NoError(t, err)
	require.NoError(t, o.Handle(ctx, completed))

	metrics := o.GetExecutionMetrics("E1")
	require.NotNil(t, metrics)
	assert.Equal(t, 1500.0, metrics.NodeMetrics["N1"].DurationMS)
	assert.Contains(t, metrics.Bottlenecks, "N1")

	summary := o.GetMetricsSummary("E1")
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.NodeCount)

	assert.NotEmpty(t, bus.eventsOfType(events.ExecutionLog))

	repo.mu.Lock()
	assert.True(t, repo.persisted["E1"])
	repo.mu.Unlock()
}

func TestMetricsObserverIgnoresUnknownExecution(t *testing.T) {
	o := NewMetricsObserver(nil, nil)
	nodeStarted, err := events.NewNodeStarted(events.Scope{ExecutionID: "ghost", NodeID: "N1"}, events.NodeStartedPayload{NodeType: "job"})
	require.NoError(t, err)
	require.NoError(t, o.Handle(context.Background(), nodeStarted))
	assert.Nil(t, o.GetExecutionMetrics("ghost"))
}

func TestMetricsObserverCapsCompletedHistory(t *testing.T) {
	o := NewMetricsObserver(nil, nil)
	ctx := context.Background()

	for i := 0; i < maxCompletedMetrics+3; i++ {
		execID := string(rune('a' + i))
		started, _ := events.NewExecutionStarted(events.Scope{ExecutionID: execID}, events.ExecutionStartedPayload{})
		require.NoError(t, o.Handle(ctx, started))
		completed, _ := events.NewExecutionCompleted(events.Scope{ExecutionID: execID}, events.ExecutionCompletedPayload{})
		require.NoError(t, o.Handle(ctx, completed))
	}

	o.mu.Lock()
	count := len(o.completed)
	o.mu.Unlock()
	assert.Equal(t, maxCompletedMetrics, count)
}
