package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNodeCompleted(t *testing.T, execID, nodeID string) DomainEvent {
	t.Helper()
	e, err := NewNodeCompleted(Scope{ExecutionID: execID, NodeID: nodeID}, NodeCompletedPayload{})
	require.NoError(t, err)
	return e
}

func TestExecutionScopeFilter_IncludeChildren(t *testing.T) {
	f := ExecutionScopeFilter{ExecutionID: "E1", IncludeChildren: true}
	assert.True(t, f.Matches(mustNodeCompleted(t, "E1", "N1")))
	assert.True(t, f.Matches(mustNodeCompleted(t, "E1_batch_3", "N1")))
	assert.False(t, f.Matches(mustNodeCompleted(t, "E2", "N1")))
}

func TestExecutionScopeFilter_ExactOnly(t *testing.T) {
	f := ExecutionScopeFilter{ExecutionID: "E1", IncludeChildren: false}
	assert.True(t, f.Matches(mustNodeCompleted(t, "E1", "N1")))
	assert.False(t, f.Matches(mustNodeCompleted(t, "E1_batch_3", "N1")))
}

func TestNodeScopeFilter(t *testing.T) {
	f := NewNodeScopeFilter("N1", "N2")
	assert.True(t, f.Matches(mustNodeCompleted(t, "E1", "N1")))
	assert.False(t, f.Matches(mustNodeCompleted(t, "E1", "N3")))

	execOnly, err := NewExecutionCompleted(Scope{ExecutionID: "E1"}, ExecutionCompletedPayload{})
	require.NoError(t, err)
	assert.True(t, f.Matches(execOnly), "events with no node id always pass node scoping")
}

func TestCompositeFilter_AndOr(t *testing.T) {
	a := NewEventTypeFilter(NodeCompleted)
	b := NewNodeScopeFilter("N1")

	and := CompositeFilter{Filters: []Filter{a, b}, RequireAll: true}
	assert.True(t, and.Matches(mustNodeCompleted(t, "E1", "N1")))
	assert.False(t, and.Matches(mustNodeCompleted(t, "E1", "N2")))

	or := CompositeFilter{Filters: []Filter{a, b}, RequireAll: false}
	assert.True(t, or.Matches(mustNodeCompleted(t, "E1", "N2")))
}

func TestSubDiagramFilter(t *testing.T) {
	f := SubDiagramFilter{ParentExecutionID: "E1", PropagateToSub: false}
	assert.True(t, f.Matches(mustNodeCompleted(t, "E1", "N1")))
	assert.False(t, f.Matches(mustNodeCompleted(t, "E1_batch_0", "N1")))

	scoped := SubDiagramFilter{ParentExecutionID: "E1", ScopeToExecution: true}
	assert.True(t, scoped.Matches(mustNodeCompleted(t, "E1_batch_0", "N1")))

	typed := SubDiagramFilter{
		ParentExecutionID: "E1",
		PropagateToSub:    true,
		AllowedEventTypes: map[EventType]struct{}{NodeCompleted: {}},
	}
	assert.True(t, typed.Matches(mustNodeCompleted(t, "E1", "N1")))
}
