package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecutionStarted_RequiresExecutionID(t *testing.T) {
	_, err := NewExecutionStarted(Scope{}, ExecutionStartedPayload{DiagramID: "D"})
	assert.Error(t, err)
}

func TestNewNodeStarted_RequiresNodeID(t *testing.T) {
	_, err := NewNodeStarted(Scope{ExecutionID: "E1"}, NodeStartedPayload{NodeType: "job"})
	assert.Error(t, err)
}

func TestNewNodeStarted_OK(t *testing.T) {
	e, err := NewNodeStarted(Scope{ExecutionID: "E1", NodeID: "N1"}, NodeStartedPayload{NodeType: "job"})
	require.NoError(t, err)
	assert.Equal(t, NodeStarted, e.Type)
	assert.Equal(t, PriorityNormal, e.Priority)
	assert.NotEmpty(t, e.ID)
}

func TestTerminalEventsAreCritical(t *testing.T) {
	completed, err := NewExecutionCompleted(Scope{ExecutionID: "E1"}, ExecutionCompletedPayload{Status: StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, completed.Priority)

	failed, err := NewExecutionError(Scope{ExecutionID: "E1"}, ExecutionErrorPayload{ErrorMessage: "boom"})
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, failed.Priority)
}

func TestOptionsOverridePriorityAndCorrelation(t *testing.T) {
	e, err := NewNodeOutput(Scope{ExecutionID: "E1", NodeID: "N1"}, NodeOutputPayload{Sequence: 1},
		WithPriority(PriorityHigh), WithCorrelationID("corr-1"))
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, e.Priority)
	assert.Equal(t, "corr-1", e.CorrelationID)
}
