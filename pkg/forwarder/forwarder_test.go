package forwarder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeo/eventplane/pkg/events"
)

type call struct {
	kind    string // "node" or "control"
	execID  string
	nodeID  string
	status  string
	errMsg  string
	action  string
	reason  string
}

type fakeClient struct {
	mu          sync.Mutex
	calls       []call
	failNTimes  int
	failureKind error
}

func (c *fakeClient) nextErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNTimes > 0 {
		c.failNTimes--
		return c.failureKind
	}
	return nil
}

func (c *fakeClient) UpdateNodeState(ctx context.Context, executionID, nodeID, status, errMsg string) error {
	if err := c.nextErr(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call{kind: "node", execID: executionID, nodeID: nodeID, status: status, errMsg: errMsg})
	return nil
}

func (c *fakeClient) ControlExecution(ctx context.Context, executionID, action, reason string) error {
	if err := c.nextErr(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call{kind: "control", execID: executionID, action: action, reason: reason})
	return nil
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestForwarderFiltersByExecutionID(t *testing.T) {
	client := &fakeClient{}
	f := New("E1", client)
	f.Start()
	defer f.Stop()

	e, err := events.NewNodeStarted(events.Scope{ExecutionID: "OTHER", NodeID: "N1"}, events.NodeStartedPayload{})
	require.NoError(t, err)
	require.NoError(t, f.Handle(context.Background(), e))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, client.callCount())
}

func TestForwarderForwardsNodeLifecycle(t *testing.T) {
	client := &fakeClient{}
	f := New("E1", client)
	f.Start()
	defer f.Stop()

	started, _ := events.NewNodeStarted(events.Scope{ExecutionID: "E1", NodeID: "N1"}, events.NodeStartedPayload{})
	require.NoError(t, f.Handle(context.Background(), started))

	completed, _ := events.NewNodeCompleted(events.Scope{ExecutionID: "E1", NodeID: "N1"}, events.NodeCompletedPayload{})
	require.NoError(t, f.Handle(context.Background(), completed))

	assert.Eventually(t, func() bool { return client.callCount() == 2 }, time.Second, time.Millisecond)
}

func TestForwarderForwardsExecutionCompletion(t *testing.T) {
	client := &fakeClient{}
	f := New("E1", client)
	f.Start()
	defer f.Stop()

	completed, _ := events.NewExecutionCompleted(events.Scope{ExecutionID: "E1"}, events.ExecutionCompletedPayload{})
	require.NoError(t, f.Handle(context.Background(), completed))

	assert.Eventually(t, func() bool { return client.callCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "complete", client.calls[0].action)
}

func TestForwarderRetriesTransientErrors(t *testing.T) {
	client := &fakeClient{failNTimes: 2, failureKind: &TransientError{Err: errors.New("connection refused")}}
	f := New("E1", client)
	f.Start()
	defer f.Stop()

	started, _ := events.NewNodeStarted(events.Scope{ExecutionID: "E1", NodeID: "N1"}, events.NodeStartedPayload{})
	require.NoError(t, f.Handle(context.Background(), started))

	assert.Eventually(t, func() bool { return client.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestForwarderGivesUpOnPermanentError(t *testing.T) {
	client := &fakeClient{failNTimes: 1, failureKind: errors.New("validation failed")}
	f := New("E1", client)
	f.Start()
	defer f.Stop()

	started, _ := events.NewNodeStarted(events.Scope{ExecutionID: "E1", NodeID: "N1"}, events.NodeStartedPayload{})
	require.NoError(t, f.Handle(context.Background(), started))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, client.callCount(), "a non-transient error must not be retried into eventual success")
}

func TestForwarderStopDrainsQueuedEvents(t *testing.T) {
	client := &fakeClient{}
	f := New("E1", client)
	f.Start()

	for i := 0; i < 5; i++ {
		e, _ := events.NewNodeStarted(events.Scope{ExecutionID: "E1", NodeID: "N1"}, events.NodeStartedPayload{})
		require.NoError(t, f.Handle(context.Background(), e))
	}
	f.Stop()

	assert.Equal(t, 5, client.callCount())
}
