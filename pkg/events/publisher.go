package events

import "context"

// Bus is the minimal surface the Facade needs from an event bus
// implementation. pkg/eventbus.Bus satisfies it; the facade is defined in
// terms of this narrow interface so it never imports the bus package
// (which itself imports this one).
type Bus interface {
	Publish(ctx context.Context, event DomainEvent) error
	PublishBatch(ctx context.Context, evts []DomainEvent) error
}

// Facade is a thin, typed constructor over a Bus: one method per event
// type, each building the event and its scope and publishing it. Callers
// that only need to emit events, not subscribe, depend on this instead of
// the full bus interface.
type Facade struct {
	bus Bus
}

func NewFacade(bus Bus) *Facade {
	return &Facade{bus: bus}
}

func (f *Facade) ExecutionStarted(ctx context.Context, execID string, payload ExecutionStartedPayload, opts ...Option) error {
	e, err := NewExecutionStarted(Scope{ExecutionID: execID, ParentExecutionID: payload.ParentExec}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

func (f *Facade) ExecutionCompleted(ctx context.Context, execID string, payload ExecutionCompletedPayload, opts ...Option) error {
	e, err := NewExecutionCompleted(Scope{ExecutionID: execID}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

func (f *Facade) ExecutionError(ctx context.Context, execID string, payload ExecutionErrorPayload, opts ...Option) error {
	e, err := NewExecutionError(Scope{ExecutionID: execID, NodeID: payload.FailingNode}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

func (f *Facade) NodeStarted(ctx context.Context, execID, nodeID string, payload NodeStartedPayload, opts ...Option) error {
	e, err := NewNodeStarted(Scope{ExecutionID: execID, NodeID: nodeID}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

func (f *Facade) NodeCompleted(ctx context.Context, execID, nodeID string, payload NodeCompletedPayload, opts ...Option) error {
	e, err := NewNodeCompleted(Scope{ExecutionID: execID, NodeID: nodeID}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

func (f *Facade) NodeError(ctx context.Context, execID, nodeID string, payload NodeErrorPayload, opts ...Option) error {
	e, err := NewNodeError(Scope{ExecutionID: execID, NodeID: nodeID}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

// NodeProgress publishes an intermediate, non-final node output.
func (f *Facade) NodeProgress(ctx context.Context, execID, nodeID string, payload NodeOutputPayload, opts ...Option) error {
	payload.Partial = true
	e, err := NewNodeOutput(Scope{ExecutionID: execID, NodeID: nodeID}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

// ExecutionUpdate publishes a free-form EXECUTION_LOG event used for
// progress narration that doesn't fit another payload shape.
func (f *Facade) ExecutionUpdate(ctx context.Context, execID string, payload ExecutionLogPayload, opts ...Option) error {
	e, err := NewExecutionLog(Scope{ExecutionID: execID}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

func (f *Facade) MetricsCollected(ctx context.Context, execID string, payload MetricsCollectedPayload, opts ...Option) error {
	e, err := NewMetricsCollected(Scope{ExecutionID: execID}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

func (f *Facade) WebhookReceived(ctx context.Context, execID string, payload WebhookReceivedPayload, opts ...Option) error {
	e, err := NewWebhookReceived(Scope{ExecutionID: execID}, payload, opts...)
	if err != nil {
		return err
	}
	return f.bus.Publish(ctx, e)
}

func (f *Facade) PublishBatch(ctx context.Context, evts []DomainEvent) error {
	return f.bus.PublishBatch(ctx, evts)
}
