package main

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dipeo/eventplane/pkg/eventbus"
	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/forwarder"
)

// forwarderManager owns one forwarder.Forwarder per in-flight execution,
// creating it on EXECUTION_STARTED and tearing it down once the execution
// reaches a terminal state: created on start, stopped on completion, not
// held any longer than the execution it serves.
type forwarderManager struct {
	bus    *eventbus.Bus
	client forwarder.Client
	logger zerolog.Logger

	mu         sync.Mutex
	forwarders map[string]*forwarder.Forwarder
	subs       map[string]*eventbus.Subscription
}

func newForwarderManager(bus *eventbus.Bus, client forwarder.Client, logger zerolog.Logger) *forwarderManager {
	return &forwarderManager{
		bus:        bus,
		client:     client,
		logger:     logger,
		forwarders: make(map[string]*forwarder.Forwarder),
		subs:       make(map[string]*eventbus.Subscription),
	}
}

var forwardedEventTypes = []events.EventType{
	events.NodeStarted,
	events.NodeCompleted,
	events.NodeError,
	events.ExecutionCompleted,
	events.ExecutionError,
}

func (m *forwarderManager) Handle(ctx context.Context, event events.DomainEvent) error {
	switch event.Type {
	case events.ExecutionStarted:
		m.start(event.Scope.ExecutionID)
	case events.ExecutionCompleted, events.ExecutionError:
		m.stop(event.Scope.ExecutionID)
	}
	return nil
}

func (m *forwarderManager) start(execID string) {
	if execID == "" {
		return
	}

	m.mu.Lock()
	if _, exists := m.forwarders[execID]; exists {
		m.mu.Unlock()
		return
	}
	fwd := forwarder.New(execID, m.client)
	m.forwarders[execID] = fwd
	m.mu.Unlock()

	fwd.Start()

	sub, err := m.bus.Subscribe(forwardedEventTypes, fwd.Handle,
		eventbus.WithFilter(events.ExecutionScopeFilter{ExecutionID: execID}))
	if err != nil {
		m.logger.Error().Err(err).Str("execution_id", execID).Msg("failed to subscribe forwarder")
		return
	}

	m.mu.Lock()
	m.subs[execID] = sub
	m.mu.Unlock()
}

func (m *forwarderManager) stop(execID string) {
	m.mu.Lock()
	fwd, ok := m.forwarders[execID]
	sub := m.subs[execID]
	delete(m.forwarders, execID)
	delete(m.subs, execID)
	m.mu.Unlock()

	if !ok {
		return
	}
	if sub != nil {
		_ = m.bus.Unsubscribe(sub)
	}
	fwd.Stop()
}

// StopAll stops every forwarder still tracked, used during shutdown.
func (m *forwarderManager) StopAll() {
	m.mu.Lock()
	execIDs := make([]string, 0, len(m.forwarders))
	for execID := range m.forwarders {
		execIDs = append(execIDs, execID)
	}
	m.mu.Unlock()

	for _, execID := range execIDs {
		m.stop(execID)
	}
}
