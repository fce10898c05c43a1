package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dipeo/eventplane/pkg/eventbus"
	"github.com/dipeo/eventplane/pkg/events"
)

// emitCmd publishes a synthetic execution lifecycle against a throwaway bus
// so the wiring between event construction, the bus and a demo subscriber
// can be exercised without a real diagram engine, printing a
// checkmark-prefixed status line per event rather than standing up a
// long-running server.
var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Publish a synthetic execution lifecycle and print the events as they're handled",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		bus := eventbus.New(eventbus.Config{})
		defer bus.Stop(ctx)

		watchedTypes := []events.EventType{
			events.ExecutionStarted, events.ExecutionCompleted, events.ExecutionError,
			events.NodeStarted, events.NodeCompleted, events.NodeError,
		}
		sub, err := bus.Subscribe(watchedTypes, func(_ context.Context, e events.DomainEvent) error {
			fmt.Printf("✓ [%s] %s node=%s\n", e.Type, e.Scope.ExecutionID, e.Scope.NodeID)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe demo handler: %w", err)
		}
		defer bus.Unsubscribe(sub)

		execID := uuid.NewString()
		nodeID := "node-1"
		scope := events.Scope{ExecutionID: execID}
		nodeScope := events.Scope{ExecutionID: execID, NodeID: nodeID}

		started, err := events.NewExecutionStarted(scope, events.ExecutionStartedPayload{
			DiagramID: "demo-diagram",
			Variables: map[string]any{"input": "hello"},
			Initiator: "eventd-emit",
		})
		if err != nil {
			return err
		}
		if err := bus.Publish(ctx, started); err != nil {
			return err
		}

		nodeStarted, err := events.NewNodeStarted(nodeScope, events.NodeStartedPayload{
			NodeType: "llm",
			Inputs:   map[string]any{"prompt": "say hello"},
		})
		if err != nil {
			return err
		}
		if err := bus.Publish(ctx, nodeStarted); err != nil {
			return err
		}

		time.Sleep(10 * time.Millisecond)

		nodeCompleted, err := events.NewNodeCompleted(nodeScope, events.NodeCompletedPayload{
			NodeType:    "llm",
			DurationMS:  10,
			TokenUsage:  &events.TokenUsage{Input: 5, Output: 3, Total: 8},
			OutputBrief: "hello!",
		})
		if err != nil {
			return err
		}
		if err := bus.Publish(ctx, nodeCompleted); err != nil {
			return err
		}

		completed, err := events.NewExecutionCompleted(scope, events.ExecutionCompletedPayload{
			Status:        events.StatusCompleted,
			TotalDuration: 10 * time.Millisecond,
			TotalTokens:   8,
			NodeCount:     1,
		})
		if err != nil {
			return err
		}
		if err := bus.Publish(ctx, completed); err != nil {
			return err
		}

		return nil
	},
}
