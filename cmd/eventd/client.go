package main

import (
	"context"

	"github.com/rs/zerolog"
)

// logClient is a stand-in forwarder.Client: it logs the control-plane
// calls the forwarder would otherwise make against a remote diagram
// engine. A real deployment would satisfy forwarder.Client with a gRPC or
// HTTP client against that engine instead.
type logClient struct {
	logger zerolog.Logger
}

func (c *logClient) UpdateNodeState(ctx context.Context, executionID, nodeID, status, errMsg string) error {
	event := c.logger.Info()
	if errMsg != "" {
		event = c.logger.Warn()
	}
	event.Str("execution_id", executionID).
		Str("node_id", nodeID).
		Str("status", status).
		Str("error", errMsg).
		Msg("node state forwarded")
	return nil
}

func (c *logClient) ControlExecution(ctx context.Context, executionID, action, reason string) error {
	c.logger.Info().
		Str("execution_id", executionID).
		Str("action", action).
		Str("reason", reason).
		Msg("execution control forwarded")
	return nil
}
