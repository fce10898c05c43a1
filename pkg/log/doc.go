/*
Package log provides structured logging for eventd using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout or custom writer          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("eventbus")                │          │
	│  │  - WithNodeID("node-abc123")                │          │
	│  │  - WithExecutionID("exec-xyz")              │          │
	│  │  - WithConnectionID("conn-def456")          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "router",                   │          │
	│  │    "time": "2026-07-30T10:30:00Z",          │          │
	│  │    "message": "connection registered"       │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF connection registered component=router │  │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all eventd packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithNodeID: Add node ID context
  - WithExecutionID: Add execution ID context
  - WithConnectionID: Add connection ID context

# Usage

Initializing the Logger:

	import "github.com/dipeo/eventplane/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("eventd starting")
	log.Debug("polling router connection stats")
	log.Warn("subscription queue nearing capacity")
	log.Error("failed to persist execution state")
	log.Fatal("cannot start without a writable data directory") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("execution_id", "exec-123").
		Int("node_count", 3).
		Msg("execution started")

	log.Logger.Error().
		Err(err).
		Str("connection_id", "conn-abc").
		Msg("broadcast failed")

Context Logger Helpers:

	execLog := log.WithExecutionID("exec-123")
	execLog.Info().Msg("execution completed")

	connLog := log.WithConnectionID("conn-abc")
	connLog.Debug().Msg("event stream subscribed")

	nodeLog := log.WithNodeID("node-1")
	nodeLog.Info().Str("node_type", "llm").Msg("node started")

# Integration Points

This package integrates with:

  - pkg/eventbus: logs dropped events and handler panics
  - pkg/router: logs connection registration and broadcast failures
  - pkg/observers: logs analysis and persistence failures
  - pkg/forwarder: logs forwarding retries and give-ups
  - pkg/transport: logs gRPC stream lifecycle via the logging interceptor
  - cmd/eventd: initializes the logger from --log-level/--log-json and
    hands component loggers to the forwarder; its startup/shutdown banner
    and the emit demo's lines are printed to stdout with fmt

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Consistent error format across the codebase

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
