package events

import (
	"context"

	"github.com/rs/zerolog"
)

// ExecutionLogHandler attaches to the zerolog hook chain of a per-execution
// child logger and re-emits every record written through it as an
// EXECUTION_LOG domain event. It is the one place log records cross into
// the event stream; everywhere else, logging and events are separate
// channels (see pkg/log for the ambient logger).
type ExecutionLogHandler struct {
	executionID string
	loggerName  string
	publish     func(ctx context.Context, event DomainEvent)
}

func NewExecutionLogHandler(executionID, loggerName string, publish func(ctx context.Context, event DomainEvent)) *ExecutionLogHandler {
	return &ExecutionLogHandler{executionID: executionID, loggerName: loggerName, publish: publish}
}

// Run implements zerolog.Hook. It never returns an error: a failure to
// translate a log record into a domain event must not affect logging
// itself.
func (h *ExecutionLogHandler) Run(e *zerolog.Event, level zerolog.Level, message string) {
	event, err := NewExecutionLog(Scope{ExecutionID: h.executionID}, ExecutionLogPayload{
		Level:      levelFromZerolog(level),
		Message:    message,
		LoggerName: h.loggerName,
	})
	if err != nil {
		return
	}
	h.publish(context.Background(), event)
}

func levelFromZerolog(level zerolog.Level) LogLevel {
	switch level {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return LogDebug
	case zerolog.WarnLevel:
		return LogWarning
	case zerolog.ErrorLevel:
		return LogError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return LogCritical
	default:
		return LogInfo
	}
}
