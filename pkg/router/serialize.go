package router

import (
	"time"

	"github.com/dipeo/eventplane/pkg/events"
)

// Serialize renders a DomainEvent to its wire format: a flat envelope with
// the common scope fields and a nested "data" object carrying the payload,
// with the occurrence timestamp repeated inside data for legacy consumers
// that only look there.
func Serialize(event events.DomainEvent) Message {
	msg := Message{
		"type":         string(event.Type),
		"event_type":   string(event.Type),
		"timestamp":    event.OccurredAt.UTC().Format(time.RFC3339Nano),
		"event_id":     event.ID,
		"execution_id": event.Scope.ExecutionID,
	}
	if event.Scope.NodeID != "" {
		msg["node_id"] = event.Scope.NodeID
	}
	if event.Scope.ConnectionID != "" {
		msg["connection_id"] = event.Scope.ConnectionID
	}
	if event.Scope.ParentExecutionID != "" {
		msg["parent_execution_id"] = event.Scope.ParentExecutionID
	}
	if event.CorrelationID != "" {
		msg["correlation_id"] = event.CorrelationID
	}
	msg["data"] = serializePayload(event)
	return msg
}

func serializePayload(event events.DomainEvent) map[string]any {
	data := map[string]any{"timestamp": event.OccurredAt.UTC().Format(time.RFC3339Nano)}
	for k, v := range event.Meta {
		data[k] = v
	}

	switch p := event.Payload.(type) {
	case events.ExecutionStartedPayload:
		data["diagram_id"] = p.DiagramID
		data["variables"] = p.Variables
		data["initiator"] = p.Initiator
		data["parent_execution_id"] = p.ParentExec
		data["status"] = string(events.StatusRunning)

	case events.ExecutionCompletedPayload:
		data["status"] = string(p.Status)
		data["total_duration_ms"] = p.TotalDuration.Milliseconds()
		data["total_tokens"] = p.TotalTokens
		data["node_count"] = p.NodeCount

	case events.ExecutionErrorPayload:
		data["error_message"] = p.ErrorMessage
		data["error_type"] = p.ErrorType
		data["stack"] = p.Stack
		data["failing_node"] = p.FailingNode
		data["status"] = string(events.StatusFailed)

	case events.NodeStartedPayload:
		data["node_type"] = p.NodeType
		data["inputs"] = p.Inputs
		data["iteration"] = p.Iteration
		data["status"] = string(events.StatusRunning)

	case events.NodeCompletedPayload:
		data["node_type"] = p.NodeType
		data["duration_ms"] = p.DurationMS
		data["token_usage"] = p.TokenUsage
		data["output_brief"] = p.OutputBrief
		data["status"] = string(events.StatusCompleted)

	case events.NodeErrorPayload:
		data["error_message"] = p.ErrorMessage
		data["error_type"] = p.ErrorType
		data["retryable"] = p.Retryable
		data["retry_count"] = p.RetryCount
		data["max_retries"] = p.MaxRetries
		data["status"] = string(events.StatusFailed)

	case events.NodeOutputPayload:
		data["value"] = p.Value
		data["partial"] = p.Partial
		data["sequence"] = p.Sequence

	case events.MetricsCollectedPayload:
		data["metrics"] = p.Metrics

	case events.ExecutionLogPayload:
		data["level"] = string(p.Level)
		data["message"] = p.Message
		data["logger_name"] = p.LoggerName
		for k, v := range p.ExtraFields {
			data[k] = v
		}

	case events.OptimizationSuggestedPayload:
		data["suggestion_type"] = p.SuggestionType
		data["message"] = p.Message
		for k, v := range p.Details {
			data[k] = v
		}

	case events.WebhookReceivedPayload:
		data["source"] = p.Source
		data["headers"] = p.Headers

	default:
		// Payload is nil (an event constructed without one) or an
		// unrecognized variant; data already carries timestamp and meta.
	}
	return data
}

// SynthesizeUIEnvelope derives a backward-compatible status-change envelope
// from the lifecycle events the UI historically watched for: NODE_STARTED,
// NODE_COMPLETED, NODE_ERROR, EXECUTION_STARTED, EXECUTION_COMPLETED. Every
// other event type has no corresponding envelope and ok is false.
func SynthesizeUIEnvelope(event events.DomainEvent) (Message, bool) {
	var envelopeType events.EventType
	var status events.Status

	switch event.Type {
	case events.ExecutionStarted:
		envelopeType, status = events.ExecutionStatusChanged, events.StatusRunning
	case events.ExecutionCompleted:
		envelopeType, status = events.ExecutionStatusChanged, events.StatusCompleted
	case events.NodeStarted:
		envelopeType, status = events.NodeStatusChanged, events.StatusRunning
	case events.NodeCompleted:
		envelopeType, status = events.NodeStatusChanged, events.StatusCompleted
	case events.NodeError:
		envelopeType, status = events.NodeStatusChanged, events.StatusFailed
	default:
		return nil, false
	}

	msg := Message{
		"type":         string(envelopeType),
		"event_type":   string(envelopeType),
		"execution_id": event.Scope.ExecutionID,
		"event_id":     event.ID,
		"timestamp":    event.OccurredAt.UTC().Format(time.RFC3339Nano),
		"data": map[string]any{
			"status":    string(status),
			"timestamp": event.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if event.Scope.NodeID != "" {
		msg["node_id"] = event.Scope.NodeID
	}
	return msg, true
}
