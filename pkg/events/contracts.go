package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is an immutable record of something that happened during
// diagram execution. Every scoped event carries a non-empty execution id
// (invariant 2); every NODE_* event carries a non-empty node id
// (invariant 3). Once constructed a DomainEvent is never mutated.
type DomainEvent struct {
	ID            string
	Type          EventType
	Scope         Scope
	OccurredAt    time.Time
	Payload       any
	Priority      Priority
	CorrelationID string
	CausationID   string
	Meta          map[string]string
}

// Option customizes event construction without widening every constructor's
// signature. Correlation/causation ids, priority and extra metadata are the
// only fields a caller can override; type, scope and payload are fixed by
// the constructor that built the event.
type Option func(*DomainEvent)

func WithCorrelationID(id string) Option {
	return func(e *DomainEvent) { e.CorrelationID = id }
}

func WithCausationID(id string) Option {
	return func(e *DomainEvent) { e.CausationID = id }
}

func WithMeta(meta map[string]string) Option {
	return func(e *DomainEvent) { e.Meta = meta }
}

func WithPriority(p Priority) Option {
	return func(e *DomainEvent) { e.Priority = p }
}

func newEvent(t EventType, scope Scope, payload any, opts []Option) (DomainEvent, error) {
	if scope.ExecutionID == "" {
		return DomainEvent{}, fmt.Errorf("events: %s requires a non-empty execution id", t)
	}
	e := DomainEvent{
		ID:         uuid.NewString(),
		Type:       t,
		Scope:      scope,
		OccurredAt: time.Now(),
		Payload:    payload,
		Priority:   PriorityNormal,
	}
	if t.terminal() {
		e.Priority = PriorityCritical
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e, nil
}

func newNodeEvent(t EventType, scope Scope, payload any, opts []Option) (DomainEvent, error) {
	if scope.NodeID == "" {
		return DomainEvent{}, fmt.Errorf("events: %s requires a non-empty node id", t)
	}
	return newEvent(t, scope, payload, opts)
}

// ExecutionStartedPayload carries the essential fields for the start of an
// execution: which diagram, what variables it was seeded with, who
// initiated it, and (for sub-diagrams) the parent execution.
type ExecutionStartedPayload struct {
	DiagramID  string
	Variables  map[string]any
	Initiator  string
	ParentExec string
}

func NewExecutionStarted(scope Scope, payload ExecutionStartedPayload, opts ...Option) (DomainEvent, error) {
	return newEvent(ExecutionStarted, scope, payload, opts)
}

// ExecutionCompletedPayload reports the terminal success state of a run.
type ExecutionCompletedPayload struct {
	Status        Status
	TotalDuration time.Duration
	TotalTokens   int
	NodeCount     int
}

func NewExecutionCompleted(scope Scope, payload ExecutionCompletedPayload, opts ...Option) (DomainEvent, error) {
	return newEvent(ExecutionCompleted, scope, payload, opts)
}

// ExecutionErrorPayload reports the terminal failure state of a run.
type ExecutionErrorPayload struct {
	ErrorMessage string
	ErrorType    string
	Stack        string
	FailingNode  string
}

func NewExecutionError(scope Scope, payload ExecutionErrorPayload, opts ...Option) (DomainEvent, error) {
	return newEvent(ExecutionError, scope, payload, opts)
}

// NodeStartedPayload captures what a node was invoked with.
type NodeStartedPayload struct {
	NodeType  string
	Inputs    map[string]any
	Iteration int
}

func NewNodeStarted(scope Scope, payload NodeStartedPayload, opts ...Option) (DomainEvent, error) {
	return newNodeEvent(NodeStarted, scope, payload, opts)
}

// TokenUsage is the input/output/total token accounting attached to node
// completion events that involved an LLM call.
type TokenUsage struct {
	Input  int
	Output int
	Total  int
}

// NodeCompletedPayload captures a node's terminal success state.
type NodeCompletedPayload struct {
	NodeType     string
	DurationMS   float64
	TokenUsage   *TokenUsage
	OutputBrief  string
}

func NewNodeCompleted(scope Scope, payload NodeCompletedPayload, opts ...Option) (DomainEvent, error) {
	return newNodeEvent(NodeCompleted, scope, payload, opts)
}

// NodeErrorPayload captures a node's terminal failure state.
type NodeErrorPayload struct {
	ErrorMessage string
	ErrorType    string
	Retryable    bool
	RetryCount   int
	MaxRetries   int
}

func NewNodeError(scope Scope, payload NodeErrorPayload, opts ...Option) (DomainEvent, error) {
	return newNodeEvent(NodeError, scope, payload, opts)
}

// NodeOutputPayload streams an intermediate or final output value.
type NodeOutputPayload struct {
	Value    any
	Partial  bool
	Sequence int
}

func NewNodeOutput(scope Scope, payload NodeOutputPayload, opts ...Option) (DomainEvent, error) {
	return newNodeEvent(NodeOutput, scope, payload, opts)
}

// MetricsCollectedPayload wraps a snapshot of aggregated metrics, in the
// generic mapping form used on the wire (see pkg/observers for the typed
// in-process representation).
type MetricsCollectedPayload struct {
	Metrics map[string]any
}

func NewMetricsCollected(scope Scope, payload MetricsCollectedPayload, opts ...Option) (DomainEvent, error) {
	return newEvent(MetricsCollected, scope, payload, opts)
}

// ExecutionLogPayload carries a single log record re-emitted as a domain
// event (see events.ExecutionLogHandler).
type ExecutionLogPayload struct {
	Level       LogLevel
	Message     string
	LoggerName  string
	ExtraFields map[string]any
}

func NewExecutionLog(scope Scope, payload ExecutionLogPayload, opts ...Option) (DomainEvent, error) {
	return newEvent(ExecutionLog, scope, payload, opts)
}

// OptimizationSuggestedPayload carries a suggestion emitted by the metrics
// analyzer, such as a parallelization opportunity.
type OptimizationSuggestedPayload struct {
	SuggestionType string
	Message        string
	Details        map[string]any
}

func NewOptimizationSuggested(scope Scope, payload OptimizationSuggestedPayload, opts ...Option) (DomainEvent, error) {
	return newEvent(OptimizationSuggested, scope, payload, opts)
}

// WebhookReceivedPayload captures an inbound webhook that triggered or
// influenced the execution.
type WebhookReceivedPayload struct {
	Source  string
	Headers map[string]string
	Body    []byte
}

func NewWebhookReceived(scope Scope, payload WebhookReceivedPayload, opts ...Option) (DomainEvent, error) {
	return newEvent(WebhookReceived, scope, payload, opts)
}
