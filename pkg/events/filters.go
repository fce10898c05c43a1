package events

// Filter is a predicate over a DomainEvent, evaluated at subscription time.
type Filter interface {
	Matches(event DomainEvent) bool
}

// ExecutionScopeFilter matches events scoped to a specific execution,
// optionally including its sub-executions via a lexical prefix match on the
// execution id (see Scope.IsDescendantOf).
type ExecutionScopeFilter struct {
	ExecutionID     string
	IncludeChildren bool
}

func (f ExecutionScopeFilter) Matches(event DomainEvent) bool {
	if event.Scope.ExecutionID == "" {
		return false
	}
	if f.IncludeChildren {
		return event.Scope.IsDescendantOf(f.ExecutionID)
	}
	return event.Scope.ExecutionID == f.ExecutionID
}

// NodeScopeFilter accepts events whose scope has no node id at all (they
// are execution-level, not node-level, and are never excluded by node
// scoping) or whose node id is in the allowed set.
type NodeScopeFilter struct {
	NodeIDs map[string]struct{}
}

func NewNodeScopeFilter(nodeIDs ...string) NodeScopeFilter {
	set := make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		set[id] = struct{}{}
	}
	return NodeScopeFilter{NodeIDs: set}
}

func (f NodeScopeFilter) Matches(event DomainEvent) bool {
	if event.Scope.NodeID == "" {
		return true
	}
	_, ok := f.NodeIDs[event.Scope.NodeID]
	return ok
}

// EventTypeFilter matches events whose type is in the allowed set.
type EventTypeFilter struct {
	AllowedTypes map[EventType]struct{}
}

func NewEventTypeFilter(types ...EventType) EventTypeFilter {
	set := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return EventTypeFilter{AllowedTypes: set}
}

func (f EventTypeFilter) Matches(event DomainEvent) bool {
	_, ok := f.AllowedTypes[event.Type]
	return ok
}

// CompositeFilter combines sub-filters with AND when RequireAll is true and
// with OR when it is false, so the zero value combines with OR. An empty
// filter list always matches.
type CompositeFilter struct {
	Filters    []Filter
	RequireAll bool
}

func (f CompositeFilter) Matches(event DomainEvent) bool {
	if len(f.Filters) == 0 {
		return true
	}
	if f.RequireAll {
		for _, sub := range f.Filters {
			if !sub.Matches(event) {
				return false
			}
		}
		return true
	}
	for _, sub := range f.Filters {
		if sub.Matches(event) {
			return true
		}
	}
	return false
}

// SubDiagramFilter scopes subscriptions created for a sub-diagram run back
// to events belonging to that run (or, if ScopeToExecution is set, to the
// whole parent+children subtree).
type SubDiagramFilter struct {
	ParentExecutionID string
	PropagateToSub    bool
	ScopeToExecution  bool
	AllowedEventTypes map[EventType]struct{} // nil means "all types allowed"
}

func (f SubDiagramFilter) Matches(event DomainEvent) bool {
	if event.Scope.ExecutionID == "" {
		return false
	}

	switch {
	case f.ScopeToExecution:
		if !event.Scope.IsDescendantOf(f.ParentExecutionID) {
			return false
		}
	case !f.PropagateToSub:
		if event.Scope.ExecutionID != f.ParentExecutionID {
			return false
		}
	}

	if f.AllowedEventTypes == nil {
		return true
	}
	_, ok := f.AllowedEventTypes[event.Type]
	return ok
}
