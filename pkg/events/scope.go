package events

import "strings"

// Scope addresses where an event occurred: the execution it belongs to, an
// optional node within that execution, an optional connection that
// triggered or is targeted by the event, and an optional parent execution
// id for sub-diagrams (a sub-execution id is expected to be lexically
// prefixed by its parent's id, which is what lets the sub-diagram filter
// use a cheap string-prefix test instead of a real ancestry lookup).
type Scope struct {
	ExecutionID       string
	NodeID            string
	ConnectionID      string
	ParentExecutionID string
}

// IsDescendantOf reports whether the scope's execution id is the given
// parent id or a lexical child of it.
func (s Scope) IsDescendantOf(parentExecutionID string) bool {
	return strings.HasPrefix(s.ExecutionID, parentExecutionID)
}
