package observers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dipeo/eventplane/pkg/events"
)

func TestAnalyzeExecutionIdentifiesBottlenecks(t *testing.T) {
	bus := &fakeBus{}
	a := NewMetricsAnalyzer(bus, 1000)

	metrics := newExecutionMetrics("E1", 0)
	metrics.NodeMetrics["slow"] = &NodeMetrics{NodeID: "slow", NodeType: "job", StartTime: 0, DurationMS: 2000}
	metrics.NodeMetrics["fast"] = &NodeMetrics{NodeID: "fast", NodeType: "job", StartTime: 1, DurationMS: 10}

	a.AnalyzeExecution(context.Background(), metrics, events.Scope{ExecutionID: "E1"})

	assert.Equal(t, []string{"slow"}, metrics.Bottlenecks)
	assert.Equal(t, []string{"slow", "fast"}, metrics.CriticalPath)
	assert.NotEmpty(t, bus.eventsOfType(events.ExecutionLog))
}

func TestCalculateCriticalPathBreaksTiesBySequence(t *testing.T) {
	a := NewMetricsAnalyzer(nil, 1000)
	metrics := newExecutionMetrics("E1", 0)
	// All three nodes share a StartTime; only Sequence (insertion order)
	// should determine the output order, run after run.
	metrics.NodeMetrics["n1"] = &NodeMetrics{NodeID: "n1", StartTime: 5, Sequence: 2}
	metrics.NodeMetrics["n2"] = &NodeMetrics{NodeID: "n2", StartTime: 5, Sequence: 0}
	metrics.NodeMetrics["n3"] = &NodeMetrics{NodeID: "n3", StartTime: 5, Sequence: 1}

	for i := 0; i < 5; i++ {
		path := a.calculateCriticalPath(metrics)
		assert.Equal(t, []string{"n2", "n3", "n1"}, path)
	}
}

func TestFindParallelizableNodesGroupsIndependentNodes(t *testing.T) {
	a := NewMetricsAnalyzer(nil, 1000)
	metrics := newExecutionMetrics("E1", 0)
	metrics.NodeMetrics["a"] = &NodeMetrics{NodeID: "a", StartTime: 0, DurationMS: 100}
	metrics.NodeMetrics["b"] = &NodeMetrics{NodeID: "b", StartTime: 1, DurationMS: 100}
	metrics.NodeMetrics["c"] = &NodeMetrics{NodeID: "c", StartTime: 2, DurationMS: 100}

	a.SetNodeDependencies("E1", map[string]map[string]struct{}{
		"c": {"a": struct{}{}, "b": struct{}{}},
	})

	groups := a.findParallelizableNodes(metrics)
	assert.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, groups[0])
}

func TestEmitOptimizationSuggestionsSkippedWhenNoGroups(t *testing.T) {
	bus := &fakeBus{}
	a := NewMetricsAnalyzer(bus, 1000)
	metrics := newExecutionMetrics("E1", 0)

	a.emitOptimizationSuggestions(context.Background(), metrics, events.Scope{ExecutionID: "E1"})
	assert.Empty(t, bus.eventsOfType(events.OptimizationSuggested))
}

func TestEstimateParallelSavings(t *testing.T) {
	a := NewMetricsAnalyzer(nil, 1000)
	metrics := newExecutionMetrics("E1", 0)
	metrics.NodeMetrics["a"] = &NodeMetrics{NodeID: "a", DurationMS: 100}
	metrics.NodeMetrics["b"] = &NodeMetrics{NodeID: "b", DurationMS: 300}
	metrics.ParallelizableGroups = [][]string{{"a", "b"}}

	savings := a.estimateParallelSavings(metrics)
	assert.Equal(t, 100.0, savings)
}
