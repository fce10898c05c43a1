package observers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/log"
	"github.com/dipeo/eventplane/pkg/metrics"
)

// MetricsAnalyzer computes bottlenecks, a critical path, and
// parallelizable-node groupings from a completed execution's metrics, and
// emits the results as EXECUTION_LOG / OPTIMIZATION_SUGGESTED events.
// Grounded on metrics_analysis.py's MetricsAnalyzer.
type MetricsAnalyzer struct {
	bus                 events.Bus
	analysisThresholdMS float64

	mu           sync.Mutex
	dependencies map[string]map[string]map[string]struct{} // execID -> nodeID -> set(dep nodeIDs)
}

func NewMetricsAnalyzer(bus events.Bus, analysisThresholdMS float64) *MetricsAnalyzer {
	return &MetricsAnalyzer{
		bus:                 bus,
		analysisThresholdMS: analysisThresholdMS,
		dependencies:        make(map[string]map[string]map[string]struct{}),
	}
}

func (a *MetricsAnalyzer) SetNodeDependencies(execID string, deps map[string]map[string]struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dependencies[execID] = deps
}

func (a *MetricsAnalyzer) NodeDependencies(execID string) map[string]map[string]struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dependencies[execID]
}

func (a *MetricsAnalyzer) ClearNodeDependencies(execID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.dependencies, execID)
}

// AnalyzeExecution identifies bottlenecks, computes the critical path and
// parallelizable groups, writes them back onto metrics, and emits the
// resulting summary and any optimization suggestions.
func (a *MetricsAnalyzer) AnalyzeExecution(ctx context.Context, execMetrics *ExecutionMetrics, scope events.Scope) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ObserverAnalysisDuration)

	a.analyzeExecution(ctx, execMetrics, scope)
}

func (a *MetricsAnalyzer) analyzeExecution(ctx context.Context, metrics *ExecutionMetrics, scope events.Scope) {
	bottlenecks := a.identifyBottlenecks(metrics)
	top := bottlenecks
	if len(top) > 5 {
		top = top[:5]
	}
	metrics.Bottlenecks = make([]string, len(top))
	for i, b := range top {
		metrics.Bottlenecks[i] = b.NodeID
	}
	metrics.CriticalPath = a.calculateCriticalPath(metrics)
	metrics.ParallelizableGroups = a.findParallelizableNodes(metrics)

	if a.bus == nil {
		return
	}
	a.emitMetricsEvent(ctx, metrics, scope, top)
	a.emitOptimizationSuggestions(ctx, metrics, scope)
}

func (a *MetricsAnalyzer) emitMetricsEvent(ctx context.Context, metrics *ExecutionMetrics, scope events.Scope, bottlenecks []BottleneckDetail) {
	breakdown := make([]NodeSummary, 0, len(metrics.NodeMetrics))
	totalTokens := map[string]int{"input": 0, "output": 0, "total": 0}
	for nodeID, nm := range metrics.NodeMetrics {
		breakdown = append(breakdown, NodeSummary{
			NodeID:     nodeID,
			NodeType:   nm.NodeType,
			DurationMS: nm.DurationMS,
			TokenUsage: defaultTokenUsage(nm.TokenUsage),
			Error:      nm.Error,
		})
		if nm.TokenUsage != nil {
			totalTokens["input"] += nm.TokenUsage["input"]
			totalTokens["output"] += nm.TokenUsage["output"]
			totalTokens["total"] += nm.TokenUsage["total"]
		}
	}

	e, err := events.NewExecutionLog(scope, events.ExecutionLogPayload{
		Level:      events.LogInfo,
		Message:    "Execution metrics collected",
		LoggerName: "metrics_observer",
		ExtraFields: map[string]any{
			"execution_id":          metrics.ExecutionID,
			"total_duration_ms":     metrics.TotalDurationMS,
			"node_count":            len(metrics.NodeMetrics),
			"total_token_usage":     totalTokens,
			"bottlenecks":           bottlenecks,
			"critical_path_length":  len(metrics.CriticalPath),
			"parallelizable_groups": len(metrics.ParallelizableGroups),
			"node_breakdown":        breakdown,
		},
	})
	if err != nil {
		log.WithComponent("metrics_analyzer").Error().Err(err).Msg("failed to build metrics event")
		return
	}
	if err := a.bus.Publish(ctx, e); err != nil {
		log.WithComponent("metrics_analyzer").Error().Err(err).Msg("failed to publish metrics event")
	}
}

func (a *MetricsAnalyzer) emitOptimizationSuggestions(ctx context.Context, metrics *ExecutionMetrics, scope events.Scope) {
	if len(metrics.ParallelizableGroups) == 0 {
		return
	}
	savings := a.estimateParallelSavings(metrics)
	affected := []string{}
	for _, group := range metrics.ParallelizableGroups {
		affected = append(affected, group...)
	}

	e, err := events.NewOptimizationSuggested(scope, events.OptimizationSuggestedPayload{
		SuggestionType: "parallelize_nodes",
		Message: fmt.Sprintf(
			"Found %d groups of nodes that could run in parallel. Could save up to %gms",
			len(metrics.ParallelizableGroups), savings,
		),
		Details: map[string]any{
			"affected_nodes":        affected,
			"parallelizable_groups": metrics.ParallelizableGroups,
		},
	})
	if err != nil {
		log.WithComponent("metrics_analyzer").Error().Err(err).Msg("failed to build optimization event")
		return
	}
	if err := a.bus.Publish(ctx, e); err != nil {
		log.WithComponent("metrics_analyzer").Error().Err(err).Msg("failed to publish optimization event")
	}
}

func (a *MetricsAnalyzer) identifyBottlenecks(metrics *ExecutionMetrics) []BottleneckDetail {
	var out []BottleneckDetail
	for nodeID, nm := range metrics.NodeMetrics {
		if nm.DurationMS > a.analysisThresholdMS {
			out = append(out, BottleneckDetail{NodeID: nodeID, NodeType: nm.NodeType, DurationMS: nm.DurationMS})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationMS > out[j].DurationMS })
	return out
}

// calculateCriticalPath orders nodes by start time rather than computing a
// true longest-dependency-weighted path. Nodes with an identical start
// time are ordered by the sequence they were first recorded in
// (handleNodeStarted), so the result is reproducible across runs instead
// of depending on NodeMetrics's map iteration order.
func (a *MetricsAnalyzer) calculateCriticalPath(metrics *ExecutionMetrics) []string {
	type entry struct {
		id  string
		st  float64
		seq int
	}
	entries := make([]entry, 0, len(metrics.NodeMetrics))
	for id, nm := range metrics.NodeMetrics {
		entries = append(entries, entry{id, nm.StartTime, nm.Sequence})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].st != entries[j].st {
			return entries[i].st < entries[j].st
		}
		return entries[i].seq < entries[j].seq
	})
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out
}

func (a *MetricsAnalyzer) findParallelizableNodes(metrics *ExecutionMetrics) [][]string {
	var groups [][]string
	dependencies := a.NodeDependencies(metrics.ExecutionID)
	if dependencies == nil {
		return groups
	}

	var potential []string
	// map iteration order is unspecified; a deterministic pass order is
	// needed so grouping is reproducible, so iterate nodes by start time.
	for _, nodeID := range a.calculateCriticalPath(metrics) {
		nodeDeps := dependencies[nodeID]
		canParallel := true
		for _, otherID := range potential {
			otherDeps := dependencies[otherID]
			if _, ok := nodeDeps[otherID]; ok {
				canParallel = false
				break
			}
			if _, ok := otherDeps[nodeID]; ok {
				canParallel = false
				break
			}
		}
		if canParallel {
			potential = append(potential, nodeID)
		} else if len(potential) > 1 {
			groups = append(groups, potential)
			potential = []string{nodeID}
		} else {
			potential = []string{nodeID}
		}
	}
	if len(potential) > 1 {
		groups = append(groups, potential)
	}
	return groups
}

func (a *MetricsAnalyzer) estimateParallelSavings(metrics *ExecutionMetrics) float64 {
	var total float64
	for _, group := range metrics.ParallelizableGroups {
		var durations []float64
		for _, nodeID := range group {
			if nm, ok := metrics.NodeMetrics[nodeID]; ok && nm.DurationMS > 0 {
				durations = append(durations, nm.DurationMS)
			}
		}
		if len(durations) == 0 {
			continue
		}
		sum, max := 0.0, durations[0]
		for _, d := range durations {
			sum += d
			if d > max {
				max = d
			}
		}
		total += sum - max
	}
	return total
}

func defaultTokenUsage(tu map[string]int) map[string]int {
	if tu != nil {
		return tu
	}
	return map[string]int{"input": 0, "output": 0, "total": 0}
}
