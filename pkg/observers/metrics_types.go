package observers

// NodeMetrics holds timing, token usage, and error data for one node's
// execution within a single run, grounded on metrics_types.py's
// dataclass NodeMetrics.
type NodeMetrics struct {
	NodeID        string
	NodeType      string
	StartTime     float64
	EndTime       float64
	DurationMS    float64
	TokenUsage    map[string]int
	Error         string
	Dependencies  map[string]struct{}
	ModuleTimings map[string]float64

	// Sequence is the order this node was first recorded in, used to break
	// ties when sorting nodes that share a StartTime so the result is
	// reproducible regardless of map iteration order.
	Sequence int
}

// ExecutionMetrics aggregates NodeMetrics for an entire diagram run, plus
// the analysis results (bottlenecks, critical path, parallelizable
// groups) the analyzer computes at completion.
type ExecutionMetrics struct {
	ExecutionID          string
	StartTime            float64
	EndTime              float64
	TotalDurationMS      float64
	NodeMetrics          map[string]*NodeMetrics
	CriticalPath         []string
	ParallelizableGroups [][]string
	Bottlenecks          []string

	nextSequence int
}

func newExecutionMetrics(executionID string, startTime float64) *ExecutionMetrics {
	return &ExecutionMetrics{
		ExecutionID: executionID,
		StartTime:   startTime,
		NodeMetrics: make(map[string]*NodeMetrics),
	}
}

// nextNodeSequence returns the next insertion index for a node first seen
// in this execution, monotonically increasing regardless of map iteration
// order. Callers must hold the owning MetricsObserver's lock.
func (m *ExecutionMetrics) nextNodeSequence() int {
	seq := m.nextSequence
	m.nextSequence++
	return seq
}

// MetricsSummary is the flattened, JSON-friendly view GetMetricsSummary
// returns for API/CLI consumers.
type MetricsSummary struct {
	ExecutionID          string             `json:"execution_id"`
	TotalDurationMS      float64            `json:"total_duration_ms"`
	NodeCount            int                `json:"node_count"`
	TotalTokenUsage       map[string]int     `json:"total_token_usage"`
	Bottlenecks          []BottleneckDetail `json:"bottlenecks"`
	CriticalPathLength   int                `json:"critical_path_length"`
	ParallelizableGroups int                `json:"parallelizable_groups"`
	NodeBreakdown        []NodeSummary      `json:"node_breakdown"`
}

type BottleneckDetail struct {
	NodeID     string  `json:"node_id"`
	NodeType   string  `json:"node_type"`
	DurationMS float64 `json:"duration_ms"`
}

type NodeSummary struct {
	NodeID        string             `json:"node_id"`
	NodeType      string             `json:"node_type"`
	DurationMS    float64            `json:"duration_ms"`
	TokenUsage    map[string]int     `json:"token_usage"`
	Error         string             `json:"error,omitempty"`
	ModuleTimings map[string]float64 `json:"module_timings,omitempty"`
}
