package observers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/log"
	"github.com/dipeo/eventplane/pkg/metrics"
	"github.com/dipeo/eventplane/pkg/timing"
)

const maxCompletedMetrics = 10

// MetricsObserver subscribes to the execution lifecycle and maintains a
// per-execution ExecutionMetrics buffer, handing completed executions to a
// MetricsAnalyzer and, optionally, a StateRepository for persistence.
// Grounded on metrics_observer.py's MetricsObserver.
type MetricsObserver struct {
	mu             sync.Mutex
	buffer         map[string]*ExecutionMetrics
	completed      map[string]*ExecutionMetrics
	completedOrder []string

	repo     StateRepository
	analyzer *MetricsAnalyzer

	logger zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewMetricsObserver(bus events.Bus, repo StateRepository) *MetricsObserver {
	return &MetricsObserver{
		buffer:    make(map[string]*ExecutionMetrics),
		completed: make(map[string]*ExecutionMetrics),
		repo:      repo,
		analyzer:  NewMetricsAnalyzer(bus, 1000),
		logger:    log.WithComponent("metrics_observer"),
	}
}

func (o *MetricsObserver) GetExecutionMetrics(executionID string) *ExecutionMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	if m, ok := o.buffer[executionID]; ok {
		return m
	}
	return o.completed[executionID]
}

func (o *MetricsObserver) GetAllMetrics() map[string]*ExecutionMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*ExecutionMetrics, len(o.buffer))
	for k, v := range o.buffer {
		out[k] = v
	}
	return out
}

func (o *MetricsObserver) GetMetricsSummary(executionID string) *MetricsSummary {
	metrics := o.GetExecutionMetrics(executionID)
	if metrics == nil {
		return nil
	}

	totalTokens := map[string]int{"input": 0, "output": 0, "total": 0}
	breakdown := make([]NodeSummary, 0, len(metrics.NodeMetrics))
	for nodeID, nm := range metrics.NodeMetrics {
		breakdown = append(breakdown, NodeSummary{
			NodeID:        nodeID,
			NodeType:      nm.NodeType,
			DurationMS:    nm.DurationMS,
			TokenUsage:    defaultTokenUsage(nm.TokenUsage),
			Error:         nm.Error,
			ModuleTimings: nm.ModuleTimings,
		})
		if nm.TokenUsage != nil {
			totalTokens["input"] += nm.TokenUsage["input"]
			totalTokens["output"] += nm.TokenUsage["output"]
			totalTokens["total"] += nm.TokenUsage["total"]
		}
	}

	bottlenecks := make([]BottleneckDetail, 0, 5)
	for i, nodeID := range metrics.Bottlenecks {
		if i >= 5 {
			break
		}
		if nm, ok := metrics.NodeMetrics[nodeID]; ok {
			bottlenecks = append(bottlenecks, BottleneckDetail{NodeID: nodeID, NodeType: nm.NodeType, DurationMS: nm.DurationMS})
		}
	}

	return &MetricsSummary{
		ExecutionID:          metrics.ExecutionID,
		TotalDurationMS:      metrics.TotalDurationMS,
		NodeCount:            len(metrics.NodeMetrics),
		TotalTokenUsage:      totalTokens,
		Bottlenecks:          bottlenecks,
		CriticalPathLength:   len(metrics.CriticalPath),
		ParallelizableGroups: len(metrics.ParallelizableGroups),
		NodeBreakdown:        breakdown,
	}
}

func (o *MetricsObserver) Start() {
	o.mu.Lock()
	if o.stopCh != nil {
		o.mu.Unlock()
		return
	}
	o.stopCh = make(chan struct{})
	stopCh := o.stopCh
	o.mu.Unlock()

	o.wg.Add(1)
	go o.cleanupLoop(stopCh)
	o.logger.Debug().Msg("MetricsObserver started")
}

func (o *MetricsObserver) Stop() {
	o.mu.Lock()
	stopCh := o.stopCh
	o.stopCh = nil
	o.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		o.wg.Wait()
	}
	o.logger.Info().Msg("MetricsObserver stopped")
}

// Handle implements eventbus.Handler.
func (o *MetricsObserver) Handle(ctx context.Context, event events.DomainEvent) error {
	switch event.Type {
	case events.ExecutionStarted:
		o.handleExecutionStarted(event)
	case events.NodeStarted:
		o.handleNodeStarted(event)
	case events.NodeCompleted:
		o.handleNodeCompleted(event)
	case events.NodeError:
		o.handleNodeFailed(event)
	case events.ExecutionCompleted:
		o.handleExecutionCompleted(ctx, event)
	}
	return nil
}

func (o *MetricsObserver) handleExecutionStarted(event events.DomainEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	execID := event.Scope.ExecutionID
	o.buffer[execID] = newExecutionMetrics(execID, float64(event.OccurredAt.UnixNano())/1e9)
}

func (o *MetricsObserver) handleNodeStarted(event events.DomainEvent) {
	nodeID := event.Scope.NodeID
	if nodeID == "" {
		return
	}
	payload, ok := event.Payload.(events.NodeStartedPayload)
	if !ok {
		return
	}

	o.mu.Lock()
	metrics, ok := o.buffer[event.Scope.ExecutionID]
	if !ok {
		o.mu.Unlock()
		return
	}
	metrics.NodeMetrics[nodeID] = &NodeMetrics{
		NodeID:    nodeID,
		NodeType:  orUnknown(payload.NodeType),
		StartTime: float64(event.OccurredAt.UnixNano()) / 1e9,
		Sequence:  metrics.nextNodeSequence(),
	}
	o.mu.Unlock()

	if deps, ok := payload.Inputs["dependencies"]; ok {
		depSet := toStringSet(deps)
		if len(depSet) > 0 {
			current := o.analyzer.NodeDependencies(event.Scope.ExecutionID)
			if current == nil {
				current = make(map[string]map[string]struct{})
			}
			current[nodeID] = depSet
			o.analyzer.SetNodeDependencies(event.Scope.ExecutionID, current)
		}
	}
}

func (o *MetricsObserver) handleNodeCompleted(event events.DomainEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	metrics, ok := o.buffer[event.Scope.ExecutionID]
	if !ok {
		return
	}
	nodeID := event.Scope.NodeID
	nm, ok := metrics.NodeMetrics[nodeID]
	if !ok || nodeID == "" {
		return
	}

	nm.EndTime = float64(event.OccurredAt.UnixNano()) / 1e9
	payload, _ := event.Payload.(events.NodeCompletedPayload)
	if payload.DurationMS > 0 {
		nm.DurationMS = payload.DurationMS
	} else {
		nm.DurationMS = (nm.EndTime - nm.StartTime) * 1000
	}
	if payload.TokenUsage != nil {
		nm.TokenUsage = map[string]int{
			"input":  payload.TokenUsage.Input,
			"output": payload.TokenUsage.Output,
			"total":  payload.TokenUsage.Total,
		}
	}
}

func (o *MetricsObserver) handleNodeFailed(event events.DomainEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	metrics, ok := o.buffer[event.Scope.ExecutionID]
	if !ok {
		return
	}
	nodeID := event.Scope.NodeID
	nm, ok := metrics.NodeMetrics[nodeID]
	if !ok || nodeID == "" {
		return
	}
	nm.EndTime = float64(event.OccurredAt.UnixNano()) / 1e9
	nm.DurationMS = (nm.EndTime - nm.StartTime) * 1000

	payload, _ := event.Payload.(events.NodeErrorPayload)
	nm.Error = payload.ErrorMessage
}

func (o *MetricsObserver) handleExecutionCompleted(ctx context.Context, event events.DomainEvent) {
	execID := event.Scope.ExecutionID

	o.mu.Lock()
	metrics, ok := o.buffer[execID]
	if !ok {
		o.mu.Unlock()
		o.logger.Warn().Str("execution_id", execID).Msg("no metrics found in buffer")
		return
	}
	o.mu.Unlock()

	metrics.EndTime = float64(event.OccurredAt.UnixNano()) / 1e9
	metrics.TotalDurationMS = (metrics.EndTime - metrics.StartTime) * 1000

	o.analyzer.AnalyzeExecution(ctx, metrics, event.Scope)

	timingData := timing.Default.Pop(execID)
	for nodeID, phaseTimings := range timingData {
		filtered := make(map[string]float64, len(phaseTimings))
		var sum float64
		for phase, dur := range phaseTimings {
			filtered[phase] = dur
			sum += dur
		}

		o.mu.Lock()
		if nm, ok := metrics.NodeMetrics[nodeID]; ok {
			nm.ModuleTimings = filtered
		} else {
			metrics.NodeMetrics[nodeID] = &NodeMetrics{
				NodeID:        nodeID,
				NodeType:      "system",
				StartTime:     metrics.StartTime,
				EndTime:       metrics.EndTime,
				DurationMS:    sum,
				ModuleTimings: filtered,
				Sequence:      metrics.nextNodeSequence(),
			}
		}
		o.mu.Unlock()
	}

	if o.repo != nil {
		o.persist(ctx, execID, metrics)
	}

	o.mu.Lock()
	delete(o.buffer, execID)
	o.completed[execID] = metrics
	o.completedOrder = append(o.completedOrder, execID)
	if len(o.completedOrder) > maxCompletedMetrics {
		oldest := o.completedOrder[0]
		o.completedOrder = o.completedOrder[1:]
		delete(o.completed, oldest)
	}
	o.mu.Unlock()

	o.analyzer.ClearNodeDependencies(execID)
}

func (o *MetricsObserver) persist(ctx context.Context, execID string, execMetrics *ExecutionMetrics) {
	state, err := o.repo.GetExecution(ctx, execID)
	if err != nil || state == nil {
		metrics.ObserverPersistFailuresTotal.Inc()
		o.logger.Warn().Str("execution_id", execID).Msg("execution state not found, cannot persist metrics")
		return
	}
	state.Metrics = execMetrics
	if err := o.repo.SaveExecution(ctx, state); err != nil {
		metrics.ObserverPersistFailuresTotal.Inc()
		o.logger.Error().Err(err).Str("execution_id", execID).Msg("failed to save execution metrics")
		return
	}
	if o.repo.ImmediatePersistenceCapable() {
		if err := o.repo.PersistNow(ctx, execID); err != nil {
			metrics.ObserverPersistFailuresTotal.Inc()
			o.logger.Error().Err(err).Str("execution_id", execID).Msg("failed to force-persist metrics")
			return
		}
	}
	o.logger.Info().Str("execution_id", execID).Msg("persisted metrics for execution")
}

func (o *MetricsObserver) cleanupLoop(stopCh chan struct{}) {
	defer o.wg.Done()
	ticker := time.NewTicker(300 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			o.sweepStale()
		}
	}
}

func (o *MetricsObserver) sweepStale() {
	now := float64(time.Now().UnixNano()) / 1e9

	o.mu.Lock()
	var stale []string
	for execID, metrics := range o.buffer {
		if now-metrics.StartTime > 3600 {
			stale = append(stale, execID)
		}
	}
	for _, execID := range stale {
		delete(o.buffer, execID)
	}
	o.mu.Unlock()

	for _, execID := range stale {
		o.logger.Warn().Str("execution_id", execID).Msg("cleaning up stale metrics")
		o.analyzer.ClearNodeDependencies(execID)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func toStringSet(v any) map[string]struct{} {
	out := make(map[string]struct{})
	switch deps := v.(type) {
	case []string:
		for _, d := range deps {
			out[d] = struct{}{}
		}
	case []any:
		for _, d := range deps {
			if s, ok := d.(string); ok {
				out[s] = struct{}{}
			}
		}
	}
	return out
}
