// Package timing implements the process-wide phase-timing aggregator: a
// thread-safe collector keyed execution id -> node id -> phase name,
// accumulating durations with companion count and max statistics.
package timing

import (
	"fmt"
	"sync"
)

// Collector aggregates phase durations. A single mutex protects the phase
// data; reads happen under the same lock. Phase metadata (see Record) is
// kept in a package-level side table with its own lock, shared by every
// Collector; Pop and Clear do not remove it.
type Collector struct {
	mu   sync.Mutex
	data map[string]map[string]map[string]float64
}

func NewCollector() *Collector {
	return &Collector{data: make(map[string]map[string]map[string]float64)}
}

// Default is the process-wide singleton. Producers that don't want to
// thread a *Collector through every call site may record against it
// directly; components under test should construct their own instance
// instead.
var Default = NewCollector()

// Record adds a phase duration for (execID, nodeID). Recording the same
// phase again on the same (execID, nodeID) accumulates: the stored value
// becomes the running total, a "<phase>__count" companion key is
// incremented, and a "<phase>__max" companion key tracks the largest
// single duration seen. metadata, if non-nil, is stored verbatim under
// "<phase>_metadata", overwriting any previous value for that key.
func (c *Collector) Record(execID, nodeID, phase string, durMS float64, metadata map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byNode, ok := c.data[execID]
	if !ok {
		byNode = make(map[string]map[string]float64)
		c.data[execID] = byNode
	}
	phases, ok := byNode[nodeID]
	if !ok {
		phases = make(map[string]float64)
		byNode[nodeID] = phases
	}

	countKey := phase + "__count"
	maxKey := phase + "__max"

	if existing, ok := phases[phase]; ok {
		phases[phase] = existing + durMS
		phases[countKey] = phases[countKey] + 1
		if durMS > phases[maxKey] {
			phases[maxKey] = durMS
		}
	} else {
		phases[phase] = durMS
		phases[countKey] = 1
		phases[maxKey] = durMS
	}

	if metadata != nil {
		metaKey := phase + "_metadata"
		// stored as a float-keyed map would lose the payload; phases is
		// float64-only, so metadata lives in a side table instead.
		c.storeMetadata(execID, nodeID, metaKey, metadata)
	}
}

// metadata is kept out of the float64 phases map in a parallel structure,
// since Go (unlike Python's untyped dict) cannot mix float64 and arbitrary
// metadata values in one map without losing type safety at every read site.
type metadataKey struct {
	execID, nodeID, key string
}

var metadataStore = struct {
	mu   sync.Mutex
	data map[metadataKey]map[string]any
}{data: make(map[metadataKey]map[string]any)}

func (c *Collector) storeMetadata(execID, nodeID, key string, value map[string]any) {
	metadataStore.mu.Lock()
	defer metadataStore.mu.Unlock()
	metadataStore.data[metadataKey{execID, nodeID, key}] = value
}

// Metadata returns the metadata recorded for a given phase, if any, in the
// form Record stored it under "<phase>_metadata".
func (c *Collector) Metadata(execID, nodeID, phase string) (map[string]any, bool) {
	metadataStore.mu.Lock()
	defer metadataStore.mu.Unlock()
	v, ok := metadataStore.data[metadataKey{execID, nodeID, phase + "_metadata"}]
	return v, ok
}

// Get returns a non-destructive snapshot of exec's timing data.
func (c *Collector) Get(execID string) map[string]map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneExec(c.data[execID])
}

// Pop returns exec's timing data and removes it, for one-time consumption
// by the metrics observer at execution completion.
func (c *Collector) Pop(execID string) map[string]map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := c.data[execID]
	delete(c.data, execID)
	return cloneExec(snapshot)
}

// Clear removes execID's phase data, or all phase data if execID is empty.
// Recorded metadata is kept.
func (c *Collector) Clear(execID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if execID == "" {
		c.data = make(map[string]map[string]map[string]float64)
		return
	}
	delete(c.data, execID)
}

func cloneExec(src map[string]map[string]float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(src))
	for nodeID, phases := range src {
		cp := make(map[string]float64, len(phases))
		for k, v := range phases {
			cp[k] = v
		}
		out[nodeID] = cp
	}
	return out
}

// PhaseKey builds the "<phase>__count" / "<phase>__max" companion key
// names, exported so consumers that look up a companion key don't hardcode
// the separator.
func PhaseKey(phase, suffix string) string {
	return fmt.Sprintf("%s__%s", phase, suffix)
}
