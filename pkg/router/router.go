// Package router implements the message router: the broadcast engine that
// delivers execution-scoped domain events to client connections, with
// late-join replay, time/size-triggered batching, and health-based
// auto-eviction. See doc.go for the full picture and redis.go for the
// cross-process variant.
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/log"
	"github.com/dipeo/eventplane/pkg/metrics"
)

// Message is one wire-format payload: either a raw serialized event, a
// synthesized UI envelope, or a BATCH_UPDATE wrapper. It is a plain map so
// it marshals to JSON without any intermediate struct tags.
type Message map[string]any

// ConnectionHandler delivers one message to a single external connection
// (typically a streaming gRPC call or websocket). It is the only point
// where the router touches a concrete transport.
type ConnectionHandler func(ctx context.Context, msg Message) error

// ConnectionHealth tracks delivery quality for one connection.
type ConnectionHealth struct {
	LastSuccessfulSend time.Time
	FailedAttempts     int
	TotalMessages      int
	AvgLatencyMS       float64
}

// Config tunes buffering, batching and backpressure thresholds. Zero
// values are replaced with the defaults named in the field comments.
type Config struct {
	MaxQueueSize              int           // per-connection outstanding cap, default 1000
	BufferMaxPerExec          int           // replay ring buffer size, default 200
	BufferTTL                 time.Duration // replay entry age cap, default 5m
	BatchInterval             time.Duration // flush delay after first enqueue, default 50ms
	BatchMax                  int           // flush-size trigger, default 100
	BroadcastWarningThreshold time.Duration // slow-flush log threshold, default 200ms
}

func (c Config) withDefaults() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 1000
	}
	if c.BufferMaxPerExec <= 0 {
		c.BufferMaxPerExec = 200
	}
	if c.BufferTTL <= 0 {
		c.BufferTTL = 5 * time.Minute
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 50 * time.Millisecond
	}
	if c.BatchMax <= 0 {
		c.BatchMax = 100
	}
	if c.BroadcastWarningThreshold <= 0 {
		c.BroadcastWarningThreshold = 200 * time.Millisecond
	}
	return c
}

type connection struct {
	id      string
	handler ConnectionHandler

	// outstanding is read and written from concurrent flush goroutines, so
	// it is guarded by its own mutex rather than the router's map lock.
	mu          sync.Mutex
	outstanding int
	health      ConnectionHealth
}

type replayEntry struct {
	msg       Message
	eventType events.EventType
	at        time.Time
}

type batchState struct {
	mu     sync.Mutex
	events []Message
	timer  *time.Timer
}

// RouterStats is a point-in-time snapshot returned by Stats.
type RouterStats struct {
	ActiveConnections int
	ExecutionCount    int
	BufferSizes       map[string]int
	ConnectionHealth  map[string]ConnectionHealth
}

// EventRouter is the surface both Router and RedisRouter satisfy. Callers
// that want to work with either transparently (the gRPC transport server,
// the metrics collector, the event bus subscription that feeds broadcasts)
// should hold this interface rather than a concrete *Router: a *RedisRouter
// assigned to an EventRouter-typed variable still dispatches to its own
// Handle/BroadcastToExecution/SubscribeConnectionToExecution/Stop
// overrides, whereas a variable statically typed *Router (even one
// obtained by taking a RedisRouter's embedded field) would call Router's
// own methods directly and silently skip the Redis-backed behavior.
type EventRouter interface {
	Handle(ctx context.Context, event events.DomainEvent) error
	RegisterConnection(connID string, handler ConnectionHandler)
	UnregisterConnection(connID string)
	SubscribeConnectionToExecution(ctx context.Context, connID, execID string) error
	UnsubscribeConnectionFromExecution(connID, execID string)
	Stats() RouterStats
	Stop(ctx context.Context)
}

var _ EventRouter = (*Router)(nil)

// Router is the in-process message router. It is safe for concurrent use.
type Router struct {
	cfg Config

	mu          sync.RWMutex
	connections map[string]*connection
	execConns   map[string]map[string]struct{} // execution id -> connection ids
	replay      map[string][]replayEntry
	batches     map[string]*batchState

	logger zerolog.Logger
}

func New(cfg Config) *Router {
	return &Router{
		cfg:         cfg.withDefaults(),
		connections: make(map[string]*connection),
		execConns:   make(map[string]map[string]struct{}),
		replay:      make(map[string][]replayEntry),
		batches:     make(map[string]*batchState),
		logger:      log.WithComponent("router"),
	}
}

func (r *Router) RegisterConnection(connID string, handler ConnectionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[connID] = &connection{id: connID, handler: handler}
}

// UnregisterConnection removes the connection and every per-execution
// subscription referencing it, deleting execution entries that become
// empty as a result.
func (r *Router) UnregisterConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, connID)
	for execID, conns := range r.execConns {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.execConns, execID)
		}
	}
}

// SubscribeConnectionToExecution adds connID to execID's subscriber set and
// replays buffered events for that execution, in order, to connID alone.
// Replay skips HEARTBEAT and CONNECTION_ESTABLISHED entries and stops on
// the first delivery failure for this connection.
func (r *Router) SubscribeConnectionToExecution(ctx context.Context, connID, execID string) error {
	r.mu.Lock()
	conn, ok := r.connections[connID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("router: unknown connection %q", connID)
	}
	if r.execConns[execID] == nil {
		r.execConns[execID] = make(map[string]struct{})
	}
	r.execConns[execID][connID] = struct{}{}
	buffered := append([]replayEntry(nil), r.replay[execID]...)
	r.mu.Unlock()

	for _, entry := range buffered {
		if entry.eventType == events.Heartbeat || entry.eventType == events.ConnectionEstablished {
			continue
		}
		if !r.RouteToConnection(ctx, conn.id, entry.msg) {
			break
		}
	}
	return nil
}

func (r *Router) UnsubscribeConnectionFromExecution(connID, execID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conns, ok := r.execConns[execID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.execConns, execID)
		}
	}
}

// shouldBuffer reports whether execID's replay buffer is enabled. Batch
// sub-execution ids carry the marker "_batch_" and are excluded: buffering
// every item of a fan-out batch would explode memory for no late-join
// benefit (nothing subscribes mid-batch to one sub-execution).
func shouldBuffer(execID string) bool {
	return !strings.Contains(execID, "_batch_")
}

func (r *Router) bufferEvent(execID string, msg Message, eventType events.EventType) {
	if !shouldBuffer(execID) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := append(r.replay[execID], replayEntry{msg: msg, eventType: eventType, at: time.Now()})
	if len(entries) > r.cfg.BufferMaxPerExec {
		entries = entries[len(entries)-r.cfg.BufferMaxPerExec:]
	}
	r.replay[execID] = entries
}

// BroadcastToExecution buffers msg for late join (if enabled for execID)
// and, if any connection is currently subscribed, enqueues it onto
// execID's batch; the batch flushes immediately at BatchMax or after
// BatchInterval from the first enqueue, whichever comes first.
func (r *Router) BroadcastToExecution(ctx context.Context, execID string, msg Message, eventType events.EventType) {
	r.bufferEvent(execID, msg, eventType)

	r.mu.RLock()
	_, hasSubs := r.execConns[execID]
	r.mu.RUnlock()
	if !hasSubs {
		return
	}

	r.mu.Lock()
	batch, ok := r.batches[execID]
	if !ok {
		batch = &batchState{}
		r.batches[execID] = batch
	}
	r.mu.Unlock()

	batch.mu.Lock()
	batch.events = append(batch.events, msg)
	full := len(batch.events) >= r.cfg.BatchMax
	if full {
		batch.timer = nil
	} else if batch.timer == nil {
		batch.timer = time.AfterFunc(r.cfg.BatchInterval, func() { r.flush(execID) })
	}
	batch.mu.Unlock()

	if full {
		r.flush(execID)
	}
}

func (r *Router) flush(execID string) {
	r.mu.RLock()
	batch, ok := r.batches[execID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	batch.mu.Lock()
	pending := batch.events
	batch.events = nil
	batch.timer = nil
	batch.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	envelope := Message{
		"type":         "BATCH_UPDATE",
		"execution_id": execID,
		"events":       pending,
		"batch_size":   len(pending),
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
	}

	r.mu.RLock()
	conns := make([]string, 0, len(r.execConns[execID]))
	for id := range r.execConns[execID] {
		conns = append(conns, id)
	}
	r.mu.RUnlock()
	sort.Strings(conns)

	metrics.RouterBatchSize.Observe(float64(len(pending)))
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RouterBroadcastDuration)

	start := time.Now()
	var wg sync.WaitGroup
	var succeeded, failed int32
	var mu sync.Mutex
	for _, connID := range conns {
		connID := connID
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok := r.RouteToConnection(context.Background(), connID, envelope)
			mu.Lock()
			if ok {
				succeeded++
			} else {
				failed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed > r.cfg.BroadcastWarningThreshold {
		r.logger.Warn().
			Str("execution_id", execID).
			Dur("elapsed", elapsed).
			Int32("succeeded", succeeded).
			Int32("failed", failed).
			Msg("slow batch flush")
	}
}

// RouteToConnection delivers msg directly to one connection, applying
// backpressure (rejecting while the connection's outstanding count has
// already reached MaxQueueSize), measuring latency, updating the moving-average
// health record, and evicting the connection after 3 consecutive
// failures. It returns whether delivery succeeded.
func (r *Router) RouteToConnection(ctx context.Context, connID string, msg Message) bool {
	r.mu.RLock()
	conn, ok := r.connections[connID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	conn.mu.Lock()
	if conn.outstanding >= r.cfg.MaxQueueSize {
		conn.mu.Unlock()
		r.logger.Warn().Str("connection_id", connID).Msg("connection backlog full, dropping message")
		return false
	}
	conn.outstanding++
	conn.mu.Unlock()

	start := time.Now()
	err := conn.handler(ctx, msg)
	latency := time.Since(start)

	conn.mu.Lock()
	conn.outstanding--
	conn.health.TotalMessages++
	if conn.health.AvgLatencyMS == 0 {
		conn.health.AvgLatencyMS = float64(latency.Milliseconds())
	} else {
		conn.health.AvgLatencyMS = conn.health.AvgLatencyMS*0.8 + float64(latency.Milliseconds())*0.2
	}
	if err != nil {
		conn.health.FailedAttempts++
	} else {
		conn.health.FailedAttempts = 0
		conn.health.LastSuccessfulSend = time.Now()
	}
	evict := conn.health.FailedAttempts >= 3
	conn.mu.Unlock()

	if err != nil {
		metrics.RouterConnectionFailuresTotal.WithLabelValues(connID).Inc()
		r.logger.Warn().Err(err).Str("connection_id", connID).Msg("delivery failed")
	}
	if evict {
		metrics.RouterConnectionsEvictedTotal.Inc()
		r.logger.Warn().Str("connection_id", connID).Msg("evicting connection after 3 consecutive failures")
		r.UnregisterConnection(connID)
	}
	return err == nil
}

// Handle implements the eventbus.Handler signature: it serializes event
// and broadcasts it, then — for the lifecycle types the UI cares about —
// synthesizes and broadcasts a NODE_STATUS_CHANGED / EXECUTION_STATUS_CHANGED
// envelope alongside it. Both envelopes are buffered and replayed; a late
// joiner therefore sees both the raw and synthesized shape for the same
// underlying transition, so replay counts are doubled for these types.
func (r *Router) Handle(ctx context.Context, event events.DomainEvent) error {
	if event.Scope.ExecutionID == "" {
		return nil
	}

	primary := Serialize(event)
	r.BroadcastToExecution(ctx, event.Scope.ExecutionID, primary, event.Type)

	if ui, ok := SynthesizeUIEnvelope(event); ok {
		r.BroadcastToExecution(ctx, event.Scope.ExecutionID, ui, ui.eventType())
	}
	return nil
}

// Stats returns a point-in-time snapshot for diagnostics and testing.
func (r *Router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RouterStats{
		ActiveConnections: len(r.connections),
		ExecutionCount:    len(r.execConns),
		BufferSizes:       make(map[string]int, len(r.replay)),
		ConnectionHealth:  make(map[string]ConnectionHealth, len(r.connections)),
	}
	for execID, entries := range r.replay {
		stats.BufferSizes[execID] = len(entries)
	}
	for id, conn := range r.connections {
		conn.mu.Lock()
		stats.ConnectionHealth[id] = conn.health
		conn.mu.Unlock()
	}
	return stats
}

// Stop flushes any pending batches synchronously and cancels their
// delayed-flush timers; it does not unregister connections.
func (r *Router) Stop(ctx context.Context) {
	r.mu.RLock()
	execIDs := make([]string, 0, len(r.batches))
	for execID := range r.batches {
		execIDs = append(execIDs, execID)
	}
	r.mu.RUnlock()

	for _, execID := range execIDs {
		r.mu.RLock()
		batch := r.batches[execID]
		r.mu.RUnlock()
		if batch != nil {
			batch.mu.Lock()
			if batch.timer != nil {
				batch.timer.Stop()
			}
			batch.mu.Unlock()
		}
		r.flush(execID)
	}
}

// CleanupExpiredBuffers evicts replay entries older than cfg.BufferTTL. It
// runs only when called: the router starts no ticker for it and cmd/eventd
// does not call it, so there replay entries are bounded by BufferMaxPerExec
// alone and are not expired by age.
func (r *Router) CleanupExpiredBuffers() {
	cutoff := time.Now().Add(-r.cfg.BufferTTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	for execID, entries := range r.replay {
		kept := entries[:0]
		for _, e := range entries {
			if e.at.After(cutoff) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.replay, execID)
		} else {
			r.replay[execID] = kept
		}
	}
}

func (m Message) eventType() events.EventType {
	t, _ := m["event_type"].(string)
	return events.EventType(t)
}
