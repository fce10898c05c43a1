package eventbus

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/log"
	"github.com/dipeo/eventplane/pkg/metrics"
)

// Handler processes one domain event. A returned error is logged by the
// bus and never propagated to the publisher or to other subscriptions.
type Handler func(ctx context.Context, event events.DomainEvent) error

// Config tunes the bus's queueing behavior.
type Config struct {
	// MaxQueueSize bounds each non-CRITICAL subscription's pending queue.
	// Defaults to 1000.
	MaxQueueSize int
}

func (c Config) withDefaults() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 1000
	}
	return c
}

// Subscription is the handle returned by Subscribe. Callers keep it only to
// pass to Unsubscribe.
type Subscription struct {
	ID       string
	Types    map[events.EventType]struct{}
	Filter   events.Filter
	Priority events.Priority
	handler  Handler
	queue    chan events.DomainEvent
	active   atomic.Bool
	done     chan struct{}
}

// SubscribeOption customizes a subscription at registration time.
type SubscribeOption func(*Subscription)

func WithFilter(f events.Filter) SubscribeOption {
	return func(s *Subscription) { s.Filter = f }
}

func WithSubscriptionPriority(p events.Priority) SubscribeOption {
	return func(s *Subscription) { s.Priority = p }
}

// Bus is an in-process, typed publish/subscribe broker. Publish is
// non-blocking from the producer's perspective: CRITICAL subscriptions are
// invoked inline, everything else is handed to a bounded per-subscription
// queue that a dedicated goroutine drains. A full queue drops the newest
// event and logs a warning rather than blocking the producer (invariant 6
// for the bus's own queues; the router enforces the analogous rule for
// per-connection backlogs).
type Bus struct {
	cfg Config

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	byType        map[events.EventType][]*Subscription

	wg sync.WaitGroup

	logger zerolog.Logger
}

func New(cfg Config) *Bus {
	return &Bus{
		cfg:           cfg.withDefaults(),
		subscriptions: make(map[string]*Subscription),
		byType:        make(map[events.EventType][]*Subscription),
		logger:        log.WithComponent("eventbus"),
	}
}

// Subscribe registers a handler for the given event types. Subscriptions
// with CRITICAL priority have no queue at all: Publish invokes them
// synchronously and in-line. All others get a bounded queue drained by one
// dedicated goroutine, started here.
func (b *Bus) Subscribe(types []events.EventType, handler Handler, opts ...SubscribeOption) (*Subscription, error) {
	typeSet := make(map[events.EventType]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}

	sub := &Subscription{
		ID:       uuid.NewString(),
		Types:    typeSet,
		Priority: events.PriorityNormal,
		handler:  handler,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sub)
	}
	sub.active.Store(true)

	if sub.Priority != events.PriorityCritical {
		sub.queue = make(chan events.DomainEvent, b.cfg.MaxQueueSize)
		b.wg.Add(1)
		go b.processQueue(sub)
	}

	b.mu.Lock()
	b.subscriptions[sub.ID] = sub
	for t := range typeSet {
		b.byType[t] = append(b.byType[t], sub)
	}
	b.mu.Unlock()

	return sub, nil
}

// Unsubscribe marks the subscription inactive, deregisters it from the
// type index, and lets its processor goroutine drain and exit. Already
// enqueued events are discarded rather than delivered once the
// subscription is inactive. Unsubscribing an already-unsubscribed
// subscription is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return nil
	}
	if !sub.active.CompareAndSwap(true, false) {
		return nil
	}

	b.mu.Lock()
	delete(b.subscriptions, sub.ID)
	for t := range sub.Types {
		filtered := b.byType[t][:0]
		for _, s := range b.byType[t] {
			if s.ID != sub.ID {
				filtered = append(filtered, s)
			}
		}
		b.byType[t] = filtered
	}
	b.mu.Unlock()

	if sub.queue != nil {
		close(sub.queue)
		<-sub.done
	}
	return nil
}

// Publish dispatches event to every active, matching subscription,
// ordered by subscription priority (CRITICAL first). It never blocks on a
// slow consumer and never returns a subscriber's error.
func (b *Bus) Publish(ctx context.Context, event events.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.BusDispatchDuration, string(event.Type))
	metrics.BusEventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()

	b.mu.RLock()
	subs := append([]*Subscription(nil), b.byType[event.Type]...)
	b.mu.RUnlock()

	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Priority > subs[j].Priority })

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		if sub.Filter != nil && !sub.Filter.Matches(event) {
			continue
		}

		if sub.Priority == events.PriorityCritical {
			b.invoke(ctx, sub, event)
			continue
		}

		select {
		case sub.queue <- event:
			metrics.BusSubscriptionQueueDepth.WithLabelValues(sub.ID).Set(float64(len(sub.queue)))
		default:
			metrics.BusEventsDroppedTotal.WithLabelValues(sub.ID).Inc()
			b.logger.Warn().
				Str("subscription_id", sub.ID).
				Str("event_type", string(event.Type)).
				Msg("subscription queue full, dropping event")
		}
	}
	return nil
}

// PublishBatch publishes every event in order. It stops and returns the
// first error encountered (context cancellation is the only error
// Publish itself can surface; subscriber errors are caught and logged
// internally and never reach the caller), so prior events in the batch
// remain published — partial publication is permitted.
func (b *Bus) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for _, e := range evts {
		if err := b.Publish(ctx, e); err != nil {
			b.logger.Error().Err(err).Str("event_type", string(e.Type)).Msg("publish_batch stopped early")
			return err
		}
	}
	return nil
}

// Stop unsubscribes every live subscription and waits for their processor
// goroutines to exit. It is idempotent: calling it twice is harmless.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.RLock()
	live := make([]*Subscription, 0, len(b.subscriptions))
	for _, s := range b.subscriptions {
		live = append(live, s)
	}
	b.mu.RUnlock()

	for _, s := range live {
		_ = b.Unsubscribe(s)
	}
	b.wg.Wait()
	return nil
}

func (b *Bus) processQueue(sub *Subscription) {
	defer b.wg.Done()
	defer close(sub.done)
	for event := range sub.queue {
		if !sub.active.Load() {
			continue
		}
		b.invoke(context.Background(), sub, event)
	}
}

func (b *Bus) invoke(ctx context.Context, sub *Subscription, event events.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("subscription_id", sub.ID).
				Str("event_type", string(event.Type)).
				Interface("panic", r).
				Msg("subscription handler panicked")
		}
	}()
	if err := sub.handler(ctx, event); err != nil {
		b.logger.Error().
			Err(err).
			Str("subscription_id", sub.ID).
			Str("event_type", string(event.Type)).
			Msg("subscription handler returned error")
	}
}
