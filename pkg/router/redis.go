package router

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/log"
)

// RedisRouter is the cross-process router variant: it embeds a local
// Router for connection registry, batching, health and replay, and
// overrides only the broadcast path. A publish goes out to a Redis
// pub/sub channel keyed "exec:{execution_id}"; a per-execution subscriber
// goroutine (started lazily on first local subscription or first publish)
// consumes that channel and feeds the embedded Router's ordinary local
// batching/delivery path. The replay buffer itself stays per-process: a
// process that was not running when an event was published cannot replay
// it on late join. Callers should hold this behind the EventRouter
// interface rather than extracting the embedded *Router field, or the
// overrides below never run.
type RedisRouter struct {
	*Router

	client        redis.UniversalClient
	channelPrefix string

	mu          sync.Mutex
	subscribers map[string]context.CancelFunc

	logger zerolog.Logger
}

func NewRedisRouter(cfg Config, client redis.UniversalClient) *RedisRouter {
	return &RedisRouter{
		Router:        New(cfg),
		client:        client,
		channelPrefix: "exec:",
		subscribers:   make(map[string]context.CancelFunc),
		logger:        log.WithComponent("redis_router"),
	}
}

type redisEnvelope struct {
	Msg       Message         `json:"msg"`
	EventType events.EventType `json:"event_type"`
}

func (r *RedisRouter) channel(execID string) string {
	return r.channelPrefix + execID
}

// BroadcastToExecution publishes to the execution's Redis channel instead
// of delivering locally; the subscriber goroutine started by
// ensureSubscriber performs the actual local delivery once the message
// comes back off the channel (including, for the publishing process
// itself, a round trip through Redis — this keeps delivery order
// consistent across all subscribing processes).
func (r *RedisRouter) BroadcastToExecution(ctx context.Context, execID string, msg Message, eventType events.EventType) {
	r.ensureSubscriber(execID)

	payload, err := json.Marshal(redisEnvelope{Msg: msg, EventType: eventType})
	if err != nil {
		r.logger.Error().Err(err).Str("execution_id", execID).Msg("failed to marshal envelope for redis publish")
		return
	}
	if err := r.client.Publish(ctx, r.channel(execID), payload).Err(); err != nil {
		r.logger.Error().Err(err).Str("execution_id", execID).Msg("redis publish failed")
	}
}

// SubscribeConnectionToExecution ensures the execution's Redis subscriber
// is running (so future cross-process broadcasts reach this connection)
// before delegating to the embedded Router for local registration and
// replay.
func (r *RedisRouter) SubscribeConnectionToExecution(ctx context.Context, connID, execID string) error {
	r.ensureSubscriber(execID)
	return r.Router.SubscribeConnectionToExecution(ctx, connID, execID)
}

// Handle mirrors Router.Handle but routes both the primary and synthesized
// envelopes through BroadcastToExecution's Redis-publishing override.
func (r *RedisRouter) Handle(ctx context.Context, event events.DomainEvent) error {
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

func (r *RedisRouter) ensureSubscriber(execID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[execID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.subscribers[execID] = cancel
	pubsub := r.client.Subscribe(ctx, r.channel(execID))

	go r.consume(ctx, execID, pubsub)
}

func (r *RedisRouter) consume(ctx context.Context, execID string, pubsub *redis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env redisEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Error().Err(err).Str("execution_id", execID).Msg("failed to unmarshal redis envelope")
				continue
			}
			r.Router.BroadcastToExecution(ctx, execID, env.Msg, env.EventType)
		}
	}
}

// StopExecutionSubscriber cancels the Redis subscriber goroutine for
// execID, if one is running. Callers should do this once an execution is
// known to be fully drained (no more connections, no more publishes
// expected) to avoid leaking a goroutine and a Redis subscription per
// execution that ever had a cross-process subscriber.
func (r *RedisRouter) StopExecutionSubscriber(execID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.subscribers[execID]; ok {
		cancel()
		delete(r.subscribers, execID)
	}
}

func (r *RedisRouter) Stop(ctx context.Context) {
	r.mu.Lock()
	for execID, cancel := range r.subscribers {
		cancel()
		delete(r.subscribers, execID)
	}
	r.mu.Unlock()
	r.Router.Stop(ctx)
}

var _ EventRouter = (*RedisRouter)(nil)

