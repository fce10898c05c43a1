package router

import (
	"context"

	"github.com/dipeo/eventplane/pkg/events"
)

// CompatAdapter exposes the narrow register/broadcast/subscribe surface a
// caller needs when it only wants connection and broadcast management, not
// the full Router type (Handle, RouteToConnection). It is a thin
// pass-through kept for callers migrating off an older, narrower
// interface.
type CompatAdapter struct {
	router *Router
}

func NewCompatAdapter(r *Router) *CompatAdapter {
	return &CompatAdapter{router: r}
}

func (a *CompatAdapter) RegisterConnection(connID string, handler ConnectionHandler) {
	a.router.RegisterConnection(connID, handler)
}

func (a *CompatAdapter) UnregisterConnection(connID string) {
	a.router.UnregisterConnection(connID)
}

func (a *CompatAdapter) SubscribeConnectionToExecution(ctx context.Context, connID, execID string) error {
	return a.router.SubscribeConnectionToExecution(ctx, connID, execID)
}

func (a *CompatAdapter) UnsubscribeConnectionFromExecution(connID, execID string) {
	a.router.UnsubscribeConnectionFromExecution(connID, execID)
}

func (a *CompatAdapter) BroadcastToExecution(ctx context.Context, execID string, msg Message, eventType events.EventType) {
	a.router.BroadcastToExecution(ctx, execID, msg, eventType)
}

func (a *CompatAdapter) Stats() RouterStats {
	return a.router.Stats()
}
