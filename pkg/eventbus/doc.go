/*
Package eventbus implements the in-process priority publish/subscribe
broker described by pkg/events: Publish never blocks on a slow consumer,
CRITICAL subscriptions (requested with WithSubscriptionPriority; an
event's own priority does not affect dispatch) are invoked inline, and
every other subscription has a bounded queue drained by its own goroutine.

	┌──────────────────────── EVENT BUS ────────────────────────┐
	│                                                            │
	│   Publish(event)                                           │
	│        │                                                   │
	│        ▼                                                   │
	│   match byType[event.Type], sort by priority desc           │
	│        │                                                   │
	│   ┌────┴─────────────────┬──────────────────────┐          │
	│   ▼                      ▼                      ▼          │
	│  CRITICAL subscription   HIGH/NORMAL/LOW subscription       │
	│  → invoked inline        → non-blocking send to queue       │
	│    (no queue exists)       (buffer MaxQueueSize, default    │
	│                             1000); full → drop + warn       │
	│                                   │                          │
	│                                   ▼                          │
	│                         processQueue goroutine                │
	│                         (one per subscription)                │
	└────────────────────────────────────────────────────────────┘

Subscribe/Unsubscribe are safe to call concurrently with Publish. Stop
unsubscribes every live subscription and waits for their goroutines to
exit, so it is safe to call at most once per process shutdown (repeated
calls are harmless no-ops once nothing remains subscribed).

This package fans out to three classes of subscriber: pkg/router (client
broadcast), pkg/observers (metrics and result observers), and anything
else wired by the embedding application — see pkg/events.Facade for the
typed publish-side API.
*/
package eventbus
