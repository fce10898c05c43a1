package observers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/log"
)

// ResultObserver has a single responsibility: record every execution's
// terminal status in the repository. COMPLETED goes through UpdateStatus
// alone; FAILED (including timeouts and other error states that never pass
// through the ordinary completion path) goes through UpdateStatus and is
// then force-persisted with PersistNow when the repository supports it.
// Grounded on result_observer.py's ResultObserver.
type ResultObserver struct {
	repo   StateRepository
	logger zerolog.Logger
}

func NewResultObserver(repo StateRepository) *ResultObserver {
	return &ResultObserver{repo: repo, logger: log.WithComponent("result_observer")}
}

func (o *ResultObserver) Start() { o.logger.Info().Msg("ResultObserver started") }
func (o *ResultObserver) Stop()  { o.logger.Info().Msg("ResultObserver stopped") }

// Handle implements eventbus.Handler.
func (o *ResultObserver) Handle(ctx context.Context, event events.DomainEvent) error {
	switch event.Type {
	case events.ExecutionStarted:
		o.handleExecutionStarted(event)
	case events.ExecutionCompleted:
		o.handleExecutionCompleted(ctx, event)
	case events.ExecutionError:
		o.handleExecutionError(ctx, event)
	}
	return nil
}

func (o *ResultObserver) handleExecutionStarted(event events.DomainEvent) {
	o.logger.Debug().Str("execution_id", event.Scope.ExecutionID).Msg("execution started")
}

func (o *ResultObserver) handleExecutionCompleted(ctx context.Context, event events.DomainEvent) {
	execID := event.Scope.ExecutionID
	if err := o.repo.UpdateStatus(ctx, execID, events.StatusCompleted, ""); err != nil {
		o.logger.Error().Err(err).Str("execution_id", execID).Msg("failed to persist completion")
		return
	}
	o.logger.Info().Str("execution_id", execID).Msg("persisted COMPLETED status")
}

// handleExecutionError updates status to FAILED and forces a durable write
// — update_status alone only updates the cache by design, so terminal
// failure states (including timeouts, which surface as EXECUTION_ERROR)
// must force the repository's immediate-persistence path or risk being
// lost on a crash before the next write-behind flush.
func (o *ResultObserver) handleExecutionError(ctx context.Context, event events.DomainEvent) {
	execID := event.Scope.ExecutionID
	errMsg := "Unknown error"
	if payload, ok := event.Payload.(events.ExecutionErrorPayload); ok && payload.ErrorMessage != "" {
		errMsg = payload.ErrorMessage
	}

	if err := o.repo.UpdateStatus(ctx, execID, events.StatusFailed, errMsg); err != nil {
		o.logger.Error().Err(err).Str("execution_id", execID).Msg("failed to persist error status")
		return
	}

	if o.repo.ImmediatePersistenceCapable() {
		if err := o.repo.PersistNow(ctx, execID); err != nil {
			o.logger.Error().Err(err).Str("execution_id", execID).Msg("failed to force-persist error status")
			return
		}
		o.logger.Info().Str("execution_id", execID).Str("error", errMsg).Msg("persisted FAILED status to database")
		return
	}
	o.logger.Info().Str("execution_id", execID).Str("error", errMsg).Msg("updated FAILED status in cache")
}
