package usecase

import (
	"context"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"
)

const eventSendTimeout = 10 * time.Second

// eventBroadcaster hands each event to every sink on its own goroutine. Sinks are
// display-only, so their failures are logged and dropped.
type eventBroadcaster struct {
	sinks []repository.IEventPublisher
}

func NewEventBroadcaster(sinks ...repository.IEventPublisher) repository.IEventPublisher {
	b := &eventBroadcaster{}
	for _, s := range sinks {
		if s != nil {
			b.sinks = append(b.sinks, s)
		}
	}
	return b
}

func (b *eventBroadcaster) PublishEvent(ctx context.Context, event model.PipelineEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	base := context.WithoutCancel(ctx)
	for _, sink := range b.sinks {
		go func(sink repository.IEventPublisher) {
			sctx, cancel := context.WithTimeout(base, eventSendTimeout)
			defer cancel()
			if err := sink.PublishEvent(sctx, event); err != nil {
				logger.GetLogger().WithFields(map[string]interface{}{
					"type":  event.Type,
					"error": err,
				}).Warn("Failed to deliver pipeline event")
			}
		}(sink)
	}
	return nil
}

type noopEvents struct{}

func (noopEvents) PublishEvent(context.Context, model.PipelineEvent) error { return nil }
