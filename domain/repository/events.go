package repository

import (
	"context"

	"publish-pipeline/domain/model"
)

// IEventPublisher delivers pipeline events to display-only collaborators.
type IEventPublisher interface {
	PublishEvent(ctx context.Context, event model.PipelineEvent) error
}
