package repository

import (
	"context"

	"publish-pipeline/domain/model"
)

// IDraftRepository is the persistence backend behind the draft store. Each call must
// be atomic: a crash never leaves a draft half written.
type IDraftRepository interface {
	Insert(ctx context.Context, draft *model.Draft) error
	// GetByID returns nil, nil when the draft does not exist.
	GetByID(ctx context.Context, id string) (*model.Draft, error)
	// List returns every draft, or only ownerID's drafts when ownerID is not empty.
	List(ctx context.Context, ownerID string) ([]*model.Draft, error)
	// Replace overwrites an existing draft; false when the id is unknown.
	Replace(ctx context.Context, draft *model.Draft) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}
