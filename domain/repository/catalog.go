package repository

import (
	"context"

	"publish-pipeline/domain/model"
)

// ICatalog is the remote publish gateway. Failures are *model.GatewayError values.
type ICatalog interface {
	Publish(ctx context.Context, payload model.RemotePayload) (string, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.RemoteRecord, error)
	// Get returns nil, nil when the record does not exist.
	Get(ctx context.Context, id string) (*model.RemoteRecord, error)
	Update(ctx context.Context, id string, patch model.RemotePatch) (bool, error)
	Delete(ctx context.Context, id, ownerID string) (bool, error)
	ResetAll(ctx context.Context, ownerID, confirmationToken string) (int, error)
}

// IRecordCache caches catalog reads.
type IRecordCache interface {
	GetRecord(ctx context.Context, id string) (*model.RemoteRecord, error)
	SetRecord(ctx context.Context, record *model.RemoteRecord) error
	Invalidate(ctx context.Context, ids ...string) error
}
