package repository

import (
	"context"

	"publish-pipeline/domain/model"
)

// IMediaEncoder turns a media reference into a durable payload or fails with
// *model.EncodingError.
type IMediaEncoder interface {
	Materialize(ctx context.Context, ref model.MediaReference) (model.DurablePayload, error)
}

// IConnectivity is the read side of the connectivity probe.
type IConnectivity interface {
	IsReachable(ctx context.Context) bool
	Snapshot() model.ConnectivitySnapshot
	OnRestored(fn func())
}
