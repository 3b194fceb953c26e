package usecase

import (
	"context"
	"fmt"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"
	"publish-pipeline/infrastructure/utils"
)

// PublishResult tells the caller where a submission ended up. Exactly one of
// RemoteID and DraftID is set.
type PublishResult struct {
	RemoteID string `json:"remote_id,omitempty"`
	DraftID  string `json:"draft_id,omitempty"`
	Drafted  bool   `json:"drafted"`
	Reason   string `json:"reason,omitempty"`
}

// Submission is either a local draft or a remote catalog record.
type Submission struct {
	Draft  *model.Draft        `json:"draft,omitempty"`
	Record *model.RemoteRecord `json:"record,omitempty"`
}

type IPublisher interface {
	Publish(ctx context.Context, ownerID string, payload model.Payload) (PublishResult, error)
	SaveDraft(ctx context.Context, ownerID string, payload model.Payload) (*model.Draft, error)
	// Get resolves draft ids locally and everything else against the catalog. It
	// returns nil, nil when nothing matches.
	Get(ctx context.Context, id string) (*Submission, error)
	List(ctx context.Context, ownerID string) ([]*model.Draft, error)
	Stats(ctx context.Context) (model.DraftStats, error)
	// UpdateDraft merges patch into the stored payload.
	UpdateDraft(ctx context.Context, id string, patch model.PayloadPatch) (*model.Draft, error)
	DeleteDraft(ctx context.Context, id string) (bool, error)
	Republish(ctx context.Context, id string) (string, error)
	RepublishAllFailed(ctx context.Context) (model.DrainResult, error)
	Connectivity() model.ConnectivitySnapshot

	ListRemote(ctx context.Context, ownerID string) ([]model.RemoteRecord, error)
	UpdateRemote(ctx context.Context, id string, patch model.RemotePatch) (bool, error)
	DeleteRemote(ctx context.Context, id, ownerID string) (bool, error)
	IssueResetToken(ownerID string) (string, time.Time, error)
	ResetCatalog(ctx context.Context, ownerID, token string) (int, error)
}

type Publisher struct {
	store       IDraftStore
	catalog     repository.ICatalog
	encoder     repository.IMediaEncoder
	conn        repository.IConnectivity
	coordinator IRepublishCoordinator
	events      repository.IEventPublisher
	secretKey   string
}

func NewPublisher(store IDraftStore, catalog repository.ICatalog, encoder repository.IMediaEncoder, conn repository.IConnectivity, coordinator IRepublishCoordinator, events repository.IEventPublisher, secretKey string) *Publisher {
	if events == nil {
		events = noopEvents{}
	}
	return &Publisher{
		store:       store,
		catalog:     catalog,
		encoder:     encoder,
		conn:        conn,
		coordinator: coordinator,
		events:      events,
		secretKey:   secretKey,
	}
}

var _ IPublisher = (*Publisher)(nil)

// Publish materializes the media first so a drafted submission never depends on
// an ephemeral handle. Unreachable catalogs and unencodable media leave a failed
// draft behind; a rejection is returned to the caller as is.
func (p *Publisher) Publish(ctx context.Context, ownerID string, payload model.Payload) (PublishResult, error) {
	if ownerID == "" {
		return PublishResult{}, fmt.Errorf("%w: owner id required", model.ErrInvalidSubmission)
	}
	if payload.Media.IsEmpty() {
		return PublishResult{}, fmt.Errorf("%w: media required", model.ErrInvalidSubmission)
	}
	log := logger.GetLogger().WithField("ownerId", ownerID)

	reachable := p.conn.IsReachable(ctx)

	media, err := p.encoder.Materialize(ctx, payload.Media)
	if err != nil {
		log.WithField("error", err).Warn("Media could not be materialized, saving as failed draft")
		return p.draftFailed(ctx, ownerID, payload, err)
	}
	payload.Media = model.NewDurableReference(media)

	if !reachable {
		log.Info("Catalog unreachable, saving as failed draft")
		return p.draftFailed(ctx, ownerID, payload, model.Unreachable("publish", nil))
	}

	remoteID, err := p.catalog.Publish(ctx, model.NewRemotePayload(ownerID, "", payload, media))
	if err != nil {
		if model.IsRetryable(err) {
			log.WithField("error", err).Warn("Publish failed, saving as failed draft")
			return p.draftFailed(ctx, ownerID, payload, err)
		}
		return PublishResult{}, err
	}
	log.WithField("remoteId", remoteID).Info("Published")
	return PublishResult{RemoteID: remoteID}, nil
}

func (p *Publisher) draftFailed(ctx context.Context, ownerID string, payload model.Payload, cause error) (PublishResult, error) {
	d, err := p.store.Create(ctx, ownerID, payload, model.DraftStatusFailed, cause.Error())
	if err != nil {
		return PublishResult{}, fmt.Errorf("save draft after failed publish: %w", err)
	}
	p.emit(ctx, model.EventDraftSaved, d)
	return PublishResult{DraftID: d.ID, Drafted: true, Reason: cause.Error()}, nil
}

func (p *Publisher) emit(ctx context.Context, t model.PipelineEventType, d *model.Draft) {
	_ = p.events.PublishEvent(ctx, model.PipelineEvent{
		Type:       t,
		OwnerID:    d.OwnerID,
		DraftID:    d.ID,
		OccurredAt: utils.GetCurrentTime(),
	})
}

// SaveDraft stores a submission without publishing it. Media is made durable when
// possible; otherwise the original reference is kept.
func (p *Publisher) SaveDraft(ctx context.Context, ownerID string, payload model.Payload) (*model.Draft, error) {
	if !payload.Media.IsEmpty() {
		if media, err := p.encoder.Materialize(ctx, payload.Media); err == nil {
			payload.Media = model.NewDurableReference(media)
		} else {
			logger.GetLogger().WithField("error", err).Debug("Draft saved with non-durable media")
		}
	}
	d, err := p.store.Create(ctx, ownerID, payload, model.DraftStatusDraft, "")
	if err != nil {
		return nil, err
	}
	p.emit(ctx, model.EventDraftSaved, d)
	return d, nil
}

func (p *Publisher) Get(ctx context.Context, id string) (*Submission, error) {
	if model.IsDraftID(id) {
		d, err := p.store.Get(ctx, id)
		if err != nil || d == nil {
			return nil, err
		}
		return &Submission{Draft: d}, nil
	}
	rec, err := p.catalog.Get(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return &Submission{Record: rec}, nil
}

func (p *Publisher) List(ctx context.Context, ownerID string) ([]*model.Draft, error) {
	return p.store.List(ctx, ownerID)
}

func (p *Publisher) Stats(ctx context.Context) (model.DraftStats, error) {
	return p.store.Stats(ctx)
}

func (p *Publisher) UpdateDraft(ctx context.Context, id string, patch model.PayloadPatch) (*model.Draft, error) {
	if patch.Media != nil {
		if patch.Media.IsEmpty() {
			return nil, fmt.Errorf("%w: media cannot be cleared", model.ErrInvalidSubmission)
		}
		if media, err := p.encoder.Materialize(ctx, *patch.Media); err == nil {
			durable := model.NewDurableReference(media)
			patch.Media = &durable
		} else {
			logger.GetLogger().WithField("error", err).Debug("Draft updated with non-durable media")
		}
	}
	ok, err := p.store.Update(ctx, id, model.DraftPatch{Payload: &patch})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrDraftNotFound
	}
	d, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, model.ErrDraftNotFound
	}
	return d, nil
}

func (p *Publisher) DeleteDraft(ctx context.Context, id string) (bool, error) {
	return p.store.Delete(ctx, id)
}

func (p *Publisher) Republish(ctx context.Context, id string) (string, error) {
	if !model.IsDraftID(id) {
		return "", model.ErrDraftNotFound
	}
	return p.coordinator.RepublishOne(ctx, id)
}

func (p *Publisher) RepublishAllFailed(ctx context.Context) (model.DrainResult, error) {
	return p.coordinator.RepublishAllFailed(ctx)
}

func (p *Publisher) Connectivity() model.ConnectivitySnapshot {
	return p.conn.Snapshot()
}

func (p *Publisher) ListRemote(ctx context.Context, ownerID string) ([]model.RemoteRecord, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", model.ErrInvalidSubmission)
	}
	return p.catalog.ListByOwner(ctx, ownerID)
}

func (p *Publisher) UpdateRemote(ctx context.Context, id string, patch model.RemotePatch) (bool, error) {
	if model.IsDraftID(id) {
		return false, nil
	}
	return p.catalog.Update(ctx, id, patch)
}

func (p *Publisher) DeleteRemote(ctx context.Context, id, ownerID string) (bool, error) {
	if model.IsDraftID(id) {
		return false, nil
	}
	return p.catalog.Delete(ctx, id, ownerID)
}

// IssueResetToken signs a short-lived confirmation bound to ownerID.
func (p *Publisher) IssueResetToken(ownerID string) (string, time.Time, error) {
	if ownerID == "" {
		return "", time.Time{}, fmt.Errorf("%w: owner id required", model.ErrInvalidSubmission)
	}
	now := utils.GetCurrentTime()
	token, err := utils.GenerateResetToken(ownerID, p.secretKey, now)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, now.Add(utils.ResetTokenTTL), nil
}

func (p *Publisher) ResetCatalog(ctx context.Context, ownerID, token string) (int, error) {
	if err := utils.VerifyResetToken(token, ownerID, p.secretKey); err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrInvalidSubmission, err)
	}
	n, err := p.catalog.ResetAll(ctx, ownerID, token)
	if err != nil {
		return 0, err
	}
	logger.GetLogger().WithFields(map[string]interface{}{"ownerId": ownerID, "deleted": n}).Warn("Catalog reset")
	return n, nil
}
