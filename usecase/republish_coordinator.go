package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"
	"publish-pipeline/infrastructure/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var errDraftGone = errors.New("draft no longer exists")

// EditedDuringPublishMessage prefixes the remote id on drafts whose edits arrived
// after their earlier content was published.
const EditedDuringPublishMessage = "edited while publishing; earlier version published as"

type IRepublishCoordinator interface {
	// RepublishAllFailed drains every failed draft oldest first. A call made while a
	// cycle is running returns immediately with Skipped set.
	RepublishAllFailed(ctx context.Context) (model.DrainResult, error)
	// RepublishOne retries a single draft and returns the remote id.
	RepublishOne(ctx context.Context, id string) (string, error)
	OnDrainCompleted(fn func(model.DrainResult))
	Draining() bool
	Start(ctx context.Context, conn repository.IConnectivity)
}

type RepublishConfig struct {
	Delay          time.Duration // minimum gap between consecutive attempts
	AttemptTimeout time.Duration
}

type RepublishCoordinator struct {
	store          IDraftStore
	catalog        repository.ICatalog
	encoder        repository.IMediaEncoder
	events         repository.IEventPublisher
	limiter        *rate.Limiter
	attemptTimeout time.Duration

	busy  atomic.Bool
	group singleflight.Group

	mu        sync.Mutex
	inFlight  map[string]struct{}
	listeners []func(model.DrainResult)
}

func NewRepublishCoordinator(store IDraftStore, catalog repository.ICatalog, encoder repository.IMediaEncoder, events repository.IEventPublisher, cfg RepublishConfig) *RepublishCoordinator {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if events == nil {
		events = noopEvents{}
	}
	return &RepublishCoordinator{
		store:          store,
		catalog:        catalog,
		encoder:        encoder,
		events:         events,
		limiter:        rate.NewLimiter(limit, 1),
		attemptTimeout: cfg.AttemptTimeout,
		inFlight:       make(map[string]struct{}),
	}
}

// Start drains on every connectivity restored edge.
func (c *RepublishCoordinator) Start(ctx context.Context, conn repository.IConnectivity) {
	conn.OnRestored(func() {
		if ctx.Err() != nil {
			return
		}
		logger.GetLogger().Info("Connectivity restored, draining failed drafts")
		if _, err := c.RepublishAllFailed(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Drain cycle ended early")
		}
	})
}

func (c *RepublishCoordinator) OnDrainCompleted(fn func(model.DrainResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *RepublishCoordinator) Draining() bool {
	return c.busy.Load()
}

func (c *RepublishCoordinator) RepublishAllFailed(ctx context.Context) (model.DrainResult, error) {
	if !c.busy.CompareAndSwap(false, true) {
		logger.GetLogger().Info("Drain cycle already running, trigger skipped")
		return model.DrainResult{Skipped: true}, nil
	}
	defer c.busy.Store(false)

	res := model.DrainResult{StartedAt: utils.GetCurrentTime()}
	candidates, err := c.candidates(ctx)
	if err != nil {
		return res, err
	}

	var cycleErr error
	for _, d := range candidates {
		if err := c.limiter.Wait(ctx); err != nil {
			cycleErr = err
			break
		}
		_, err := c.attempt(ctx, d.ID)
		if errors.Is(err, errDraftGone) {
			continue
		}
		res.Attempted++
		if err != nil {
			res.Failed++
			res.Failures = append(res.Failures, model.DrainFailure{DraftID: d.ID, Error: err.Error()})
			continue
		}
		res.Succeeded++
	}
	res.EndedAt = utils.GetCurrentTime()

	logger.GetLogger().WithFields(map[string]interface{}{
		"attempted": res.Attempted,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
	}).Info("Drain cycle completed")
	c.notify(ctx, res)
	return res, cycleErr
}

// candidates snapshots failed drafts plus pending drafts nobody is working on,
// oldest first.
func (c *RepublishCoordinator) candidates(ctx context.Context) ([]*model.Draft, error) {
	all, err := c.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]*model.Draft, 0, len(all))
	for _, d := range all {
		switch d.Status {
		case model.DraftStatusFailed:
			out = append(out, d)
		case model.DraftStatusPending:
			if !c.isInFlight(d.ID) {
				out = append(out, d)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (c *RepublishCoordinator) notify(ctx context.Context, res model.DrainResult) {
	c.mu.Lock()
	listeners := append([]func(model.DrainResult){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(res)
	}
	r := res
	_ = c.events.PublishEvent(ctx, model.PipelineEvent{
		Type:       model.EventDrainCompleted,
		Result:     &r,
		OccurredAt: res.EndedAt,
	})
}

func (c *RepublishCoordinator) RepublishOne(ctx context.Context, id string) (string, error) {
	if c.busy.Load() {
		return "", model.ErrDrainInProgress
	}
	remoteID, err := c.attempt(ctx, id)
	if errors.Is(err, errDraftGone) {
		return "", model.ErrDraftNotFound
	}
	return remoteID, err
}

// attempt runs one draft through publish. Concurrent attempts on the same draft
// share a single execution.
func (c *RepublishCoordinator) attempt(ctx context.Context, id string) (string, error) {
	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		return c.publishDraft(context.WithoutCancel(ctx), id)
	})
	remoteID, _ := v.(string)
	return remoteID, err
}

func (c *RepublishCoordinator) publishDraft(ctx context.Context, id string) (string, error) {
	c.setInFlight(id, true)
	defer c.setInFlight(id, false)

	pending := model.DraftStatusPending
	ok, err := c.store.Update(ctx, id, model.DraftPatch{Status: &pending})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errDraftGone
	}
	// The copy read here is what gets published; its UpdatedAt guards the delete.
	d, err := c.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", errDraftGone
	}
	log := logger.GetLogger().WithFields(map[string]interface{}{
		"draftId":  id,
		"ownerId":  d.OwnerID,
		"attempts": d.Attempts + 1,
	})

	media, err := c.encoder.Materialize(ctx, d.Payload.Media)
	if err != nil {
		return "", c.markFailed(ctx, d, err)
	}

	actx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	remoteID, err := c.catalog.Publish(actx, model.NewRemotePayload(d.OwnerID, d.ID, d.Payload, media))
	cancel()
	if err != nil {
		return "", c.markFailed(ctx, d, err)
	}

	deleted, err := c.store.DeleteIfUnchanged(ctx, id, d.UpdatedAt)
	if err != nil {
		// Left pending; the next cycle re-validates it and the catalog dedups by draft id.
		log.WithField("error", err).Error("Published draft could not be removed")
		return remoteID, err
	}
	if !deleted {
		c.keepEdited(ctx, id, remoteID, log)
	}
	log.WithField("remoteId", remoteID).Info("Draft republished")
	_ = c.events.PublishEvent(ctx, model.PipelineEvent{
		Type:       model.EventDraftPublished,
		OwnerID:    d.OwnerID,
		DraftID:    id,
		RemoteID:   remoteID,
		OccurredAt: utils.GetCurrentTime(),
	})
	return remoteID, nil
}

// keepEdited handles a draft changed while its earlier content was being published.
// The edit stays local as a plain draft.
func (c *RepublishCoordinator) keepEdited(ctx context.Context, id, remoteID string, log *logrus.Entry) {
	status := model.DraftStatusDraft
	msg := fmt.Sprintf("%s %s", EditedDuringPublishMessage, remoteID)
	ok, err := c.store.Update(ctx, id, model.DraftPatch{Status: &status, ErrorMessage: &msg})
	if err != nil {
		log.WithField("error", err).Error("Edited draft could not be released")
		return
	}
	if ok {
		log.WithField("remoteId", remoteID).Warn("Draft edited during publish, kept as draft")
	}
}

func (c *RepublishCoordinator) markFailed(ctx context.Context, d *model.Draft, cause error) error {
	failed := model.DraftStatusFailed
	msg := cause.Error()
	attempts := d.Attempts + 1
	logger.GetLogger().WithFields(map[string]interface{}{
		"draftId":  d.ID,
		"attempts": attempts,
		"error":    msg,
	}).Warn("Republish attempt failed")
	if _, err := c.store.Update(ctx, d.ID, model.DraftPatch{Status: &failed, ErrorMessage: &msg, Attempts: &attempts}); err != nil {
		return fmt.Errorf("%w (marking failed: %w)", cause, err)
	}
	return cause
}

func (c *RepublishCoordinator) setInFlight(id string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.inFlight[id] = struct{}{}
	} else {
		delete(c.inFlight, id)
	}
}

func (c *RepublishCoordinator) isInFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[id]
	return ok
}
