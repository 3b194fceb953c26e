package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"
	"publish-pipeline/infrastructure/utils"

	"github.com/google/uuid"
)

// InterruptedMessage is written on drafts found pending at startup.
const InterruptedMessage = "interrupted during republish"

type IDraftStore interface {
	Create(ctx context.Context, ownerID string, payload model.Payload, status model.DraftStatus, errMsg string) (*model.Draft, error)
	// Get returns nil, nil when the draft does not exist.
	Get(ctx context.Context, id string) (*model.Draft, error)
	// List sorts by UpdatedAt, newest first. An empty ownerID lists everyone.
	List(ctx context.Context, ownerID string) ([]*model.Draft, error)
	// Update returns false when id is unknown.
	Update(ctx context.Context, id string, patch model.DraftPatch) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteIfUnchanged deletes the draft only while its UpdatedAt still equals
	// version. It returns false when the draft is gone or was modified since.
	DeleteIfUnchanged(ctx context.Context, id string, version time.Time) (bool, error)
	Stats(ctx context.Context) (model.DraftStats, error)
	ReconcilePending(ctx context.Context) (int, error)
}

// draftStore serializes every mutation; the repository makes each one atomic on disk.
type draftStore struct {
	repo        repository.IDraftRepository
	mu          sync.Mutex
	now         func() time.Time
	newID       func() string
	lastCreated time.Time // creation times are unique so oldest-first has no ties
}

func NewDraftStore(repo repository.IDraftRepository) IDraftStore {
	return &draftStore{
		repo:  repo,
		now:   utils.GetCurrentTime,
		newID: func() string { return model.DraftIDPrefix + uuid.NewString() },
	}
}

func (s *draftStore) Create(ctx context.Context, ownerID string, payload model.Payload, status model.DraftStatus, errMsg string) (*model.Draft, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", model.ErrInvalidSubmission)
	}
	if status == "" {
		status = model.DraftStatusDraft
	}
	if status != model.DraftStatusDraft && status != model.DraftStatusFailed {
		return nil, fmt.Errorf("%w: drafts are created as draft or failed, got %q", model.ErrInvalidSubmission, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.bump(s.lastCreated)
	s.lastCreated = now
	d := &model.Draft{
		ID:           s.newID(),
		OwnerID:      ownerID,
		Payload:      payload,
		Status:       status,
		ErrorMessage: errMsg,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d = d.Clone()
	if err := s.repo.Insert(ctx, d); err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"draftId": d.ID,
		"ownerId": ownerID,
		"status":  status,
	}).Info("Draft created")
	return d.Clone(), nil
}

func (s *draftStore) Get(ctx context.Context, id string) (*model.Draft, error) {
	if !model.IsDraftID(id) {
		return nil, nil
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}
	return d.Clone(), nil
}

func (s *draftStore) List(ctx context.Context, ownerID string) ([]*model.Draft, error) {
	list, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	out := make([]*model.Draft, 0, len(list))
	for _, d := range list {
		out = append(out, d.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *draftStore) Update(ctx context.Context, id string, patch model.DraftPatch) (bool, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return false, fmt.Errorf("%w: unknown status %q", model.ErrInvalidSubmission, *patch.Status)
	}
	if !model.IsDraftID(id) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get draft %s: %w", id, err)
	}
	if cur == nil {
		return false, nil
	}
	next := cur.Clone()
	if patch.Payload != nil {
		next.Payload = patch.Payload.Apply(cur.Payload)
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.ErrorMessage != nil {
		next.ErrorMessage = *patch.ErrorMessage
	}
	if patch.Attempts != nil {
		next.Attempts = *patch.Attempts
	}
	next.UpdatedAt = s.bump(cur.UpdatedAt)

	ok, err := s.repo.Replace(ctx, next.Clone())
	if err != nil {
		return false, fmt.Errorf("replace draft %s: %w", id, err)
	}
	return ok, nil
}

// timestampResolution is the coarsest precision among the backends (BSON dates).
const timestampResolution = time.Millisecond

// bump keeps UpdatedAt strictly increasing even when the clock stalls.
func (s *draftStore) bump(prev time.Time) time.Time {
	now := s.now().Truncate(timestampResolution)
	if !now.After(prev) {
		now = prev.Truncate(timestampResolution).Add(timestampResolution)
	}
	return now
}

func (s *draftStore) Delete(ctx context.Context, id string) (bool, error) {
	if !model.IsDraftID(id) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete draft %s: %w", id, err)
	}
	if ok {
		logger.GetLogger().WithField("draftId", id).Info("Draft deleted")
	}
	return ok, nil
}

func (s *draftStore) DeleteIfUnchanged(ctx context.Context, id string, version time.Time) (bool, error) {
	if !model.IsDraftID(id) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get draft %s: %w", id, err)
	}
	if cur == nil || !cur.UpdatedAt.Equal(version) {
		return false, nil
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete draft %s: %w", id, err)
	}
	if ok {
		logger.GetLogger().WithField("draftId", id).Info("Draft deleted")
	}
	return ok, nil
}

func (s *draftStore) Stats(ctx context.Context) (model.DraftStats, error) {
	list, err := s.repo.List(ctx, "")
	if err != nil {
		return model.DraftStats{}, fmt.Errorf("list drafts: %w", err)
	}
	var st model.DraftStats
	for _, d := range list {
		st.Total++
		switch d.Status {
		case model.DraftStatusDraft:
			st.Draft++
		case model.DraftStatusFailed:
			st.Failed++
		case model.DraftStatusPending:
			st.Pending++
		}
	}
	return st, nil
}

// ReconcilePending turns every pending draft into failed. It runs once at boot,
// before any republish can start.
func (s *draftStore) ReconcilePending(ctx context.Context) (int, error) {
	list, err := s.repo.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list drafts: %w", err)
	}
	failed := model.DraftStatusFailed
	msg := InterruptedMessage
	n := 0
	for _, d := range list {
		if d.Status != model.DraftStatusPending {
			continue
		}
		ok, err := s.Update(ctx, d.ID, model.DraftPatch{Status: &failed, ErrorMessage: &msg})
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		logger.GetLogger().WithField("count", n).Warn("Reconciled drafts left pending by a previous run")
	}
	return n, nil
}
