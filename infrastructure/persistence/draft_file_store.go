package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"publish-pipeline/domain/model"
)

const draftFileVersion = 1

type draftFile struct {
	Version int                     `json:"version"`
	Drafts  map[string]*model.Draft `json:"drafts"`
}

// DraftFileStore keeps the whole draft collection in one JSON file keyed by id.
// Every mutation rewrites the file through a temp file and a rename.
type DraftFileStore struct {
	path   string
	mu     sync.RWMutex
	drafts map[string]*model.Draft
}

// NewDraftFileStore loads path, treating a missing file as an empty collection.
func NewDraftFileStore(path string) (*DraftFileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("draft file path required")
	}
	s := &DraftFileStore{path: path, drafts: map[string]*model.Draft{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	var f draftFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for id, d := range f.Drafts {
		if d == nil {
			continue
		}
		d.ID = id
		s.drafts[id] = d
	}
	return s, nil
}

func (s *DraftFileStore) Insert(ctx context.Context, draft *model.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[draft.ID]; ok {
		return fmt.Errorf("draft %s already exists", draft.ID)
	}
	next := s.copyWith(draft.ID, draft.Clone())
	if err := s.save(next); err != nil {
		return err
	}
	s.drafts = next
	return nil
}

func (s *DraftFileStore) GetByID(ctx context.Context, id string) (*model.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drafts[id].Clone(), nil
}

func (s *DraftFileStore) List(ctx context.Context, ownerID string) ([]*model.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		if ownerID != "" && d.OwnerID != ownerID {
			continue
		}
		out = append(out, d.Clone())
	}
	return out, nil
}

func (s *DraftFileStore) Replace(ctx context.Context, draft *model.Draft) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[draft.ID]; !ok {
		return false, nil
	}
	next := s.copyWith(draft.ID, draft.Clone())
	if err := s.save(next); err != nil {
		return false, err
	}
	s.drafts = next
	return true, nil
}

func (s *DraftFileStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[id]; !ok {
		return false, nil
	}
	next := s.copyWith("", nil)
	delete(next, id)
	if err := s.save(next); err != nil {
		return false, err
	}
	s.drafts = next
	return true, nil
}

// copyWith returns a shallow copy of the collection with id set to d. The live map
// is only swapped after the file write succeeds.
func (s *DraftFileStore) copyWith(id string, d *model.Draft) map[string]*model.Draft {
	next := make(map[string]*model.Draft, len(s.drafts)+1)
	for k, v := range s.drafts {
		next[k] = v
	}
	if id != "" {
		next[id] = d
	}
	return next
}

func (s *DraftFileStore) save(drafts map[string]*model.Draft) error {
	data, err := json.MarshalIndent(draftFile{Version: draftFileVersion, Drafts: drafts}, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
