package usecase_test

import (
	"context"
	"fmt"
	"sync"

	"publish-pipeline/domain/model"

	"github.com/stretchr/testify/mock"
)

// memRepo is an in-memory IDraftRepository.
type memRepo struct {
	mu     sync.Mutex
	drafts map[string]*model.Draft
	failOn string // operation name that returns an error
}

func newMemRepo() *memRepo { return &memRepo{drafts: map[string]*model.Draft{}} }

func (r *memRepo) Insert(_ context.Context, d *model.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "insert" {
		return fmt.Errorf("disk full")
	}
	r.drafts[d.ID] = d.Clone()
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drafts[id].Clone(), nil
}

func (r *memRepo) List(_ context.Context, ownerID string) ([]*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Draft
	for _, d := range r.drafts {
		if ownerID == "" || d.OwnerID == ownerID {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) Replace(_ context.Context, d *model.Draft) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[d.ID]; !ok {
		return false, nil
	}
	r.drafts[d.ID] = d.Clone()
	return true, nil
}

func (r *memRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[id]; !ok {
		return false, nil
	}
	delete(r.drafts, id)
	return true, nil
}

// memCatalog is a remote catalog that can be switched offline. When gate is set,
// Publish blocks until it is closed.
type memCatalog struct {
	mu        sync.Mutex
	records   map[string]*model.RemoteRecord
	offline   bool
	rejectAll bool
	gate      chan struct{}
	entered   chan struct{}
	calls     int
	seq       int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{records: map[string]*model.RemoteRecord{}}
}

func (c *memCatalog) setOffline(v bool) {
	c.mu.Lock()
	c.offline = v
	c.mu.Unlock()
}

func (c *memCatalog) publishCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *memCatalog) Publish(ctx context.Context, p model.RemotePayload) (string, error) {
	c.mu.Lock()
	c.calls++
	gate, entered := c.gate, c.entered
	c.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offline {
		return "", model.Unreachable("publish", fmt.Errorf("connection refused"))
	}
	if c.rejectAll {
		return "", &model.GatewayError{Kind: model.GatewayRejected, Op: "publish", StatusCode: 422, Message: "title required"}
	}
	c.seq++
	id := fmt.Sprintf("vid_%d", c.seq)
	media := p.Media
	c.records[id] = &model.RemoteRecord{ID: id, OwnerID: p.OwnerID, Title: p.Title, Media: &media}
	return id, nil
}

func (c *memCatalog) ListByOwner(_ context.Context, ownerID string) ([]model.RemoteRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.RemoteRecord
	for _, r := range c.records {
		if r.OwnerID == ownerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (c *memCatalog) Get(_ context.Context, id string) (*model.RemoteRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offline {
		return nil, model.Unreachable("get", nil)
	}
	r, ok := c.records[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (c *memCatalog) Update(_ context.Context, id string, patch model.RemotePatch) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[id]
	if !ok {
		return false, nil
	}
	if patch.Title != nil {
		r.Title = *patch.Title
	}
	return true, nil
}

func (c *memCatalog) Delete(_ context.Context, id, _ string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.records[id]
	delete(c.records, id)
	return ok, nil
}

func (c *memCatalog) ResetAll(_ context.Context, ownerID, _ string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, r := range c.records {
		if r.OwnerID == ownerID {
			delete(c.records, id)
			n++
		}
	}
	return n, nil
}

// mockConn is a testify mock of the connectivity source.
type mockConn struct {
	mock.Mock
}

func newMockConn(reachable bool) *mockConn {
	m := new(mockConn)
	m.On("IsReachable", mock.Anything).Return(reachable).Maybe()
	m.On("Snapshot").Return(model.ConnectivitySnapshot{Reachable: reachable}).Maybe()
	return m
}

func (m *mockConn) IsReachable(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockConn) Snapshot() model.ConnectivitySnapshot {
	return m.Called().Get(0).(model.ConnectivitySnapshot)
}

func (m *mockConn) OnRestored(fn func()) {
	m.Called(fn)
}

// mockCatalog is a testify mock of the remote catalog for interaction checks.
type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Publish(ctx context.Context, p model.RemotePayload) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *mockCatalog) ListByOwner(ctx context.Context, ownerID string) ([]model.RemoteRecord, error) {
	args := m.Called(ctx, ownerID)
	l, _ := args.Get(0).([]model.RemoteRecord)
	return l, args.Error(1)
}

func (m *mockCatalog) Get(ctx context.Context, id string) (*model.RemoteRecord, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*model.RemoteRecord)
	return r, args.Error(1)
}

func (m *mockCatalog) Update(ctx context.Context, id string, patch model.RemotePatch) (bool, error) {
	args := m.Called(ctx, id, patch)
	return args.Bool(0), args.Error(1)
}

func (m *mockCatalog) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockCatalog) ResetAll(ctx context.Context, ownerID, token string) (int, error) {
	args := m.Called(ctx, ownerID, token)
	return args.Int(0), args.Error(1)
}

// recordingEvents keeps every published event.
type recordingEvents struct {
	mu     sync.Mutex
	events []model.PipelineEvent
}

func (r *recordingEvents) PublishEvent(_ context.Context, ev model.PipelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEvents) types() []model.PipelineEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PipelineEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
