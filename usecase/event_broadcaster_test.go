package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) PublishEvent(ctx context.Context, ev model.PipelineEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func TestBroadcasterFansOut(t *testing.T) {
	called := make(chan struct{})
	failing := new(mockSink)
	failing.On("PublishEvent", mock.Anything, mock.AnythingOfType("model.PipelineEvent")).
		Run(func(mock.Arguments) { close(called) }).
		Return(errors.New("broker down")).Once()
	ok := &recordingEvents{}

	b := usecase.NewEventBroadcaster(failing, nil, ok)
	err := b.PublishEvent(context.Background(), model.PipelineEvent{Type: model.EventConnectivityRestored})
	assert.NoError(t, err)

	assert.Eventually(t, func() bool { return len(ok.types()) == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("failing sink never called")
	}

	ok.mu.Lock()
	defer ok.mu.Unlock()
	assert.False(t, ok.events[0].OccurredAt.IsZero())
}
