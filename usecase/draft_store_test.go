package usecase_test

import (
	"context"
	"testing"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload(title string) model.Payload {
	return model.Payload{
		Title: title,
		Tags:  []string{"a"},
		Media: model.NewDurableReference(model.DurablePayload{MimeType: "video/mp4", Size: 3, Data: "data:video/mp4;base64,AAAA"}),
	}
}

func TestDraftStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewDraftStore(newMemRepo())

	d, err := store.Create(ctx, "u1", samplePayload("one"), "", "")
	require.NoError(t, err)
	assert.True(t, model.IsDraftID(d.ID))
	assert.Equal(t, model.DraftStatusDraft, d.Status)
	assert.Equal(t, d.CreatedAt, d.UpdatedAt)

	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Payload.Title)

	got.Payload.Tags[0] = "mutated"
	again, _ := store.Get(ctx, d.ID)
	assert.Equal(t, "a", again.Payload.Tags[0])

	missing, err := store.Get(ctx, "draft_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	remote, err := store.Get(ctx, "vid_1")
	require.NoError(t, err)
	assert.Nil(t, remote)
}

func TestDraftStoreCreateValidation(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewDraftStore(newMemRepo())

	_, err := store.Create(ctx, "", samplePayload("x"), model.DraftStatusDraft, "")
	assert.ErrorIs(t, err, model.ErrInvalidSubmission)

	_, err = store.Create(ctx, "u1", samplePayload("x"), model.DraftStatusPending, "")
	assert.ErrorIs(t, err, model.ErrInvalidSubmission)

	d, err := store.Create(ctx, "u1", samplePayload("x"), model.DraftStatusFailed, "offline")
	require.NoError(t, err)
	assert.Equal(t, "offline", d.ErrorMessage)
}

func TestDraftStoreCreateRepositoryError(t *testing.T) {
	repo := newMemRepo()
	repo.failOn = "insert"
	store := usecase.NewDraftStore(repo)

	_, err := store.Create(context.Background(), "u1", samplePayload("x"), "", "")
	assert.Error(t, err)
}

func TestDraftStoreUpdateBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewDraftStore(newMemRepo())
	d, err := store.Create(ctx, "u1", samplePayload("x"), "", "")
	require.NoError(t, err)

	prev := d.UpdatedAt
	for i := 0; i < 3; i++ {
		failed := model.DraftStatusFailed
		ok, err := store.Update(ctx, d.ID, model.DraftPatch{Status: &failed})
		require.NoError(t, err)
		require.True(t, ok)
		cur, _ := store.Get(ctx, d.ID)
		// millisecond steps survive backends that store BSON dates
		assert.True(t, cur.UpdatedAt.Sub(prev) >= time.Millisecond)
		assert.True(t, cur.UpdatedAt.Equal(cur.UpdatedAt.Truncate(time.Millisecond)))
		prev = cur.UpdatedAt
	}

	got, _ := store.Get(ctx, d.ID)
	assert.Equal(t, d.OwnerID, got.OwnerID)
	assert.Equal(t, d.CreatedAt, got.CreatedAt)
	assert.Equal(t, "x", got.Payload.Title)
}

func TestDraftStoreUpdateUnknown(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewDraftStore(newMemRepo())
	msg := "m"

	ok, err := store.Update(ctx, "draft_nope", model.DraftPatch{ErrorMessage: &msg})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Update(ctx, "vid_1", model.DraftPatch{ErrorMessage: &msg})
	require.NoError(t, err)
	assert.False(t, ok)

	bad := model.DraftStatus("published")
	_, err = store.Update(ctx, "draft_nope", model.DraftPatch{Status: &bad})
	assert.ErrorIs(t, err, model.ErrInvalidSubmission)
}

func TestDraftStoreListSortedAndFiltered(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewDraftStore(newMemRepo())
	a, _ := store.Create(ctx, "u1", samplePayload("a"), "", "")
	b, _ := store.Create(ctx, "u1", samplePayload("b"), "", "")
	_, _ = store.Create(ctx, "u2", samplePayload("c"), "", "")

	title := "a2"
	_, err := store.Update(ctx, a.ID, model.DraftPatch{Payload: &model.PayloadPatch{Title: &title}})
	require.NoError(t, err)

	list, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDraftStoreDeleteAndStats(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewDraftStore(newMemRepo())
	a, _ := store.Create(ctx, "u1", samplePayload("a"), "", "")
	_, _ = store.Create(ctx, "u1", samplePayload("b"), model.DraftStatusFailed, "offline")
	c, _ := store.Create(ctx, "u2", samplePayload("c"), "", "")
	pending := model.DraftStatusPending
	_, _ = store.Update(ctx, c.ID, model.DraftPatch{Status: &pending})

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DraftStats{Total: 3, Draft: 1, Failed: 1, Pending: 1}, st)

	ok, err := store.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, _ = store.Delete(ctx, "vid_9")
	assert.False(t, ok)

	st, _ = store.Stats(ctx)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 0, st.Draft)
}

func TestDraftStoreReconcilePending(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewDraftStore(newMemRepo())
	a, _ := store.Create(ctx, "u1", samplePayload("a"), "", "")
	b, _ := store.Create(ctx, "u1", samplePayload("b"), "", "")
	pending := model.DraftStatusPending
	_, _ = store.Update(ctx, a.ID, model.DraftPatch{Status: &pending})

	n, err := store.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := store.Get(ctx, a.ID)
	assert.Equal(t, model.DraftStatusFailed, got.Status)
	assert.Equal(t, usecase.InterruptedMessage, got.ErrorMessage)

	untouched, _ := store.Get(ctx, b.ID)
	assert.Equal(t, model.DraftStatusDraft, untouched.Status)

	n, _ = store.ReconcilePending(ctx)
	assert.Equal(t, 0, n)
}

func TestDraftStorePayloadPatchMerges(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewDraftStore(newMemRepo())
	d, err := store.Create(ctx, "u1", samplePayload("before"), "", "")
	require.NoError(t, err)

	desc := "new description"
	ok, err := store.Update(ctx, d.ID, model.DraftPatch{Payload: &model.PayloadPatch{Description: &desc}})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "before", got.Payload.Title)
	assert.Equal(t, "new description", got.Payload.Description)
	assert.Equal(t, []string{"a"}, got.Payload.Tags)
	assert.Equal(t, d.Payload.Media, got.Payload.Media)
}

func TestDraftStoreDeleteIfUnchanged(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewDraftStore(newMemRepo())
	d, err := store.Create(ctx, "u1", samplePayload("x"), "", "")
	require.NoError(t, err)

	title := "edited"
	_, err = store.Update(ctx, d.ID, model.DraftPatch{Payload: &model.PayloadPatch{Title: &title}})
	require.NoError(t, err)

	ok, err := store.DeleteIfUnchanged(ctx, d.ID, d.UpdatedAt)
	require.NoError(t, err)
	assert.False(t, ok)

	cur, _ := store.Get(ctx, d.ID)
	require.NotNil(t, cur)
	ok, err = store.DeleteIfUnchanged(ctx, d.ID, cur.UpdatedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteIfUnchanged(ctx, d.ID, cur.UpdatedAt)
	require.NoError(t, err)
	assert.False(t, ok)
}
