package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"publish-pipeline/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client(), time.Second)
}

func TestPublish(t *testing.T) {
	var got model.RemotePayload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"vid_123"}`))
	})

	id, err := c.Publish(context.Background(), model.RemotePayload{
		OwnerID: "u1",
		DraftID: "draft_x",
		Title:   "Sunset",
		Media:   model.DurablePayload{MimeType: "video/mp4", Size: 3, Data: "data:video/mp4;base64,YWJj"},
	})
	require.NoError(t, err)
	assert.Equal(t, "vid_123", id)
	assert.Equal(t, "draft_x", got.DraftID)
	assert.Equal(t, "video/mp4", got.Media.MimeType)
}

func TestPublishErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		target    error
		retryable bool
	}{
		{"validation", http.StatusUnprocessableEntity, `{"message":"title required"}`, model.ErrRejected, false},
		{"bad request", http.StatusBadRequest, `{}`, model.ErrRejected, false},
		{"conflict", http.StatusConflict, ``, model.ErrRejected, false},
		{"request timeout", http.StatusRequestTimeout, ``, model.ErrUnreachable, true},
		{"rate limited", http.StatusTooManyRequests, `{"message":"slow down"}`, model.ErrUnreachable, true},
		{"server error", http.StatusInternalServerError, `oops`, model.ErrUnreachable, true},
		{"bad gateway", http.StatusBadGateway, ``, model.ErrUnreachable, true},
		{"html on 200", http.StatusOK, `<html>captive portal</html>`, model.ErrUnreachable, true},
		{"empty 200", http.StatusOK, ``, model.ErrUnreachable, true},
		{"no id", http.StatusOK, `{"title":"x"}`, model.ErrUnreachable, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Publish(context.Background(), model.RemotePayload{OwnerID: "u1"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			assert.Equal(t, tc.retryable, model.IsRetryable(err))

			var gwErr *model.GatewayError
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, "publish", gwErr.Op)
		})
	}
}

func TestPublishRejectedCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"title required"}`))
	})
	_, err := c.Publish(context.Background(), model.RemotePayload{})
	assert.Contains(t, err.Error(), "title required")
}

func TestPublishTimeoutIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client(), 50*time.Millisecond)

	_, err := c.Publish(context.Background(), model.RemotePayload{OwnerID: "u1"})
	assert.ErrorIs(t, err, model.ErrUnreachable)
}

func TestPublishConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil, time.Second)
	_, err := c.Publish(context.Background(), model.RemotePayload{OwnerID: "u1"})
	assert.ErrorIs(t, err, model.ErrUnreachable)
}

func TestListByOwner(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", r.URL.Query().Get("ownerId"))
		_, _ = w.Write([]byte(`{"items":[{"id":"a","ownerId":"u1"},{"id":"b","ownerId":"u1"}]}`))
	})
	list, err := c.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[1].ID)

	arr := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a","ownerId":"u1"}]`))
	})
	list, err = arr.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos/a":
			_, _ = w.Write([]byte(`{"id":"a","ownerId":"u1","title":"T","media":{"mime_type":"video/mp4","size":1,"data":"data:video/mp4;base64,YQ=="}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	rec, err := c.Get(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "T", rec.Title)
	require.NotNil(t, rec.Media)
	assert.Equal(t, "video/mp4", rec.Media.MimeType)

	missing, err := c.Get(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateAndDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch && r.URL.Path == "/videos/a":
			b, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"title":"New"}`, string(b))
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete && r.URL.Path == "/videos/a":
			assert.Equal(t, "u1", r.URL.Query().Get("ownerId"))
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	title := "New"
	ok, err := c.Update(context.Background(), "a", model.RemotePatch{Title: &title})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Update(context.Background(), "b", model.RemotePatch{Title: &title})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Delete(context.Background(), "a", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Delete(context.Background(), "b", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetAll(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.ConfirmationToken != "tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"deletedCount":4}`))
	})
	n, err := c.ResetAll(context.Background(), "u1", "tok")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = c.ResetAll(context.Background(), "u1", "bad")
	assert.ErrorIs(t, err, model.ErrRejected)
}

func TestHealthURL(t *testing.T) {
	c := NewClient("http://catalog:8090/", nil, 0)
	assert.Equal(t, "http://catalog:8090/health", c.HealthURL(""))
	assert.Equal(t, "http://catalog:8090/status", c.HealthURL("/status"))
}
