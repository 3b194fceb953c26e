package http

import (
	"net/http"

	"publish-pipeline/domain/model"
	"publish-pipeline/usecase"

	"github.com/gin-gonic/gin"
)

type IPublishHandler interface {
	Publish(ctx *gin.Context)
	SaveDraft(ctx *gin.Context)
	ListDrafts(ctx *gin.Context)
	DraftStats(ctx *gin.Context)
	GetDraft(ctx *gin.Context)
	UpdateDraft(ctx *gin.Context)
	DeleteDraft(ctx *gin.Context)
	RepublishDraft(ctx *gin.Context)
	RepublishAll(ctx *gin.Context)
	Connectivity(ctx *gin.Context)
}

type PublishHandler struct {
	publisher usecase.IPublisher
}

func NewPublishHandler(publisher usecase.IPublisher) IPublishHandler {
	return &PublishHandler{publisher: publisher}
}

// submission is a payload with its owner flattened into one JSON object.
type submission struct {
	OwnerID string `json:"owner_id"`
	model.Payload
}

func (h *PublishHandler) bind(ctx *gin.Context) (string, model.Payload, bool) {
	var req submission
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "invalid request body: "+err.Error())
		return "", model.Payload{}, false
	}
	owner := ownerOf(ctx, req.OwnerID)
	if owner == "" {
		fail(ctx, http.StatusBadRequest, "owner_id required")
		return "", model.Payload{}, false
	}
	return owner, req.Payload, true
}

func (h *PublishHandler) Publish(ctx *gin.Context) {
	owner, payload, valid := h.bind(ctx)
	if !valid {
		return
	}
	res, err := h.publisher.Publish(ctx.Request.Context(), owner, payload)
	if err != nil {
		writeError(ctx, err)
		return
	}
	status := http.StatusCreated
	if res.Drafted {
		status = http.StatusAccepted
	}
	ok(ctx, status, res)
}

func (h *PublishHandler) SaveDraft(ctx *gin.Context) {
	owner, payload, valid := h.bind(ctx)
	if !valid {
		return
	}
	d, err := h.publisher.SaveDraft(ctx.Request.Context(), owner, payload)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ok(ctx, http.StatusCreated, d)
}

func (h *PublishHandler) ListDrafts(ctx *gin.Context) {
	list, err := h.publisher.List(ctx.Request.Context(), ownerOf(ctx, ""))
	if err != nil {
		writeError(ctx, err)
		return
	}
	if list == nil {
		list = []*model.Draft{}
	}
	ok(ctx, http.StatusOK, list)
}

func (h *PublishHandler) DraftStats(ctx *gin.Context) {
	st, err := h.publisher.Stats(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ok(ctx, http.StatusOK, st)
}

func (h *PublishHandler) GetDraft(ctx *gin.Context) {
	sub, err := h.publisher.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	if sub == nil {
		fail(ctx, http.StatusNotFound, "not found")
		return
	}
	ok(ctx, http.StatusOK, sub)
}

func (h *PublishHandler) UpdateDraft(ctx *gin.Context) {
	var patch model.PayloadPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		fail(ctx, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	d, err := h.publisher.UpdateDraft(ctx.Request.Context(), ctx.Param("id"), patch)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ok(ctx, http.StatusOK, d)
}

func (h *PublishHandler) DeleteDraft(ctx *gin.Context) {
	deleted, err := h.publisher.DeleteDraft(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	if !deleted {
		fail(ctx, http.StatusNotFound, model.ErrDraftNotFound.Error())
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *PublishHandler) RepublishDraft(ctx *gin.Context) {
	remoteID, err := h.publisher.Republish(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ok(ctx, http.StatusOK, gin.H{"remote_id": remoteID})
}

func (h *PublishHandler) RepublishAll(ctx *gin.Context) {
	res, err := h.publisher.RepublishAllFailed(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ok(ctx, http.StatusOK, res)
}

func (h *PublishHandler) Connectivity(ctx *gin.Context) {
	ok(ctx, http.StatusOK, h.publisher.Connectivity())
}
