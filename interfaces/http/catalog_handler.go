package http

import (
	"net/http"

	"publish-pipeline/domain/model"
	"publish-pipeline/usecase"

	"github.com/gin-gonic/gin"
)

type ICatalogHandler interface {
	List(ctx *gin.Context)
	Get(ctx *gin.Context)
	Update(ctx *gin.Context)
	Delete(ctx *gin.Context)
	IssueResetToken(ctx *gin.Context)
	Reset(ctx *gin.Context)
}

type CatalogHandler struct {
	publisher usecase.IPublisher
}

func NewCatalogHandler(publisher usecase.IPublisher) ICatalogHandler {
	return &CatalogHandler{publisher: publisher}
}

type resetRequest struct {
	OwnerID           string `json:"owner_id"`
	ConfirmationToken string `json:"confirmation_token"`
}

func (h *CatalogHandler) List(ctx *gin.Context) {
	recs, err := h.publisher.ListRemote(ctx.Request.Context(), ownerOf(ctx, ""))
	if err != nil {
		writeError(ctx, err)
		return
	}
	if recs == nil {
		recs = []model.RemoteRecord{}
	}
	ok(ctx, http.StatusOK, recs)
}

func (h *CatalogHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if model.IsDraftID(id) {
		fail(ctx, http.StatusNotFound, "not found")
		return
	}
	sub, err := h.publisher.Get(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if sub == nil || sub.Record == nil {
		fail(ctx, http.StatusNotFound, "not found")
		return
	}
	ok(ctx, http.StatusOK, sub.Record)
}

func (h *CatalogHandler) Update(ctx *gin.Context) {
	var patch model.RemotePatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		fail(ctx, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	updated, err := h.publisher.UpdateRemote(ctx.Request.Context(), ctx.Param("id"), patch)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if !updated {
		fail(ctx, http.StatusNotFound, "not found")
		return
	}
	ok(ctx, http.StatusOK, gin.H{"updated": true})
}

func (h *CatalogHandler) Delete(ctx *gin.Context) {
	deleted, err := h.publisher.DeleteRemote(ctx.Request.Context(), ctx.Param("id"), ownerOf(ctx, ""))
	if err != nil {
		writeError(ctx, err)
		return
	}
	if !deleted {
		fail(ctx, http.StatusNotFound, "not found")
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *CatalogHandler) IssueResetToken(ctx *gin.Context) {
	var req resetRequest
	_ = ctx.ShouldBindJSON(&req)
	token, expiresAt, err := h.publisher.IssueResetToken(ownerOf(ctx, req.OwnerID))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ok(ctx, http.StatusOK, gin.H{"confirmation_token": token, "expires_at": expiresAt})
}

func (h *CatalogHandler) Reset(ctx *gin.Context) {
	var req resetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	owner := ownerOf(ctx, req.OwnerID)
	if owner == "" || req.ConfirmationToken == "" {
		fail(ctx, http.StatusBadRequest, "owner_id and confirmation_token required")
		return
	}
	n, err := h.publisher.ResetCatalog(ctx.Request.Context(), owner, req.ConfirmationToken)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ok(ctx, http.StatusOK, gin.H{"deleted_count": n})
}
