package http

import (
	"errors"
	"net/http"

	"publish-pipeline/domain/model"
	"publish-pipeline/infrastructure/logger"
	"publish-pipeline/interfaces/middleware"

	"github.com/gin-gonic/gin"
)

func ok(ctx *gin.Context, status int, data interface{}) {
	ctx.JSON(status, gin.H{"success": true, "data": data})
}

func fail(ctx *gin.Context, status int, msg string) {
	ctx.JSON(status, gin.H{"success": false, "error": msg})
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) int {
	var encErr *model.EncodingError
	switch {
	case errors.Is(err, model.ErrInvalidSubmission):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDrainInProgress):
		return http.StatusConflict
	case errors.Is(err, model.ErrRejected), errors.As(err, &encErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrUnreachable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(ctx *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.GetLogger().WithFields(map[string]interface{}{
			"requestId": ctx.GetString(middleware.RequestIDKey),
			"path":      ctx.FullPath(),
			"error":     err.Error(),
		}).Error("Request failed")
	}
	fail(ctx, status, err.Error())
}

func ownerOf(ctx *gin.Context, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return ctx.GetString(middleware.OwnerKey)
}
