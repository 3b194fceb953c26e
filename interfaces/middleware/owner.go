package middleware

import (
	"time"

	"publish-pipeline/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	OwnerKey     = "owner_id"
	RequestIDKey = "request_id"
	ownerHeader  = "X-Owner-Id"
	requestIDHdr = "X-Request-Id"
)

// Owner resolves the acting owner from the X-Owner-Id header, falling back to the
// owner_id query parameter. The pipeline does not authenticate owners.
func Owner() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		owner := ctx.GetHeader(ownerHeader)
		if owner == "" {
			owner = ctx.Query("owner_id")
		}
		if owner != "" {
			ctx.Set(OwnerKey, owner)
		}
		ctx.Next()
	}
}

// RequestLogger tags each request with an id and logs it once handled.
func RequestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		id := ctx.GetHeader(requestIDHdr)
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set(RequestIDKey, id)
		ctx.Header(requestIDHdr, id)

		ctx.Next()

		entry := logger.GetLogger().WithFields(map[string]interface{}{
			"requestId": id,
			"method":    ctx.Request.Method,
			"path":      ctx.FullPath(),
			"status":    ctx.Writer.Status(),
			"latency":   time.Since(start).String(),
		})
		if ctx.Writer.Status() >= 500 {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request handled")
	}
}
