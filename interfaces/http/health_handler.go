package http

import (
	"net/http"

	"publish-pipeline/domain/repository"

	"github.com/gin-gonic/gin"
)

type IHealthHandler interface {
	Healthz(ctx *gin.Context)
}

type HealthHandler struct {
	conn repository.IConnectivity
}

func NewHealthHandler(conn repository.IConnectivity) IHealthHandler {
	return &HealthHandler{conn: conn}
}

// Healthz reports the process as up; catalog reachability is informational.
func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "catalog_reachable": h.conn.Snapshot().Reachable})
}
