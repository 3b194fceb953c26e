package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"publish-pipeline/infrastructure/connectivity"
	"publish-pipeline/infrastructure/realtime"
	httpHandler "publish-pipeline/interfaces/http"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	probe := connectivity.NewProbe(nil, "http://127.0.0.1:0/health", time.Second, time.Minute)
	return InitiateRouter(
		httpHandler.NewPublishHandler(nil),
		httpHandler.NewCatalogHandler(nil),
		httpHandler.NewHealthHandler(probe),
		realtime.NewEventHub(),
		nil,
	)
}

func TestRoutesRegistered(t *testing.T) {
	routes := map[string]bool{}
	for _, r := range newTestEngine().Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"POST /api/publish",
		"GET /api/drafts",
		"POST /api/drafts",
		"GET /api/drafts/stats",
		"GET /api/drafts/:id",
		"PATCH /api/drafts/:id",
		"DELETE /api/drafts/:id",
		"POST /api/drafts/:id/republish",
		"POST /api/drafts/republish",
		"GET /api/connectivity",
		"GET /api/events",
		"GET /api/catalog",
		"GET /api/catalog/:id",
		"PATCH /api/catalog/:id",
		"DELETE /api/catalog/:id",
		"POST /api/catalog/reset-token",
		"POST /api/catalog/reset",
	} {
		assert.True(t, routes[want], want)
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	newTestEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","catalog_reachable":false}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/drafts", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", "POST")
	newTestEngine().ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:4200", w.Header().Get("Access-Control-Allow-Origin"))
}
