package server

import (
	"time"

	"publish-pipeline/infrastructure/realtime"
	httpHandler "publish-pipeline/interfaces/http"
	"publish-pipeline/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultOrigins are the editing surfaces allowed to call the API from a browser.
var DefaultOrigins = []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"}

func InitiateRouter(
	publishHandler httpHandler.IPublishHandler,
	catalogHandler httpHandler.ICatalogHandler,
	healthHandler httpHandler.IHealthHandler,
	eventHub *realtime.Hub,
	allowedOrigins []string,
) *gin.Engine {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultOrigins
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Owner-Id", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler.Healthz)

	api := router.Group("api")
	api.Use(middleware.Owner())

	api.POST("/publish", publishHandler.Publish)
	api.GET("/connectivity", publishHandler.Connectivity)
	if eventHub != nil {
		api.GET("/events", eventHub.Serve)
	}

	drafts := api.Group("/drafts")
	{
		drafts.GET("", publishHandler.ListDrafts)
		drafts.POST("", publishHandler.SaveDraft)
		drafts.GET("/stats", publishHandler.DraftStats)
		drafts.POST("/republish", publishHandler.RepublishAll)
		drafts.GET("/:id", publishHandler.GetDraft)
		drafts.PATCH("/:id", publishHandler.UpdateDraft)
		drafts.DELETE("/:id", publishHandler.DeleteDraft)
		drafts.POST("/:id/republish", publishHandler.RepublishDraft)
	}

	catalog := api.Group("/catalog")
	{
		catalog.GET("", catalogHandler.List)
		catalog.POST("/reset-token", catalogHandler.IssueResetToken)
		catalog.POST("/reset", catalogHandler.Reset)
		catalog.GET("/:id", catalogHandler.Get)
		catalog.PATCH("/:id", catalogHandler.Update)
		catalog.DELETE("/:id", catalogHandler.Delete)
	}

	return router
}
