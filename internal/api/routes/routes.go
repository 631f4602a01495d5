package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"cargo_ingest/internal/api/handlers"
	"cargo_ingest/internal/api/middleware"
)

type Handlers struct {
	Loads  *handlers.LoadsHandler
	Status *handlers.StatusHandler
	Ingest *handlers.IngestHandler
}

type Auth struct {
	AdminKey            string
	SchedulerIdentities []string
	WebhookSecret       string
}

func Setup(r *gin.Engine, h Handlers, auth Auth, limiter *middleware.RateLimiter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		api.GET("/loads", h.Loads.List)
		api.GET("/status", h.Status.Get)
	}

	ingest := api.Group("/ingest")
	ingest.Use(middleware.RateLimit(limiter))
	{
		ingest.POST("/run", middleware.AdminAuth(auth.AdminKey, auth.SchedulerIdentities), h.Ingest.Run)
		ingest.POST("/webhook", middleware.WebhookSecret(auth.WebhookSecret), h.Ingest.Webhook)
	}
}
