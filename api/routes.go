package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/api/handlers"
	"github.com/customeros/mailsync/api/middleware"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	// Health check and status endpoints (no custom context needed)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(s.SyncService))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.CustomContextMiddleware("mailsync"))
	api.Use(middleware.TracingMiddleware())
	{
		mailboxes := api.Group("/mailboxes")
		{
			mailboxes.GET("", handlers.ListMailboxes(s.SyncService))
			mailboxes.POST("", handlers.AddMailbox(s.SyncService))
			mailboxes.DELETE("/:id", handlers.RemoveMailbox(s.SyncService))
			mailboxes.GET("/:id/status", handlers.MailboxStatus(s.SyncService))
			mailboxes.GET("/:id/runs", handlers.ListSyncRuns(s.SyncService))
			mailboxes.POST("/:id/sync", handlers.SyncMailbox(s.SyncService))
			mailboxes.POST("/:id/backfill", handlers.Backfill(s.SyncService))
		}

		api.GET("/threads/:id/emails", handlers.GetThreadEmails(s.ThreadService))
		api.GET("/emails/:id/attachments", handlers.ListEmailAttachments(s.AttachmentService))
		api.GET("/attachments/:id", handlers.DownloadAttachment(s.AttachmentService))
		api.POST("/orders/match", handlers.MatchOrder(s.OrderMatcher))
	}
}
