package api

import (
	"github.com/ECGOPS/OPSOMS-sub004/internal/metrics"
	"github.com/ECGOPS/OPSOMS-sub004/internal/middleware"
	"github.com/ECGOPS/OPSOMS-sub004/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(queueHandler *QueueHandler, streamHandler *StreamHandler, authHandler *AuthHandler, deviceRepo repository.DeviceRepository, rdb *redis.Client, requestsPerSecond int, env string) *gin.Engine {
	r := gin.New()

	// Bypass auth for load testing against a scratch instance
	bypassAuth := env == "loadtest"

	// Global Middleware
	r.Use(
		middleware.CorsMiddleware(),
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
		middleware.TraceMiddleware(),
	)
	r.SetTrustedProxies(nil)

	// Public Routes
	r.GET("/health", queueHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Auth Routes (Public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Auth Routes (Protected)
	authProtected := r.Group("/v1/auth")
	authProtected.Use(middleware.JWTMiddleware(true))
	{
		authProtected.GET("/me", authHandler.GetProfile)
		authProtected.POST("/logout", authHandler.Logout)
	}

	// Stream Routes (Protected by Device Key)
	stream := r.Group("/v1/stream")
	stream.Use(middleware.DeviceAuthMiddleware(deviceRepo, bypassAuth))
	{
		stream.GET("/watch", streamHandler.Watch)
	}

	// Protected Routes (Operator surface)
	protected := r.Group("/v1")
	protected.Use(middleware.JWTMiddleware(true))

	// Rate Limiter for Write Operations
	writeLimiter := middleware.RateLimitMiddleware(rdb, requestsPerSecond)

	{
		protected.POST("/queue", writeLimiter, queueHandler.Enqueue)
		protected.GET("/queue", queueHandler.ListPending)
		protected.GET("/queue/count", queueHandler.PendingCount)
		protected.DELETE("/queue/:id", queueHandler.Discard)

		protected.POST("/sync", writeLimiter, queueHandler.SyncNow)
		protected.GET("/sync/status", queueHandler.SyncStatus)

		protected.GET("/failed", queueHandler.ListFailed)
		protected.DELETE("/failed/:id", queueHandler.DiscardFailed)
		protected.POST("/failed/:id/requeue", writeLimiter, queueHandler.RequeueFailed)

		protected.GET("/records/:kind", queueHandler.ListRecords)
		protected.GET("/records/:kind/:id", queueHandler.GetRecord)
	}
	return r
}
