// Package router sets up all HTTP routes for the API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/briahnloo/content-generator-stitching/internal/config"
	"github.com/briahnloo/content-generator-stitching/internal/database"
	"github.com/briahnloo/content-generator-stitching/internal/handlers"
	"github.com/briahnloo/content-generator-stitching/internal/middleware"
	"github.com/briahnloo/content-generator-stitching/internal/services/accounts"
	"github.com/briahnloo/content-generator-stitching/internal/services/grouper"
	"github.com/briahnloo/content-generator-stitching/internal/services/worker"
)

// Setup creates and configures the Gin router with all routes.
func Setup(db *database.DB, wp *worker.Pool, am *accounts.Manager, gs *grouper.Service, cfg *config.Config, metricsHandler http.Handler) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	h := handlers.NewHandler(db, wp, am, gs, cfg)
	rateLimiter := middleware.NewRateLimiter(cfg.DefaultRateLimit)

	// --- Public Routes (no auth required) ---
	r.GET("/api/v1/health", h.HealthCheck)
	r.POST("/api/v1/keys", h.CreateAPIKey)
	r.GET("/metrics", gin.WrapH(metricsHandler))

	// --- Auth Routes — public ---
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)

	// --- JWT-protected routes (operator dashboard session) ---
	jwtProtected := r.Group("/api/v1")
	jwtProtected.Use(middleware.JWTAuth(db, cfg.JWTSecret))
	{
		jwtProtected.GET("/auth/me", h.GetMe)
	}

	// --- Protected Routes (API key OR JWT) ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.DualAuth(db, cfg.JWTSecret))
	protected.Use(rateLimiter.RateLimit())
	{
		// Pipeline stage triggers (hit by the external scheduler)
		protected.POST("/pipeline/download", h.TriggerDownload)
		protected.POST("/pipeline/classify", h.TriggerClassify)
		protected.POST("/pipeline/group", h.TriggerGroup)
		protected.POST("/pipeline/group/mega", h.TriggerGroupMega)
		protected.POST("/pipeline/render", h.TriggerRender)
		protected.POST("/pipeline/route", h.TriggerRoute)
		protected.POST("/pipeline/dispatch", h.TriggerDispatch)
		protected.POST("/pipeline/uploads/retry", h.TriggerRetryUploads)
		protected.POST("/pipeline/accounts/reset-daily", h.ResetDailyCounts)
		protected.GET("/pipeline/stats", h.PipelineStats)

		// Compilation review surface
		protected.GET("/compilations", h.ListCompilations)
		protected.GET("/compilations/:id", h.GetCompilation)
		protected.GET("/compilations/:id/uploads", h.ListCompilationUploads)
		protected.POST("/compilations/:id/approve", h.ApproveCompilation)
		protected.POST("/compilations/:id/reject", h.RejectCompilation)
		protected.POST("/compilations/:id/ungroup", h.UngroupCompilation)
		protected.POST("/compilations/:id/render", h.RequeueRender)

		// Upload account management
		protected.POST("/accounts", h.CreateAccount)
		protected.GET("/accounts", h.ListAccounts)
		protected.GET("/accounts/:id", h.GetAccount)
		protected.PATCH("/accounts/:id", h.UpdateAccount)
		protected.DELETE("/accounts/:id", h.DeleteAccount)
		protected.PUT("/accounts/:id/credentials", h.SetAccountCredentials)
		protected.POST("/accounts/:id/activate", h.ActivateAccount)
		protected.POST("/accounts/:id/deactivate", h.DeactivateAccount)
		protected.POST("/accounts/:id/rules", h.CreateRoutingRule)

		// Routing rules
		protected.GET("/rules", h.ListRoutingRules)
		protected.DELETE("/rules/:id", h.DeleteRoutingRule)

		// Item and upload browsing
		protected.GET("/items", h.ListItems)
		protected.GET("/items/:id", h.GetItem)
		protected.GET("/uploads", h.ListUploads)

		// API key management
		protected.GET("/keys", h.ListAPIKeys)
		protected.DELETE("/keys/:id", h.RevokeAPIKey)
	}

	return r
}
