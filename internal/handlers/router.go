package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "wedding-ai-backend/docs"
	"wedding-ai-backend/internal/config"
	"wedding-ai-backend/internal/credits"
	"wedding-ai-backend/internal/generation"
	"wedding-ai-backend/internal/middleware"
	"wedding-ai-backend/internal/payments"
	"wedding-ai-backend/internal/sweeper"
)

// Dependencies are the services the routes are served from.
type Dependencies struct {
	DB         Pinger
	Ledger     *credits.Ledger
	Generation *generation.Service
	Runner     JobStarter
	Sweeper    *sweeper.Sweeper
	Payments   *payments.Fulfiller
}

func NewRouter(cfg *config.Config, deps Dependencies, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check (no auth)
	router.GET("/health", NewHealthHandler(deps.DB).Health)

	creditsHandler := NewCreditsHandler(deps.Ledger)
	generationsHandler := NewGenerationsHandler(deps.Generation, deps.Ledger, deps.Runner)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.GET("/credits", creditsHandler.GetBalance)
	api.GET("/credits/transactions", creditsHandler.ListTransactions)

	api.POST("/generations", generationsHandler.CreateGeneration)
	api.GET("/generations", generationsHandler.ListGenerations)
	api.GET("/generations/:job_id", generationsHandler.GetGeneration)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.POST("/credits/grant", creditsHandler.GrantCredits)

	// Cron (bearer CRON_SECRET)
	cron := router.Group("/api/cron")
	cron.Use(middleware.CronAuth(cfg.CronSecret))
	cron.GET("/cleanup-stale-jobs", NewCronHandler(deps.Sweeper).CleanupStaleJobs)

	// Webhooks (no auth, Stripe signature)
	if deps.Payments != nil {
		router.POST("/api/webhooks/stripe", NewWebhookHandler(deps.Payments).HandleStripeWebhook)
	}

	return router
}
