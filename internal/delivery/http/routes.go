package http

import (
	"github.com/gin-gonic/gin"

	"github.com/cigarpricescout/pipeline/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/offers/:cigarID", handler.GetOffers)

		history := v1.Group("/history")
		{
			history.GET("/summary", handler.GetDailySummary)
			history.GET("/stockouts", handler.GetStockOuts)
			history.GET("/retailer/:retailer", handler.GetRetailerPerformance)
			history.GET("/retailer/:retailer/cigar/:cigarID", handler.GetHistory)
		}
	}

	return router
}
