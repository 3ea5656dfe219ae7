package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/pixelrealm/territory-engine/internal/api/middleware"
	"github.com/pixelrealm/territory-engine/internal/ratelimit"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig, bidLimiter ratelimit.Limiter) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Auction reads (public)
		v1.GET("/auctions/:id", handler.GetAuction)
		v1.GET("/auctions/:id/bids", handler.ListAuctionBids)

		// Bidding and manual settlement (requires authentication).
		// The rate limit applies to bids only; reads and settlement stay open.
		v1.POST("/auctions/:id/bids", middleware.Auth(authCfg), middleware.RateLimit(bidLimiter), handler.PlaceBid)
		v1.POST("/auctions/:id/finalize", middleware.Auth(authCfg), handler.FinalizeAuction)

		// Territory reads (public)
		v1.GET("/territories/:id", handler.GetTerritory)
		v1.GET("/territories/:id/history", handler.GetTerritoryHistory)

		// Admin endpoints (requires API key authentication only)
		admin := v1.Group("/admin", middleware.APIKeyAuth(authCfg))
		{
			admin.POST("/territories/:id/auctions", handler.StartAuction)
			admin.POST("/auctions/:id/cancel", handler.CancelAuction)
		}
	}
}
