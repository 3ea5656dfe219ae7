package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixelrealm/territory-engine/internal/ratelimit"
)

// RateLimit throttles requests per caller. The key is the authenticated
// subject when present (so a bidder cannot dodge the limit by rotating IPs)
// and the client IP otherwise. Run it after Auth.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := AuthSubject(c)
		if key == "" {
			key = c.ClientIP()
		}

		allowed, retryAfter := limiter.Allow(c.Request.Context(), key)
		if !allowed {
			seconds := int(retryAfter / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "Too many bids",
					"details": fmt.Sprintf("retry after %ds", seconds),
				},
			})
			return
		}

		c.Next()
	}
}
