package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sahafatech/tawsiya/internal/services"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// RateLimit applies the per-client quota. Authenticated clients are keyed by
// user ID, anonymous ones by source IP.
func RateLimit(limiter *services.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.ClientIP()
		tier := models.TierFree
		if v, ok := c.Get(ContextKeyUserID); ok {
			if userID, ok := v.(uuid.UUID); ok {
				clientID = userID.String()
			}
		}
		if v, ok := c.Get(ContextKeyUserTier); ok {
			if t, ok := v.(string); ok && t != "" {
				tier = t
			}
		}

		allowed, info, err := limiter.Allow(c.Request.Context(), clientID, tier)
		if err == nil && info != nil {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime))
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Request quota exceeded, retry after the window resets",
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
