package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sahafatech/tawsiya/internal/services"
)

const (
	ContextKeyUserID   = "auth_user_id"
	ContextKeyUserTier = "auth_user_tier"
)

// Auth validates the bearer token and stashes the caller's identity on the
// request context. Requests without a token proceed as anonymous; requests
// with a bad token are rejected.
func Auth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_AUTH_HEADER",
					"message": "Authorization header must use the Bearer scheme",
				},
			})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Token is invalid or expired",
				},
			})
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserTier, claims.UserTier)
		c.Next()
	}
}
