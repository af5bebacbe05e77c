package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/services"
	"github.com/sahafatech/tawsiya/pkg/models"
)

// AuthHandler exchanges a configured API key for a bearer token.
type AuthHandler struct {
	auth   *services.AuthService
	config *config.AuthConfig
	logger *logrus.Logger
}

func NewAuthHandler(auth *services.AuthService, cfg *config.AuthConfig, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, config: cfg, logger: logger}
}

// Token handles POST /api/v1/auth/token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req models.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.APIKey == "" {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_BODY", "api_key is required"))
		return
	}

	tier, ok := h.config.APIKeys[req.APIKey]
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("INVALID_API_KEY", "API key is not recognized"))
		return
	}

	userID := uuid.New()
	if req.UserID != "" {
		parsed, err := uuid.Parse(req.UserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_USER_ID", "user_id must be a valid UUID"))
			return
		}
		userID = parsed
	}

	token, expiresAt, err := h.auth.GenerateToken(c.Request.Context(), userID, req.APIKey, tier)
	if err != nil {
		h.logger.WithError(err).Error("Token generation failed")
		c.JSON(http.StatusInternalServerError, errorResponse("TOKEN_FAILED", "Unable to issue token"))
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserTier:  tier,
	})
}
