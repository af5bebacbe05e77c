// Package handlers holds the gin HTTP layer. Handlers parse and validate,
// call into services, and translate failures into the shared error envelope;
// no ranking logic lives here.
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/services"
)

type Handlers struct {
	Recommendations *RecommendationHandler
	Feedback        *FeedbackHandler
	Auth            *AuthHandler
	Health          *HealthHandler
}

func New(svc *services.Services, cfg *config.Config, logger *logrus.Logger) *Handlers {
	validate := validator.New()
	return &Handlers{
		Recommendations: NewRecommendationHandler(svc.Engine, &cfg.Engine, validate, logger),
		Feedback:        NewFeedbackHandler(svc.Feedback, logger),
		Auth:            NewAuthHandler(svc.Auth, &cfg.Auth, logger),
		Health:          NewHealthHandler(svc.Health),
	}
}

// errorResponse is the shared error envelope.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// validationResponse is the envelope for per-field validation failures.
func validationResponse(fields map[string]string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    "VALIDATION_FAILED",
			"message": "Request validation failed",
			"fields":  fields,
		},
	}
}
