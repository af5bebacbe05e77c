package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sahafatech/tawsiya/internal/services"
)

type HealthHandler struct {
	health *services.HealthService
}

func NewHealthHandler(health *services.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

// Get handles GET /health.
func (h *HealthHandler) Get(c *gin.Context) {
	status := h.health.Check(c.Request.Context())

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
