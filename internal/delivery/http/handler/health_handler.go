package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"signflow/internal/config"
	"signflow/internal/domain/entity"
)

const version = "1.0.0"

type HealthHandler struct {
	name string
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{name: cfg.App.Name}
}

type HealthResponse struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health godoc
// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} entity.APIResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(entity.NewSuccessResponse(HealthResponse{
		Service:   h.name,
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version,
	}, "Service is healthy"))
}
