package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/tenant"
)

// Pinger reports database reachability.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	registry *tenant.Registry
	ping     Pinger
}

func NewHealthHandler(registry *tenant.Registry, ping Pinger) *HealthHandler {
	return &HealthHandler{registry: registry, ping: ping}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, dbStatus := "ok", "ok"
	code := fiber.StatusOK
	if err := h.ping(ctx); err != nil {
		status, dbStatus = "degraded", "unhealthy"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Services:  len(h.registry.All()),
	})
}
