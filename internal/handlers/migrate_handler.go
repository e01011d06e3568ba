package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/services"
)

type MigrateHandler struct {
	migration *services.MigrationService
}

func NewMigrateHandler(migration *services.MigrationService) *MigrateHandler {
	return &MigrateHandler{migration: migration}
}

// Migrate answers 201 when a new user was created and 200 when an existing
// one was updated.
func (h *MigrateHandler) Migrate(c *fiber.Ctx) error {
	var req dto.MigrateRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	req.Email = strings.TrimSpace(req.Email)

	resp, created, err := h.migration.Migrate(c.UserContext(), &req)
	if err != nil {
		return fail(c, err)
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
	return c.JSON(resp)
}
