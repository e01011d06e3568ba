package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/services"
	"github.com/nullpass/nullpass/internal/tenant"
)

type AdminHandler struct {
	admin        *services.AdminService
	entitlements *services.EntitlementService
}

func NewAdminHandler(admin *services.AdminService, entitlements *services.EntitlementService) *AdminHandler {
	return &AdminHandler{admin: admin, entitlements: entitlements}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	resp, err := h.admin.ListUsers(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("limit", 0))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	resp, err := h.admin.Stats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

// UpdateUser patches a target user's entitlement. Only user callers are
// recorded as the acting admin.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	target, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	var req dto.GrantRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	svc, ok := models.ParseService(req.Service)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, invalidServiceMessage)
	}

	var actor *uuid.UUID
	if id, err := tenant.GetUserID(c); err == nil {
		actor = &id
	}

	e, err := h.entitlements.Grant(c.UserContext(), actor, target, svc, req.Patch(), req.Changes())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.EntitlementResponse{Entitlement: e})
}
