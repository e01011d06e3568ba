package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/services"
	"github.com/nullpass/nullpass/internal/tenant"
)

const invalidServiceMessage = "Invalid service. Must be DROP, MAILS, VAULT, DB, or BOARD"

// ServiceHandler serves the caller's own entitlements.
type ServiceHandler struct {
	entitlements *services.EntitlementService
	audit        *services.AuditService
	billing      *services.SubscriptionService
}

func NewServiceHandler(entitlements *services.EntitlementService, audit *services.AuditService, billing *services.SubscriptionService) *ServiceHandler {
	return &ServiceHandler{entitlements: entitlements, audit: audit, billing: billing}
}

func (h *ServiceHandler) List(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var svc models.Service
	if raw := c.Query("service"); raw != "" {
		parsed, ok := models.ParseService(raw)
		if !ok {
			return respondError(c, fiber.StatusBadRequest, invalidServiceMessage)
		}
		svc = parsed
	}

	list, err := h.entitlements.List(c.UserContext(), userID, svc)
	if err != nil {
		return fail(c, err)
	}
	if list == nil {
		list = []models.ServiceEntitlement{}
	}
	return c.JSON(dto.EntitlementsResponse{Entitlements: list})
}

// Update is the self-service entitlement change. Only fields present in the
// body are written.
func (h *ServiceHandler) Update(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.EntitlementRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	svc, ok := models.ParseService(req.Service)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, invalidServiceMessage)
	}

	e, err := h.entitlements.Upsert(c.UserContext(), userID, svc, req.Patch())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.EntitlementResponse{Entitlement: e})
}

func (h *ServiceHandler) CheckConnection(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	raw := c.Query("service")
	if raw == "" {
		return respondError(c, fiber.StatusBadRequest, "Service parameter is required")
	}
	svc, ok := models.ParseService(raw)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, invalidServiceMessage)
	}

	status, err := h.entitlements.ConnectionStatus(c.UserContext(), userID, svc)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(status)
}

func (h *ServiceHandler) Disconnect(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.DisconnectRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	svc, ok := models.ParseService(req.Service)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, invalidServiceMessage)
	}

	resp, err := h.entitlements.Disconnect(c.UserContext(), userID, svc)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (h *ServiceHandler) GetCustomDomain(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.entitlements.GetCustomDomain(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (h *ServiceHandler) SetCustomDomain(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.CustomDomainRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.Domain == "" {
		return respondError(c, fiber.StatusBadRequest, "Domain is required")
	}

	domain, err := h.entitlements.SetCustomDomain(c.UserContext(), userID, req.Domain)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.CustomDomainSetResponse{
		Success: true,
		Domain:  domain,
		Message: "Domain connected successfully. Please configure your DNS settings.",
	})
}

func (h *ServiceHandler) RemoveCustomDomain(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	if err := h.entitlements.RemoveCustomDomain(c.UserContext(), userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{Success: true, Message: "Custom domain disconnected successfully"})
}

func (h *ServiceHandler) Audit(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	action := models.AuditAction(c.Query("action"))
	logs, total, limit, offset, err := h.audit.List(c.UserContext(), userID, action, c.QueryInt("limit", 0), c.QueryInt("offset", 0))
	if err != nil {
		return fail(c, err)
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return c.JSON(dto.AuditResponse{Logs: logs, Total: total, Limit: limit, Offset: offset})
}

func (h *ServiceHandler) Subscription(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	resp, err := h.billing.Subscription(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}
