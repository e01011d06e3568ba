package handlers

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/polar"
	"github.com/nullpass/nullpass/internal/services"
	"github.com/nullpass/nullpass/internal/tenant"
)

type WebhookHandler struct {
	subscriptionService *services.SubscriptionService
	registry            *tenant.Registry
}

func NewWebhookHandler(subscriptionService *services.SubscriptionService, registry *tenant.Registry) *WebhookHandler {
	return &WebhookHandler{
		subscriptionService: subscriptionService,
		registry:            registry,
	}
}

// HandlePolar routes a Polar webhook by its :service path segment and checks
// the signature against that service's secret.
func (h *WebhookHandler) HandlePolar(c *fiber.Ctx) error {
	cfg := h.registry.ByWebhookPath(c.Params("service"))
	if cfg == nil {
		return respondError(c, fiber.StatusNotFound, "Unknown service")
	}
	if cfg.PolarWebhookSecret == "" {
		return respondError(c, fiber.StatusNotFound, "Webhooks not configured for this service")
	}

	verifier, err := polar.NewVerifier(cfg.PolarWebhookSecret)
	if err != nil {
		slog.Error("invalid webhook secret", "service", cfg.Service, "error", err)
		return respondError(c, fiber.StatusInternalServerError, "Internal server error")
	}

	body := c.Body()
	if err := verifier.Verify(
		c.Get(polar.HeaderID),
		c.Get(polar.HeaderTimestamp),
		c.Get(polar.HeaderSignature),
		body,
	); err != nil {
		slog.Warn("webhook signature rejected", "service", cfg.Service, "error", err)
		return respondError(c, fiber.StatusForbidden, "Invalid webhook signature")
	}

	var event dto.PolarWebhook
	if err := json.Unmarshal(body, &event); err != nil || event.Type == "" {
		return respondError(c, fiber.StatusBadRequest, "Invalid webhook payload")
	}

	if err := h.subscriptionService.HandleWebhookEvent(c.UserContext(), cfg.Service, &event); err != nil {
		slog.Error("webhook processing failed", "service", cfg.Service, "event_type", event.Type, "error", err)
		return respondError(c, fiber.StatusInternalServerError, "Failed to process webhook event")
	}

	slog.Info("webhook processed", "service", cfg.Service, "event_type", event.Type)
	return c.JSON(fiber.Map{"received": true})
}
