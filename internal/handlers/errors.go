package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/services"
)

var statusBySentinel = []struct {
	err    error
	status int
}{
	{services.ErrEmailTaken, fiber.StatusConflict},
	{services.ErrDomainTaken, fiber.StatusConflict},
	{services.ErrAlreadyMigrated, fiber.StatusConflict},

	{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{services.ErrInvalidTwoFactorCode, fiber.StatusUnauthorized},
	{services.ErrTwoFactorCodeRequired, fiber.StatusUnauthorized},
	{services.ErrInvalidCurrentPassword, fiber.StatusUnauthorized},
	{services.ErrInvalidPassword, fiber.StatusUnauthorized},
	{services.ErrInvalidToken, fiber.StatusUnauthorized},

	{services.ErrAccountDisabled, fiber.StatusForbidden},
	{services.ErrEnterpriseRequired, fiber.StatusForbidden},
	{services.ErrForbidden, fiber.StatusForbidden},

	{services.ErrTwoFactorMisconfigured, fiber.StatusInternalServerError},
	{services.ErrTwoFactorSecretMissing, fiber.StatusInternalServerError},
	{services.ErrSubscriptionFetch, fiber.StatusInternalServerError},

	{services.ErrInvalidVerification, fiber.StatusBadRequest},
	{services.ErrDisableCodeRequired, fiber.StatusBadRequest},
	{services.ErrTwoFactorNotEnabled, fiber.StatusBadRequest},
	{services.ErrInvalidDomain, fiber.StatusBadRequest},

	{services.ErrUserNotFound, fiber.StatusNotFound},
	{services.ErrEntitlementNotFound, fiber.StatusNotFound},
	{services.ErrNoSubscription, fiber.StatusNotFound},
}

// fail renders a service error. Known errors carry their own message;
// anything else is logged and hidden behind a generic 500.
func fail(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return respondError(c, fiber.StatusBadRequest, verr.Message)
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return respondError(c, s.status, s.err.Error())
		}
	}
	slog.ErrorContext(c.UserContext(), "request failed",
		"method", c.Method(),
		"path", c.Path(),
		"request_id", c.Locals("requestid"),
		"error", err,
	)
	return respondError(c, fiber.StatusInternalServerError, "Internal server error")
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func badBody(c *fiber.Ctx) error {
	return respondError(c, fiber.StatusBadRequest, "Invalid request body")
}

func unauthorized(c *fiber.Ctx) error {
	return respondError(c, fiber.StatusUnauthorized, "Unauthorized")
}
