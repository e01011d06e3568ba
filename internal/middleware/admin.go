package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/tenant"
)

// AdminChecker decides whether a user may use the admin routes.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// AdminRequired must run after InternalOr or JWTProtected. System callers
// pass; users pass when their DROP team role allows it.
func AdminRequired(checker AdminChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := tenant.GetIdentity(c)
		if !ok {
			return Unauthorized(c)
		}
		if id.System {
			return c.Next()
		}

		admin, err := checker.IsAdmin(c.UserContext(), id.UserID)
		if err != nil {
			slog.ErrorContext(c.UserContext(), "admin check failed", "user_id", id.UserID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
		if !admin {
			slog.WarnContext(c.UserContext(), "admin access denied", "user_id", id.UserID, "request_id", c.Locals("requestid"))
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Forbidden - Admin access required",
			})
		}
		return c.Next()
	}
}
