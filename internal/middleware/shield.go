package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/shield"
)

// Shield costs per route class.
const (
	CostDefault   = 1
	CostSensitive = 2
	CostMigrate   = 5
)

// Protect asks the shield before letting the request through.
func Protect(s *shield.Shield, cost int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := s.Protect(c.UserContext(), shield.Request{
			IP:        ClientIP(c),
			UserAgent: c.Get(fiber.HeaderUserAgent),
			Method:    c.Method(),
			Path:      c.Path(),
			Origin:    c.Get(fiber.HeaderOrigin),
		}, cost)
		if d.Allowed {
			return c.Next()
		}
		return c.Status(d.Reason.Status()).JSON(dto.ErrorResponse{
			Error: true, Message: d.Reason.Message(),
		})
	}
}
