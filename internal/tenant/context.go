package tenant

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/guard"
)

const (
	identityKey = "identity"
	serviceKey  = "service"
)

var ErrNoIdentity = errors.New("no authenticated identity in context")

func SetIdentity(c *fiber.Ctx, id guard.Identity) {
	c.Locals(identityKey, id)
}

// GetIdentity returns the identity stored by the auth middleware.
func GetIdentity(c *fiber.Ctx) (guard.Identity, bool) {
	id, ok := c.Locals(identityKey).(guard.Identity)
	return id, ok
}

// GetUserID returns the authenticated end user. System callers have none.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := GetIdentity(c)
	if !ok || id.System || id.UserID == uuid.Nil {
		return uuid.Nil, ErrNoIdentity
	}
	return id.UserID, nil
}

func SetService(c *fiber.Ctx, cfg *ServiceConfig) {
	c.Locals(serviceKey, cfg)
}

func GetService(c *fiber.Ctx) *ServiceConfig {
	if cfg, ok := c.Locals(serviceKey).(*ServiceConfig); ok {
		return cfg
	}
	return nil
}
