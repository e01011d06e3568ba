package middleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/guard"
	"github.com/nullpass/nullpass/internal/tenant"
	"github.com/nullpass/nullpass/internal/token"
)

const (
	jwtContextKey        = "jwt"
	InternalSecretHeader = "x-internal-secret"
)

// JWTProtected verifies the bearer token signature and expiry, then
// cross-checks the session row before storing the caller's identity.
func JWTProtected(codec *token.Codec, g *guard.Guard) fiber.Handler {
	return jwtware.New(jwtware.Config{
		KeyFunc:    codec.Keyfunc,
		Claims:     &token.Claims{},
		ContextKey: jwtContextKey,
		SuccessHandler: func(c *fiber.Ctx) error {
			tok, ok := c.Locals(jwtContextKey).(*jwt.Token)
			if !ok || tok.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return deny(c, "unexpected token algorithm")
			}
			claims, ok := tok.Claims.(*token.Claims)
			if !ok {
				return deny(c, "unexpected claims type")
			}
			payload, ok := claims.Payload()
			if !ok {
				return deny(c, "incomplete token claims")
			}

			id, err := g.Resolve(c.UserContext(), tok.Raw, payload)
			if errors.Is(err, guard.ErrInternal) {
				return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
					Error: true, Message: "Internal server error",
				})
			}
			if err != nil {
				return Unauthorized(c)
			}
			tenant.SetIdentity(c, id)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return deny(c, err.Error())
		},
	})
}

// InternalOr admits callers that present the internal secret as a system
// identity and sends everyone else through next.
func InternalOr(secret string, next fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if hasInternalSecret(c, secret) {
			tenant.SetIdentity(c, guard.Identity{System: true})
			return c.Next()
		}
		return next(c)
	}
}

// InternalOnly rejects every caller without the internal secret. An unset
// secret rejects everyone.
func InternalOnly(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !hasInternalSecret(c, secret) {
			return deny(c, "missing or wrong internal secret")
		}
		tenant.SetIdentity(c, guard.Identity{System: true})
		return c.Next()
	}
}

// InternalIfConfigured behaves like InternalOnly when a secret is set and
// passes everything through otherwise.
func InternalIfConfigured(secret string) fiber.Handler {
	if secret == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return InternalOnly(secret)
}

func hasInternalSecret(c *fiber.Ctx, secret string) bool {
	if secret == "" {
		return false
	}
	got := c.Get(InternalSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// Unauthorized writes the one response every authentication failure shares.
func Unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

func deny(c *fiber.Ctx, reason string) error {
	slog.WarnContext(c.UserContext(), "authentication denied",
		"reason", reason,
		"request_id", c.Locals("requestid"),
		"ip", ClientIP(c),
		"path", c.Path(),
	)
	return Unauthorized(c)
}
