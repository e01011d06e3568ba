package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/nullpass/nullpass/internal/config"
)

// CORS allows only the configured origins. With none configured no CORS
// headers are sent, so browsers refuse cross-origin calls.
func CORS(cfg *config.Config) fiber.Handler {
	origins := cfg.Origins()
	if len(origins) == 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept, X-Internal-Secret",
		AllowMethods:     "GET, POST, PUT, DELETE, PATCH, OPTIONS",
		AllowCredentials: true,
	})
}
