package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/nullpass/nullpass/internal/config"
	"github.com/nullpass/nullpass/internal/guard"
	"github.com/nullpass/nullpass/internal/handlers"
	"github.com/nullpass/nullpass/internal/middleware"
	"github.com/nullpass/nullpass/internal/services"
	"github.com/nullpass/nullpass/internal/shield"
	"github.com/nullpass/nullpass/internal/token"
)

// Deps carries everything the routes need from main.
type Deps struct {
	Config       *config.Config
	Codec        *token.Codec
	Guard        *guard.Guard
	Shield       *shield.Shield
	Entitlements *services.EntitlementService

	Auth     *handlers.AuthHandler
	Services *handlers.ServiceHandler
	Admin    *handlers.AdminHandler
	Migrate  *handlers.MigrateHandler
	Webhooks *handlers.WebhookHandler
	Health   *handlers.HealthHandler
}

func Setup(app *fiber.App, d Deps) {
	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      middleware.ClientIP,
	}))

	api.Get("/health", d.Health.Check)

	protect := func(cost int) fiber.Handler { return middleware.Protect(d.Shield, cost) }
	authed := middleware.JWTProtected(d.Codec, d.Guard)
	p := protect(middleware.CostDefault)

	// Credential endpoints get a stricter per-IP limit on top of the shield.
	auth := api.Group("/auth")
	credentialLimit := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      middleware.ClientIP,
	})
	auth.Post("/register", credentialLimit, protect(middleware.CostSensitive), d.Auth.Register)
	auth.Post("/login", credentialLimit, protect(middleware.CostSensitive), d.Auth.Login)
	auth.Post("/verify", p, d.Auth.Verify)

	auth.Get("/me", p, authed, d.Auth.Me)
	auth.Post("/2fa", p, authed, d.Auth.TwoFactor)
	auth.Post("/password", protect(middleware.CostSensitive), authed, d.Auth.ChangePassword)
	auth.Post("/disable-account", protect(middleware.CostSensitive), authed, d.Auth.DisableAccount)
	auth.Post("/delete-account", protect(middleware.CostSensitive), authed, d.Auth.DeleteAccount)
	auth.Get("/sessions", p, authed, d.Auth.ListSessions)
	auth.Delete("/sessions", p, authed, d.Auth.RevokeSessions)
	auth.Get("/user/:userId", middleware.InternalOnly(d.Config.InternalSecret), d.Auth.GetUser)

	api.Get("/services", p, authed, d.Services.List)
	api.Post("/services", p, authed, d.Services.Update)
	api.Get("/connect/check", p, authed, d.Services.CheckConnection)
	api.Post("/connect/disconnect", p, authed, d.Services.Disconnect)
	api.Get("/user/custom-domain", p, authed, d.Services.GetCustomDomain)
	api.Post("/user/custom-domain", p, authed, d.Services.SetCustomDomain)
	api.Delete("/user/custom-domain", p, authed, d.Services.RemoveCustomDomain)
	api.Get("/audit", p, authed, d.Services.Audit)
	api.Get("/subscription", p, authed, d.Services.Subscription)

	api.Post("/migrate",
		protect(middleware.CostMigrate),
		middleware.InternalIfConfigured(d.Config.InternalSecret),
		d.Migrate.Migrate,
	)

	admin := api.Group("/admin",
		p,
		middleware.InternalOr(d.Config.InternalSecret, authed),
		middleware.AdminRequired(d.Entitlements),
	)
	admin.Get("/users", d.Admin.ListUsers)
	admin.Get("/users/stats", d.Admin.Stats)
	admin.Patch("/users/:userId", d.Admin.UpdateUser)

	// Webhooks authenticate by signature, not by bearer token.
	api.Post("/webhooks/:service", d.Webhooks.HandlePolar)
}
