package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"github.com/nullpass/nullpass/internal/config"
	"github.com/nullpass/nullpass/internal/database"
	"github.com/nullpass/nullpass/internal/guard"
	"github.com/nullpass/nullpass/internal/handlers"
	"github.com/nullpass/nullpass/internal/ipcrypt"
	"github.com/nullpass/nullpass/internal/jobs"
	"github.com/nullpass/nullpass/internal/logging"
	"github.com/nullpass/nullpass/internal/middleware"
	"github.com/nullpass/nullpass/internal/notify"
	"github.com/nullpass/nullpass/internal/polar"
	"github.com/nullpass/nullpass/internal/repository"
	"github.com/nullpass/nullpass/internal/routes"
	"github.com/nullpass/nullpass/internal/services"
	"github.com/nullpass/nullpass/internal/shield"
	"github.com/nullpass/nullpass/internal/tenant"
	"github.com/nullpass/nullpass/internal/token"
	"github.com/nullpass/nullpass/internal/totp"
)

func main() {
	// Structured logging (JSON to stdout)
	stdout := logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Service registry
	registry := tenant.Default(os.Getenv)
	if cfg.ServicesConfigPath != "" {
		registry, err = tenant.LoadFromFile(cfg.ServicesConfigPath, os.Getenv)
		if err != nil {
			slog.Error("failed to load service registry", "path", cfg.ServicesConfigPath, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("service registry loaded", "services", len(registry.All()))

	// Database
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = database.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdout, pgLogHandler)))

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	// Background jobs stop when done closes.
	done := make(chan struct{})
	logging.StartCleanup(db, done)

	// Tokens and outbound clients
	codec := token.NewCodec(cfg.JWTSecret, token.ParseTTL(cfg.JWTExpiresIn))
	billing := polar.NewClient(cfg.PolarAPIURL, cfg.PolarAccessToken, cfg.PolarTimeout)
	notifier := notify.NewDiscord(cfg.WebhookTicket, cfg.WebhookTimeout)
	if !billing.Enabled() {
		slog.Warn("POLAR_ACCESS_TOKEN not set, subscription lookups and cancellations are disabled")
	}

	// Repositories
	users := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	entitlementRepo := repository.NewEntitlementRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Services
	auditService := services.NewAuditService(auditRepo, ipcrypt.New(cfg.IPEncryptionKey))
	sessionService := services.NewSessionService(sessionRepo, users, codec, auditService, cfg.SessionTTL())
	entitlementService := services.NewEntitlementService(entitlementRepo, users, auditService)
	authService := services.NewAuthService(
		users,
		sessionService,
		entitlementService,
		codec,
		totp.NewVerifier(totp.DefaultWindow),
		auditService,
		billing,
	)
	subscriptionService := services.NewSubscriptionService(
		entitlementService,
		entitlementRepo,
		users,
		auditService,
		notifier,
		billing,
	)
	migrationService := services.NewMigrationService(users, entitlementService)
	adminService := services.NewAdminService(users, entitlementRepo)

	sessionService.StartReaper(cfg.SessionReaperInterval, cfg.SessionReaperGrace, done)

	// Rate limiting and bot detection
	shieldGuard := newShield(cfg, done)

	// Fiber app
	app := fiber.New(middleware.TrustProxies(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	}, cfg.ProxyHeader, cfg.TrustedProxies))

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, routes.Deps{
		Config:       cfg,
		Codec:        codec,
		Guard:        guard.New(codec, sessionRepo),
		Shield:       shieldGuard,
		Entitlements: entitlementService,

		Auth:     handlers.NewAuthHandler(authService, sessionService),
		Services: handlers.NewServiceHandler(entitlementService, auditService, subscriptionService),
		Admin:    handlers.NewAdminHandler(adminService, entitlementService),
		Migrate:  handlers.NewMigrateHandler(migrationService),
		Webhooks: handlers.NewWebhookHandler(subscriptionService, registry),
		Health: handlers.NewHealthHandler(registry, func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(done)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)
	closeDatabase(db)

	slog.Info("server stopped")
}

// newShield picks the remote decision service when SHIELD_URL is set and
// falls back to in-process token buckets otherwise.
func newShield(cfg *config.Config, done <-chan struct{}) *shield.Shield {
	dryRun := cfg.ShieldMode != "LIVE"
	if dryRun {
		slog.Warn("shield running in dry-run mode, denials are logged only", "mode", cfg.ShieldMode)
	}

	if cfg.ShieldURL != "" {
		return shield.New(shield.NewRemoteGateway(cfg.ShieldURL, cfg.ShieldKey, cfg.ShieldTimeout), dryRun)
	}

	local := shield.NewLocalGateway(60, 60, time.Minute)
	jobs.Every("shield-sweep", 10*time.Minute, done, func(context.Context) {
		if n := local.Sweep(); n > 0 {
			slog.Debug("shield buckets swept", "count", n)
		}
	})
	return shield.New(local, dryRun)
}

func closeDatabase(db *gorm.DB) {
	if err := database.Close(db); err != nil {
		slog.Error("database close error", "error", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.Locals("requestid"),
			"error", err.Error(),
		)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
