package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpass/nullpass/internal/config"
	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/guard"
	"github.com/nullpass/nullpass/internal/handlers"
	"github.com/nullpass/nullpass/internal/ipcrypt"
	"github.com/nullpass/nullpass/internal/middleware"
	"github.com/nullpass/nullpass/internal/notify"
	"github.com/nullpass/nullpass/internal/polar"
	"github.com/nullpass/nullpass/internal/repository/memory"
	"github.com/nullpass/nullpass/internal/services"
	"github.com/nullpass/nullpass/internal/shield"
	"github.com/nullpass/nullpass/internal/tenant"
	"github.com/nullpass/nullpass/internal/token"
	"github.com/nullpass/nullpass/internal/totp"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"

// newTestApp wires the full route table over an in-memory store, the way
// main does over postgres.
func newTestApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	store := memory.New()
	users := store.Users()
	ents := store.Entitlements()
	codec := token.NewCodec("e2e-secret", time.Hour)
	billing := polar.NewClient("", "", time.Second)
	registry := tenant.Default(func(string) string { return "" })

	audit := services.NewAuditService(store.Audit(), ipcrypt.New("e2e-key"))
	sessions := services.NewSessionService(store.Sessions(), users, codec, audit, 7*24*time.Hour)
	entitlements := services.NewEntitlementService(ents, users, audit)
	auth := services.NewAuthService(users, sessions, entitlements, codec, totp.NewVerifier(totp.DefaultWindow), audit, billing)
	subscriptions := services.NewSubscriptionService(entitlements, ents, users, audit, notify.NewDiscord("", time.Second), billing)

	app := fiber.New(middleware.TrustProxies(fiber.Config{}, fiber.HeaderXForwardedFor, nil))
	Setup(app, Deps{
		Config:       &config.Config{},
		Codec:        codec,
		Guard:        guard.New(codec, store.Sessions()),
		Shield:       shield.New(shield.NewLocalGateway(100, 100, time.Minute), false),
		Entitlements: entitlements,

		Auth:     handlers.NewAuthHandler(auth, sessions),
		Services: handlers.NewServiceHandler(entitlements, audit, subscriptions),
		Admin:    handlers.NewAdminHandler(services.NewAdminService(users, ents), entitlements),
		Migrate:  handlers.NewMigrateHandler(services.NewMigrationService(users, entitlements)),
		Webhooks: handlers.NewWebhookHandler(subscriptions, registry),
		Health:   handlers.NewHealthHandler(registry, func(context.Context) error { return nil }),
	})
	return app, store
}

func send(t *testing.T, app *fiber.App, method, path, body, bearer string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("User-Agent", browserUA)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

func TestAuthFlow(t *testing.T) {
	app, store := newTestApp(t)
	creds := `{"email":"flow@example.com","password":"correct-horse"}`

	var registered dto.AuthResponse
	status := send(t, app, http.MethodPost, "/api/auth/register", creds, "", &registered)
	require.Equal(t, fiber.StatusCreated, status)
	require.NotEmpty(t, registered.Token)
	assert.Equal(t, "flow@example.com", registered.User.Email)

	var loggedIn dto.LoginResponse
	status = send(t, app, http.MethodPost, "/api/auth/login", creds, "", &loggedIn)
	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, loggedIn.Token)
	assert.False(t, loggedIn.Requires2FA)

	var me struct {
		User struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	status = send(t, app, http.MethodGet, "/api/auth/me", "", loggedIn.Token, &me)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, registered.User.ID.String(), me.User.ID)
	assert.Equal(t, "flow@example.com", me.User.Email)

	var failed dto.ErrorResponse
	status = send(t, app, http.MethodPost, "/api/auth/login", `{"email":"flow@example.com","password":"wrong-horse"}`, "", &failed)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", failed.Message)

	status = send(t, app, http.MethodGet, "/api/auth/me", "", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	// Second factor on: login stops at a pending token that opens nothing.
	secret := "JBSWY3DPEHPK3PXP"
	require.NoError(t, store.Users().Update(context.Background(), registered.User.ID, map[string]any{
		"two_factor_enabled": true,
		"two_factor_secret":  secret,
	}))

	var pending dto.LoginResponse
	status = send(t, app, http.MethodPost, "/api/auth/login", creds, "", &pending)
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, pending.Requires2FA)
	assert.Empty(t, pending.Token)
	require.NotEmpty(t, pending.PendingToken)

	status = send(t, app, http.MethodGet, "/api/auth/me", "", pending.PendingToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestHealthRoute(t *testing.T) {
	app, _ := newTestApp(t)
	status := send(t, app, http.MethodGet, "/api/health", "", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}
