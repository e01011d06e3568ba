package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/models"
)

func TestMigrateCreatesUserAndEntitlements(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	legacyID := uuid.New()

	resp, created, err := h.migration.Migrate(ctx, &dto.MigrateRequest{
		ID:                 legacyID.String(),
		Email:              "legacy@example.com",
		Password:           "plain-password",
		IsPremium:          true,
		PremiumTierDrop:    "pro",
		IsNullDropTeam:     true,
		AccessFilesPreview: true,
		CustomDomain:       "legacy.example.com",
		CreatedAt:          "2023-04-01T10:00:00Z",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, legacyID, resp.UserID)

	u, err := h.store.Users().GetByID(ctx, legacyID)
	require.NoError(t, err)
	assert.True(t, u.Migrated)
	assert.Equal(t, 2023, u.CreatedAt.Year())
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte("plain-password")))

	drop, err := h.entitlements.Get(ctx, legacyID, models.ServiceDrop)
	require.NoError(t, err)
	assert.Equal(t, "pro", drop.Tier)
	assert.True(t, drop.IsPremium)
	assert.Equal(t, "member", drop.AccessFlags["nullDropTeamRole"])
	assert.Equal(t, true, drop.AccessFlags["accessFilesPreview"])
	assert.Equal(t, "legacy.example.com", drop.MetadataString("customDomain"))

	for _, svc := range []models.Service{models.ServiceMails, models.ServiceVault, models.ServiceDB} {
		e, err := h.entitlements.Get(ctx, legacyID, svc)
		require.NoError(t, err, svc)
		assert.True(t, e.IsPremium)
		assert.Equal(t, models.DefaultTier, e.Tier)
	}

	_, _, err = h.migration.Migrate(ctx, &dto.MigrateRequest{Email: "legacy@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrAlreadyMigrated)
}

func TestMigrateUpdatesExistingUserAndKeepsHash(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	reg := register(t, h, "existing@example.com", "long-enough")

	hash, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	_, created, err := h.migration.Migrate(ctx, &dto.MigrateRequest{
		Email:         "existing@example.com",
		Password:      string(hash),
		IsPremiumDrop: true,
	})
	require.NoError(t, err)
	assert.False(t, created)

	u, err := h.store.Users().GetByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, string(hash), *u.PasswordHash)
	assert.True(t, u.Migrated)

	_, err = h.entitlements.Get(ctx, reg.User.ID, models.ServiceMails)
	assert.ErrorIs(t, err, ErrEntitlementNotFound, "only DROP without a global premium flag")

	_, err = h.auth.Login(ctx, &dto.LoginRequest{Email: "existing@example.com", Password: "legacy-secret"}, "ip")
	assert.NoError(t, err)
}

func TestMigrateValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, _, err := h.migration.Migrate(ctx, &dto.MigrateRequest{Email: "bad", Password: "x"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, _, err = h.migration.Migrate(ctx, &dto.MigrateRequest{Email: "ok@example.com"})
	assert.ErrorAs(t, err, &verr)

	_, _, err = h.migration.Migrate(ctx, &dto.MigrateRequest{Email: "ok@example.com", Password: "x", CreatedAt: "yesterday"})
	assert.ErrorAs(t, err, &verr)
}

func TestMigratedHash(t *testing.T) {
	for _, p := range []string{"$2a$10$abc", "$2b$10$abc", "$2y$10$abc"} {
		got, err := migratedHash(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	got, err := migratedHash("plain")
	require.NoError(t, err)
	assert.NotEqual(t, "plain", got)
}
