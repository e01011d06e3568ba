//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/nullpass/nullpass/internal/database"
	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/repository"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "nullpass_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/nullpass_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func TestRepositories_Postgres(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	entitlements := repository.NewEntitlementRepository(db)
	audit := repository.NewAuditRepository(db)

	u := &models.User{Email: "it-" + uuid.NewString() + "@example.com"}
	require.NoError(t, users.Create(ctx, u))
	require.NotEqual(t, uuid.Nil, u.ID)

	t.Run("duplicate email", func(t *testing.T) {
		err := users.Create(ctx, &models.User{Email: u.Email})
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("session lifecycle", func(t *testing.T) {
		now := time.Now()
		s := &models.Session{UserID: u.ID, Token: uuid.NewString(), IP: "10.0.0.1", ExpiresAt: now.Add(time.Hour)}
		require.NoError(t, sessions.Create(ctx, s))

		live, err := sessions.FindLive(ctx, u.ID, "10.0.0.1", now)
		require.NoError(t, err)
		assert.Equal(t, s.ID, live.ID)

		_, err = sessions.FindLive(ctx, u.ID, "10.0.0.2", now)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		require.NoError(t, sessions.Rotate(ctx, s.ID, "rotated-"+s.Token, now.Add(2*time.Hour)))
		got, err := sessions.GetByToken(ctx, "rotated-"+s.Token)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)

		n, err := sessions.DeleteExpired(ctx, now.Add(3*time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))
	})

	t.Run("entitlement upsert keeps absent fields", func(t *testing.T) {
		premium := true
		tier := "pro"
		_, err := entitlements.Upsert(ctx, u.ID, models.ServiceDrop, models.EntitlementPatch{IsPremium: &premium})
		require.NoError(t, err)

		e, err := entitlements.Upsert(ctx, u.ID, models.ServiceDrop, models.EntitlementPatch{Tier: &tier})
		require.NoError(t, err)
		assert.Equal(t, "pro", e.Tier)
		assert.True(t, e.IsPremium)
		assert.True(t, e.Connected)

		n, err := entitlements.CountPremium(ctx, models.ServiceDrop)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))
	})

	t.Run("custom domain owner", func(t *testing.T) {
		other := &models.User{Email: "it-" + uuid.NewString() + "@example.com"}
		require.NoError(t, users.Create(ctx, other))
		_, err := entitlements.Upsert(ctx, other.ID, models.ServiceDrop, models.EntitlementPatch{
			Metadata: map[string]any{"customDomain": "files.example.com"},
		})
		require.NoError(t, err)

		owner, err := entitlements.FindCustomDomainOwner(ctx, "files.example.com", u.ID)
		require.NoError(t, err)
		assert.Equal(t, other.ID, owner.UserID)

		_, err = entitlements.FindCustomDomainOwner(ctx, "files.example.com", other.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("audit paging", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, audit.Create(ctx, &models.AuditLog{
				UserID: u.ID,
				Action: models.AuditUserLogin,
				Data:   map[string]any{"n": i},
			}))
		}
		logs, total, err := audit.List(ctx, u.ID, models.AuditUserLogin, 0, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Len(t, logs, 2)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, u.ID))
		list, err := entitlements.List(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
		_, total, err := audit.List(ctx, u.ID, "", 0, 10)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}
