package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/token"
)

// The store interfaces are satisfied by the gorm repositories and by the
// in-memory fakes used in tests.

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetWithEntitlements(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, offset, limit int) ([]models.User, int64, error)
	Count(ctx context.Context) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	FindLive(ctx context.Context, userID uuid.UUID, ip string, now time.Time) (*models.Session, error)
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	Rotate(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	ListLive(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Session, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type EntitlementStore interface {
	Get(ctx context.Context, userID uuid.UUID, service models.Service) (*models.ServiceEntitlement, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.ServiceEntitlement, error)
	Upsert(ctx context.Context, userID uuid.UUID, service models.Service, patch models.EntitlementPatch) (*models.ServiceEntitlement, error)
	ListByCustomer(ctx context.Context, customerID string) ([]models.ServiceEntitlement, error)
	FindCustomDomainOwner(ctx context.Context, domain string, exclude uuid.UUID) (*models.ServiceEntitlement, error)
	CountPremium(ctx context.Context, service models.Service) (int64, error)
}

type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, userID uuid.UUID, action models.AuditAction, offset, limit int) ([]models.AuditLog, int64, error)
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
	Verify(raw string) (token.Payload, bool)
}
