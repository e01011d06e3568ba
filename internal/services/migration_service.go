package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/repository"
)

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// MigrationService imports accounts from the legacy per-service databases.
type MigrationService struct {
	users        UserStore
	entitlements *EntitlementService
}

func NewMigrationService(users UserStore, entitlements *EntitlementService) *MigrationService {
	return &MigrationService{users: users, entitlements: entitlements}
}

// Migrate creates or updates the account described by req. The returned bool
// is true when a new user row was inserted.
func (s *MigrationService) Migrate(ctx context.Context, req *dto.MigrateRequest) (*dto.MigrateResponse, bool, error) {
	if err := validateEmail(req.Email); err != nil {
		return nil, false, err
	}
	if req.Password == "" {
		return nil, false, invalid("Password is required")
	}
	var createdAt time.Time
	if req.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			return nil, false, invalid("Invalid createdAt timestamp")
		}
		createdAt = t
	}

	existing, err := s.find(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && existing.Migrated {
		slog.WarnContext(ctx, "user already migrated", "user_id", existing.ID)
		return nil, false, ErrAlreadyMigrated
	}

	hash, err := migratedHash(req.Password)
	if err != nil {
		return nil, false, err
	}

	var user *models.User
	created := existing == nil
	if existing != nil {
		fields := map[string]any{
			"password_hash":      hash,
			"two_factor_enabled": req.TwoFactorEnabled,
			"migrated":           true,
		}
		if req.Name != nil {
			fields["display_name"] = *req.Name
		}
		if req.Avatar != nil {
			fields["avatar"] = *req.Avatar
		}
		if req.TwoFactorSecret != nil {
			fields["two_factor_secret"] = *req.TwoFactorSecret
		}
		if !createdAt.IsZero() {
			fields["created_at"] = createdAt
		}
		if err := s.users.Update(ctx, existing.ID, fields); err != nil {
			return nil, false, fmt.Errorf("update migrated user: %w", err)
		}
		user = existing
	} else {
		user = &models.User{
			ID:               uuid.New(),
			Email:            req.Email,
			PasswordHash:     &hash,
			DisplayName:      req.Name,
			Avatar:           req.Avatar,
			TwoFactorEnabled: req.TwoFactorEnabled,
			TwoFactorSecret:  req.TwoFactorSecret,
			Migrated:         true,
			CreatedAt:        createdAt,
		}
		if id, err := uuid.Parse(req.ID); err == nil {
			user.ID = id
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, false, ErrAlreadyMigrated
			}
			return nil, false, fmt.Errorf("create migrated user: %w", err)
		}
	}

	if err := s.migrateEntitlements(ctx, user.ID, req); err != nil {
		return nil, false, err
	}

	slog.InfoContext(ctx, "user migrated", "user_id", user.ID, "created", created)
	return &dto.MigrateResponse{
		Success: true,
		UserID:  user.ID,
		Email:   user.Email,
		Message: "User migrated successfully",
	}, created, nil
}

func (s *MigrationService) find(ctx context.Context, req *dto.MigrateRequest) (*models.User, error) {
	if id, err := uuid.Parse(req.ID); err == nil {
		u, err := s.users.GetByID(ctx, id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// migratedHash keeps bcrypt hashes from the legacy store and hashes
// everything else.
func migratedHash(password string) (string, error) {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(password, p) {
			return password, nil
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func tierOr(t string) *string {
	if t == "" {
		t = models.DefaultTier
	}
	return &t
}

func (s *MigrationService) migrateEntitlements(ctx context.Context, userID uuid.UUID, req *dto.MigrateRequest) error {
	flags := map[string]any{}
	if req.IsNullDropTeam {
		role := req.NullDropTeamRole
		if role == "" {
			role = "member"
		}
		flags[flagTeam] = true
		flags[flagTeamRole] = role
	}
	if req.AccessFilesPreview {
		flags["accessFilesPreview"] = true
	}
	if req.AccessFilesDownload {
		flags["accessFilesDownload"] = true
	}
	meta := map[string]any{}
	if req.CustomDomain != "" {
		meta[metaDomain] = req.CustomDomain
		meta[metaVerified] = req.CustomDomainVerified
	}

	dropPremium := req.IsPremiumDrop || req.IsPremium
	drop := models.EntitlementPatch{
		Tier:                    tierOr(req.PremiumTierDrop),
		IsPremium:               &dropPremium,
		CustomStorageLimit:      req.CustomStorageLimit,
		CustomAPIKeyLimit:       req.CustomAPIKeyLimit,
		PolarCustomerID:         req.PolarCustomerID,
		PolarSubscriptionID:     req.PolarSubscriptionID,
		PolarSubscriptionStatus: req.PolarSubscriptionStatus,
	}
	if len(flags) > 0 {
		drop.AccessFlags = flags
	}
	if len(meta) > 0 {
		drop.Metadata = meta
	}
	if _, err := s.entitlements.Upsert(ctx, userID, models.ServiceDrop, drop); err != nil {
		return err
	}

	extra := []struct {
		service models.Service
		premium bool
		tier    string
	}{
		{models.ServiceMails, req.IsPremiumMails, req.PremiumTierMails},
		{models.ServiceVault, req.IsPremiumVault, req.PremiumTierVault},
		{models.ServiceDB, req.IsPremiumDB, req.PremiumTierDB},
	}
	for _, x := range extra {
		if !x.premium && !req.IsPremium {
			continue
		}
		premium := true
		patch := models.EntitlementPatch{Tier: tierOr(x.tier), IsPremium: &premium}
		if _, err := s.entitlements.Upsert(ctx, userID, x.service, patch); err != nil {
			return err
		}
	}
	return nil
}
