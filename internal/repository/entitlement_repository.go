package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nullpass/nullpass/internal/models"
)

type EntitlementRepository struct {
	db *gorm.DB
}

func NewEntitlementRepository(db *gorm.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

func (r *EntitlementRepository) Get(ctx context.Context, userID uuid.UUID, service models.Service) (*models.ServiceEntitlement, error) {
	var e models.ServiceEntitlement
	err := r.db.WithContext(ctx).
		Scopes(ForUser(userID), ForService(service)).
		First(&e).Error
	if err != nil {
		return nil, normalize(err)
	}
	return &e, nil
}

func (r *EntitlementRepository) List(ctx context.Context, userID uuid.UUID) ([]models.ServiceEntitlement, error) {
	var out []models.ServiceEntitlement
	err := r.db.WithContext(ctx).Scopes(ForUser(userID)).Order("service").Find(&out).Error
	return out, normalize(err)
}

// Upsert inserts the defaulted row or, on a (user_id, service) conflict,
// updates only the columns present in the patch. The stored row is returned.
func (r *EntitlementRepository) Upsert(ctx context.Context, userID uuid.UUID, service models.Service, patch models.EntitlementPatch) (*models.ServiceEntitlement, error) {
	row := patch.NewEntitlement(userID, service)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "service"}},
		DoUpdates: clause.AssignmentColumns(patch.Columns()),
	}).Create(row).Error
	if err != nil {
		return nil, normalize(err)
	}
	return r.Get(ctx, userID, service)
}

func (r *EntitlementRepository) ListByCustomer(ctx context.Context, customerID string) ([]models.ServiceEntitlement, error) {
	var out []models.ServiceEntitlement
	err := r.db.WithContext(ctx).Where("polar_customer_id = ?", customerID).Find(&out).Error
	return out, normalize(err)
}

// FindCustomDomainOwner returns the DROP entitlement of another user that
// already claims domain.
func (r *EntitlementRepository) FindCustomDomainOwner(ctx context.Context, domain string, exclude uuid.UUID) (*models.ServiceEntitlement, error) {
	var e models.ServiceEntitlement
	err := r.db.WithContext(ctx).
		Where("service = ? AND user_id <> ? AND metadata->>'customDomain' = ?", models.ServiceDrop, exclude, domain).
		First(&e).Error
	if err != nil {
		return nil, normalize(err)
	}
	return &e, nil
}

func (r *EntitlementRepository) CountPremium(ctx context.Context, service models.Service) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ServiceEntitlement{}).
		Where("service = ? AND is_premium = ?", service, true).
		Count(&n).Error
	return n, normalize(err)
}
