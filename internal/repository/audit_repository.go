package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nullpass/nullpass/internal/models"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return normalize(r.db.WithContext(ctx).Create(entry).Error)
}

// List pages a user's entries newest first. An empty action matches all.
func (r *AuditRepository) List(ctx context.Context, userID uuid.UUID, action models.AuditAction, offset, limit int) ([]models.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AuditLog{}).Where("user_id = ?", userID)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, normalize(err)
	}

	var out []models.AuditLog
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, normalize(err)
	}
	return out, total, nil
}
