package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nullpass/nullpass/internal/models"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	return normalize(r.db.WithContext(ctx).Create(s).Error)
}

// FindLive returns the newest unexpired session for the (user, ip) pair.
func (r *SessionRepository) FindLive(ctx context.Context, userID uuid.UUID, ip string, now time.Time) (*models.Session, error) {
	var s models.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ip = ? AND expires_at >= ?", userID, ip, now).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, normalize(err)
	}
	return &s, nil
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&s).Error; err != nil {
		return nil, normalize(err)
	}
	return &s, nil
}

// Rotate overwrites token and expiry of an existing row in place.
func (r *SessionRepository) Rotate(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"token": token, "expires_at": expiresAt})
	if res.Error != nil {
		return normalize(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SessionRepository) ListLive(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Session, error) {
	var out []models.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at >= ?", userID, now).
		Order("created_at DESC").
		Find(&out).Error
	return out, normalize(err)
}

// Delete removes one of the user's sessions.
func (r *SessionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Session{})
	if res.Error != nil {
		return normalize(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Scopes(ForUser(userID)).Delete(&models.Session{})
	return res.RowsAffected, normalize(res.Error)
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.Session{})
	return res.RowsAffected, normalize(res.Error)
}
