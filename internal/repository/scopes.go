package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nullpass/nullpass/internal/models"
)

// ForUser returns a GORM scope that filters by user_id.
func ForUser(userID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
}

// ForService returns a GORM scope that filters by downstream service.
func ForService(svc models.Service) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("service = ?", svc)
	}
}
