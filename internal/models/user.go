package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record shared by every downstream service.
type User struct {
	ID               uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email            string               `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PasswordHash     *string              `json:"-"`
	DisplayName      *string              `gorm:"size:255" json:"displayName"`
	Avatar           *string              `json:"avatar"`
	TwoFactorEnabled bool                 `gorm:"not null;default:false" json:"twoFactorEnabled"`
	TwoFactorSecret  *string              `json:"-"`
	Disabled         bool                 `gorm:"not null;default:false" json:"disabled"`
	Migrated         bool                 `gorm:"not null;default:false" json:"migrated"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
	Entitlements     []ServiceEntitlement `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"serviceAccess,omitempty"`
}

// CanPasswordLogin reports whether the account carries a password hash.
// Accounts imported without credentials stay locked out of password login.
func (u *User) CanPasswordLogin() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// HasTwoFactorSecret reports whether a TOTP secret is stored.
func (u *User) HasTwoFactorSecret() bool {
	return u.TwoFactorSecret != nil && *u.TwoFactorSecret != ""
}
