package models

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a bearer token to a user and the IP it was issued to.
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_sessions_user_ip" json:"-"`
	Token     string    `gorm:"type:text;uniqueIndex;not null" json:"-"`
	IP        string    `gorm:"size:64;not null;index:idx_sessions_user_ip" json:"ip"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Live reports whether the session is still usable at the given instant. A
// session expires strictly after its ExpiresAt.
func (s *Session) Live(at time.Time) bool {
	return !s.ExpiresAt.Before(at)
}
