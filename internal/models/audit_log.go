package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditUserLogin           AuditAction = "USER_LOGIN"
	AuditUserLogout          AuditAction = "USER_LOGOUT"
	AuditUserRegister        AuditAction = "USER_REGISTER"
	AuditPasswordChange      AuditAction = "PASSWORD_CHANGE"
	AuditTwoFactorEnable     AuditAction = "TWO_FACTOR_ENABLE"
	AuditTwoFactorDisable    AuditAction = "TWO_FACTOR_DISABLE"
	AuditUserUpdate          AuditAction = "USER_UPDATE"
	AuditUserDelete          AuditAction = "USER_DELETE"
	AuditSessionCreate       AuditAction = "SESSION_CREATE"
	AuditSessionDelete       AuditAction = "SESSION_DELETE"
	AuditServiceAccessGrant  AuditAction = "SERVICE_ACCESS_GRANT"
	AuditServiceAccessRevoke AuditAction = "SERVICE_ACCESS_REVOKE"
	AuditServiceTierChange   AuditAction = "SERVICE_TIER_CHANGE"
	AuditSubscriptionCreate  AuditAction = "SUBSCRIPTION_CREATE"
	AuditSubscriptionUpdate  AuditAction = "SUBSCRIPTION_UPDATE"
	AuditSubscriptionCancel  AuditAction = "SUBSCRIPTION_CANCEL"
	AuditSubscriptionRevoke  AuditAction = "SUBSCRIPTION_REVOKE"
	AuditUserBan             AuditAction = "USER_BAN"
	AuditUserDisable         AuditAction = "USER_DISABLE"
	AuditServiceDisconnect   AuditAction = "SERVICE_ENTITLEMENT_DISCONNECT"
	AuditServiceConnect      AuditAction = "SERVICE_ENTITLEMENT_CONNECT"
	AuditUnknown             AuditAction = "UNKNOWN"
)

// AuditLog is an append-only record of a security relevant user action.
type AuditLog struct {
	ID        uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"-"`
	Action    AuditAction       `gorm:"size:64;not null;index" json:"action"`
	Data      datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"data"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
}
