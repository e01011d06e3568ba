package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Service identifies a downstream product that consumes identities.
type Service string

const (
	ServiceDrop  Service = "DROP"
	ServiceMails Service = "MAILS"
	ServiceVault Service = "VAULT"
	ServiceDB    Service = "DB"
	ServiceBoard Service = "BOARD"
)

// AllServices lists every known downstream service.
var AllServices = []Service{ServiceDrop, ServiceMails, ServiceVault, ServiceDB, ServiceBoard}

// ParseService validates a raw service identifier.
func ParseService(s string) (Service, bool) {
	for _, svc := range AllServices {
		if string(svc) == s {
			return svc, true
		}
	}
	return "", false
}

const DefaultTier = "free"

// ServiceEntitlement is the per (user, service) billing and access record.
type ServiceEntitlement struct {
	ID                      uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID                  uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_entitlements_user_service" json:"userId"`
	Service                 Service           `gorm:"size:16;not null;uniqueIndex:idx_entitlements_user_service" json:"service"`
	Tier                    string            `gorm:"size:64;not null" json:"tier"`
	IsPremium               bool              `gorm:"not null" json:"isPremium"`
	AccessFlags             datatypes.JSONMap `gorm:"type:jsonb" json:"accessFlags"`
	Metadata                datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CustomStorageLimit      *int64            `json:"customStorageLimit"`
	CustomAPIKeyLimit       *int64            `gorm:"column:custom_api_key_limit" json:"customApiKeyLimit"`
	PolarCustomerID         *string           `gorm:"size:255;index" json:"polarCustomerId"`
	PolarSubscriptionID     *string           `gorm:"size:255" json:"polarSubscriptionId"`
	PolarSubscriptionStatus *string           `gorm:"size:64" json:"polarSubscriptionStatus"`
	Connected               bool              `gorm:"not null" json:"connected"`
	CreatedAt               time.Time         `json:"createdAt"`
	UpdatedAt               time.Time         `json:"updatedAt"`
}

func (ServiceEntitlement) TableName() string {
	return "service_entitlements"
}

// Flag returns an access flag value, or nil when absent.
func (e *ServiceEntitlement) Flag(key string) any {
	if e == nil || e.AccessFlags == nil {
		return nil
	}
	return e.AccessFlags[key]
}

// MetadataString returns a string metadata value, or "" when absent or not a string.
func (e *ServiceEntitlement) MetadataString(key string) string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	s, _ := e.Metadata[key].(string)
	return s
}

// EntitlementPatch is a partial update. Nil fields are left untouched on
// update and defaulted on create. The Clear* switches null out the Polar
// linkage explicitly.
type EntitlementPatch struct {
	Tier                    *string
	IsPremium               *bool
	AccessFlags             map[string]any
	Metadata                map[string]any
	CustomStorageLimit      *int64
	CustomAPIKeyLimit       *int64
	PolarCustomerID         *string
	PolarSubscriptionID     *string
	PolarSubscriptionStatus *string
	Connected               *bool

	ClearPolarCustomer     bool
	ClearPolarSubscription bool
}

// NewEntitlement builds the row inserted when no (user, service) record exists.
func (p EntitlementPatch) NewEntitlement(userID uuid.UUID, service Service) *ServiceEntitlement {
	e := &ServiceEntitlement{
		UserID:    userID,
		Service:   service,
		Tier:      DefaultTier,
		IsPremium: false,
		Connected: true,
	}
	p.Apply(e)
	return e
}

// Apply copies every present field onto e.
func (p EntitlementPatch) Apply(e *ServiceEntitlement) {
	if p.Tier != nil {
		e.Tier = *p.Tier
	}
	if p.IsPremium != nil {
		e.IsPremium = *p.IsPremium
	}
	if p.AccessFlags != nil {
		e.AccessFlags = datatypes.JSONMap(p.AccessFlags)
	}
	if p.Metadata != nil {
		e.Metadata = datatypes.JSONMap(p.Metadata)
	}
	if p.CustomStorageLimit != nil {
		e.CustomStorageLimit = p.CustomStorageLimit
	}
	if p.CustomAPIKeyLimit != nil {
		e.CustomAPIKeyLimit = p.CustomAPIKeyLimit
	}
	if p.PolarCustomerID != nil {
		e.PolarCustomerID = p.PolarCustomerID
	}
	if p.ClearPolarCustomer {
		e.PolarCustomerID = nil
	}
	if p.PolarSubscriptionID != nil {
		e.PolarSubscriptionID = p.PolarSubscriptionID
	}
	if p.ClearPolarSubscription {
		e.PolarSubscriptionID = nil
	}
	if p.PolarSubscriptionStatus != nil {
		e.PolarSubscriptionStatus = p.PolarSubscriptionStatus
	}
	if p.Connected != nil {
		e.Connected = *p.Connected
	}
}

// Columns lists the database columns the patch touches on update.
func (p EntitlementPatch) Columns() []string {
	cols := make([]string, 0, 11)
	if p.Tier != nil {
		cols = append(cols, "tier")
	}
	if p.IsPremium != nil {
		cols = append(cols, "is_premium")
	}
	if p.AccessFlags != nil {
		cols = append(cols, "access_flags")
	}
	if p.Metadata != nil {
		cols = append(cols, "metadata")
	}
	if p.CustomStorageLimit != nil {
		cols = append(cols, "custom_storage_limit")
	}
	if p.CustomAPIKeyLimit != nil {
		cols = append(cols, "custom_api_key_limit")
	}
	if p.PolarCustomerID != nil || p.ClearPolarCustomer {
		cols = append(cols, "polar_customer_id")
	}
	if p.PolarSubscriptionID != nil || p.ClearPolarSubscription {
		cols = append(cols, "polar_subscription_id")
	}
	if p.PolarSubscriptionStatus != nil {
		cols = append(cols, "polar_subscription_status")
	}
	if p.Connected != nil {
		cols = append(cols, "connected")
	}
	return append(cols, "updated_at")
}
