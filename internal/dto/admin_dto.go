package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/models"
)

type AdminServiceAccess struct {
	Tier               string         `json:"tier"`
	IsPremium          bool           `json:"isPremium"`
	AccessFlags        map[string]any `json:"accessFlags"`
	Metadata           map[string]any `json:"metadata"`
	CustomStorageLimit *int64         `json:"customStorageLimit"`
	CustomAPIKeyLimit  *int64         `json:"customApiKeyLimit"`
}

type AdminUser struct {
	ID            uuid.UUID          `json:"id"`
	Email         string             `json:"email"`
	DisplayName   *string            `json:"displayName"`
	Avatar        *string            `json:"avatar"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	ServiceAccess AdminServiceAccess `json:"serviceAccess"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int64 `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

type AdminUsersResponse struct {
	Users      []AdminUser `json:"users"`
	Pagination Pagination  `json:"pagination"`
}

type StatsResponse struct {
	TotalUsers   int64 `json:"totalUsers"`
	PremiumUsers int64 `json:"premiumUsers"`
	FreeUsers    int64 `json:"freeUsers"`
}

// GrantRequest is an operator change to another user's entitlement. Billing
// linkage is owned by the webhook flow and cannot be set here.
type GrantRequest struct {
	Service            string         `json:"service"`
	Tier               *string        `json:"tier,omitempty"`
	IsPremium          *bool          `json:"isPremium,omitempty"`
	AccessFlags        map[string]any `json:"accessFlags,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CustomStorageLimit *int64         `json:"customStorageLimit,omitempty"`
	CustomAPIKeyLimit  *int64         `json:"customApiKeyLimit,omitempty"`
}

func (r *GrantRequest) Patch() models.EntitlementPatch {
	return models.EntitlementPatch{
		Tier:               r.Tier,
		IsPremium:          r.IsPremium,
		AccessFlags:        r.AccessFlags,
		Metadata:           r.Metadata,
		CustomStorageLimit: r.CustomStorageLimit,
		CustomAPIKeyLimit:  r.CustomAPIKeyLimit,
	}
}

// Changes lists the present fields for the audit trail.
func (r *GrantRequest) Changes() map[string]any {
	out := map[string]any{}
	if r.Tier != nil {
		out["tier"] = *r.Tier
	}
	if r.IsPremium != nil {
		out["isPremium"] = *r.IsPremium
	}
	if r.AccessFlags != nil {
		out["accessFlags"] = r.AccessFlags
	}
	if r.Metadata != nil {
		out["metadata"] = r.Metadata
	}
	if r.CustomStorageLimit != nil {
		out["customStorageLimit"] = *r.CustomStorageLimit
	}
	if r.CustomAPIKeyLimit != nil {
		out["customApiKeyLimit"] = *r.CustomAPIKeyLimit
	}
	return out
}

// MigrateRequest imports one account from a legacy service database.
type MigrateRequest struct {
	ID                      string  `json:"id,omitempty"`
	Email                   string  `json:"email"`
	Password                string  `json:"password"`
	Name                    *string `json:"name,omitempty"`
	Avatar                  *string `json:"avatar,omitempty"`
	IsPremium               bool    `json:"isPremium"`
	IsPremiumDrop           bool    `json:"isPremiumDrop"`
	IsPremiumMails          bool    `json:"isPremiumMails"`
	IsPremiumVault          bool    `json:"isPremiumVault"`
	IsPremiumDB             bool    `json:"isPremiumDB"`
	PremiumTierDrop         string  `json:"premiumTierDrop,omitempty"`
	PremiumTierMails        string  `json:"premiumTierMails,omitempty"`
	PremiumTierVault        string  `json:"premiumTierVault,omitempty"`
	PremiumTierDB           string  `json:"premiumTierDB,omitempty"`
	TwoFactorEnabled        bool    `json:"twoFactorEnabled"`
	TwoFactorSecret         *string `json:"twoFactorSecret,omitempty"`
	CustomStorageLimit      *int64  `json:"customStorageLimit,omitempty"`
	CustomAPIKeyLimit       *int64  `json:"customApiKeyLimit,omitempty"`
	IsNullDropTeam          bool    `json:"isNullDropTeam"`
	AccessFilesPreview      bool    `json:"accessFilesPreview"`
	AccessFilesDownload     bool    `json:"accessFilesDownload"`
	NullDropTeamRole        string  `json:"nullDropTeamRole,omitempty"`
	CustomDomain            string  `json:"customDomain,omitempty"`
	CustomDomainVerified    bool    `json:"customDomainVerified"`
	PolarCustomerID         *string `json:"polarCustomerId,omitempty"`
	PolarSubscriptionID     *string `json:"polarSubscriptionId,omitempty"`
	PolarSubscriptionStatus *string `json:"polarSubscriptionStatus,omitempty"`
	CreatedAt               string  `json:"createdAt,omitempty"`
}

type MigrateResponse struct {
	Success bool      `json:"success"`
	UserID  uuid.UUID `json:"userId"`
	Email   string    `json:"email"`
	Message string    `json:"message"`
}
