package dto

import (
	"github.com/nullpass/nullpass/internal/models"
)

// EntitlementRequest is a self-service entitlement update. Absent fields are
// left untouched.
type EntitlementRequest struct {
	Service                 string         `json:"service"`
	Tier                    *string        `json:"tier,omitempty"`
	IsPremium               *bool          `json:"isPremium,omitempty"`
	AccessFlags             map[string]any `json:"accessFlags,omitempty"`
	Metadata                map[string]any `json:"metadata,omitempty"`
	CustomStorageLimit      *int64         `json:"customStorageLimit,omitempty"`
	CustomAPIKeyLimit       *int64         `json:"customApiKeyLimit,omitempty"`
	PolarCustomerID         *string        `json:"polarCustomerId,omitempty"`
	PolarSubscriptionID     *string        `json:"polarSubscriptionId,omitempty"`
	PolarSubscriptionStatus *string        `json:"polarSubscriptionStatus,omitempty"`
}

func (r *EntitlementRequest) Patch() models.EntitlementPatch {
	return models.EntitlementPatch{
		Tier:                    r.Tier,
		IsPremium:               r.IsPremium,
		AccessFlags:             r.AccessFlags,
		Metadata:                r.Metadata,
		CustomStorageLimit:      r.CustomStorageLimit,
		CustomAPIKeyLimit:       r.CustomAPIKeyLimit,
		PolarCustomerID:         r.PolarCustomerID,
		PolarSubscriptionID:     r.PolarSubscriptionID,
		PolarSubscriptionStatus: r.PolarSubscriptionStatus,
	}
}

type EntitlementResponse struct {
	Entitlement *models.ServiceEntitlement `json:"entitlement"`
}

type EntitlementsResponse struct {
	Entitlements []models.ServiceEntitlement `json:"entitlements"`
}

type DisconnectRequest struct {
	Service string `json:"service"`
}

type ConnectionResponse struct {
	Connected bool           `json:"connected"`
	Service   models.Service `json:"service"`
	Tier      string         `json:"tier,omitempty"`
	IsPremium *bool          `json:"isPremium,omitempty"`
	Message   string         `json:"message,omitempty"`
}

type CustomDomainRequest struct {
	Domain string `json:"domain"`
}

type CustomDomainResponse struct {
	CustomDomain         *string `json:"customDomain"`
	CustomDomainVerified bool    `json:"customDomainVerified"`
	HasCustomDomain      bool    `json:"hasCustomDomain"`
}

type CustomDomainSetResponse struct {
	Success bool   `json:"success"`
	Domain  string `json:"domain"`
	Message string `json:"message"`
}

type AuditResponse struct {
	Logs   []models.AuditLog `json:"logs"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type SubscriptionPrice struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

type SubscriptionProduct struct {
	Name string `json:"name"`
}

// SubscriptionResponse mirrors the caller's Polar subscription. Period
// boundaries are unix seconds.
type SubscriptionResponse struct {
	ID                 string               `json:"id"`
	Status             string               `json:"status"`
	CurrentPeriodStart int64                `json:"currentPeriodStart"`
	CurrentPeriodEnd   int64                `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool                 `json:"cancelAtPeriodEnd"`
	Plan               string               `json:"plan"`
	BillingCycle       string               `json:"billingCycle"`
	Price              *SubscriptionPrice   `json:"price,omitempty"`
	Product            *SubscriptionProduct `json:"product,omitempty"`
}
