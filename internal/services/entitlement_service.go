package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/repository"
)

const (
	flagTeam      = "isNullDropTeam"
	flagTeamRole  = "nullDropTeamRole"
	metaDomain    = "customDomain"
	metaVerified  = "customDomainVerified"
	tierCustomDNS = "enterprise"
)

var (
	adminRoles = map[string]bool{"founder": true, "dev": true}
	domainRe   = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9](?:\.[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9])*$`)
)

// EntitlementService is the per (user, service) ledger.
type EntitlementService struct {
	store EntitlementStore
	users UserStore
	audit *AuditService
}

func NewEntitlementService(store EntitlementStore, users UserStore, audit *AuditService) *EntitlementService {
	return &EntitlementService{store: store, users: users, audit: audit}
}

func (s *EntitlementService) Get(ctx context.Context, userID uuid.UUID, svc models.Service) (*models.ServiceEntitlement, error) {
	e, err := s.store.Get(ctx, userID, svc)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrEntitlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	return e, nil
}

// List returns the user's entitlements, optionally narrowed to one service.
func (s *EntitlementService) List(ctx context.Context, userID uuid.UUID, svc models.Service) ([]models.ServiceEntitlement, error) {
	all, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	if svc == "" {
		return all, nil
	}
	out := make([]models.ServiceEntitlement, 0, 1)
	for _, e := range all {
		if e.Service == svc {
			out = append(out, e)
		}
	}
	return out, nil
}

// Upsert creates the record with defaults for absent fields, or changes only
// the present fields of an existing one.
func (s *EntitlementService) Upsert(ctx context.Context, userID uuid.UUID, svc models.Service, patch models.EntitlementPatch) (*models.ServiceEntitlement, error) {
	e, err := s.store.Upsert(ctx, userID, svc, patch)
	if err != nil {
		return nil, fmt.Errorf("upsert entitlement: %w", err)
	}
	return e, nil
}

// IsAdmin reports whether the user belongs to the DROP team as founder or dev.
func (s *EntitlementService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	e, err := s.store.Get(ctx, userID, models.ServiceDrop)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get admin entitlement: %w", err)
	}
	team, _ := e.Flag(flagTeam).(bool)
	role, _ := e.Flag(flagTeamRole).(string)
	return team && adminRoles[role], nil
}

// SubscriptionPatch maps a subscription state onto an entitlement.
func SubscriptionPatch(status, plan, customerID, subscriptionID string) models.EntitlementPatch {
	active := status == "active"
	tier := models.DefaultTier
	if active && plan != "" {
		tier = plan
	}
	p := models.EntitlementPatch{
		Tier:                    &tier,
		IsPremium:               &active,
		PolarSubscriptionID:     &subscriptionID,
		PolarSubscriptionStatus: &status,
	}
	if customerID != "" {
		p.PolarCustomerID = &customerID
	}
	return p
}

// CancelPatch downgrades an entitlement and drops its subscription link.
func CancelPatch() models.EntitlementPatch {
	tier := models.DefaultTier
	premium := false
	status := "canceled"
	return models.EntitlementPatch{
		Tier:                    &tier,
		IsPremium:               &premium,
		PolarSubscriptionStatus: &status,
		ClearPolarSubscription:  true,
	}
}

func (s *EntitlementService) ConnectionStatus(ctx context.Context, userID uuid.UUID, svc models.Service) (dto.ConnectionResponse, error) {
	e, err := s.store.Get(ctx, userID, svc)
	if errors.Is(err, repository.ErrNotFound) {
		return dto.ConnectionResponse{
			Connected: false,
			Service:   svc,
			Message:   "No entitlement found for this service",
		}, nil
	}
	if err != nil {
		return dto.ConnectionResponse{}, fmt.Errorf("get entitlement: %w", err)
	}
	premium := e.IsPremium
	return dto.ConnectionResponse{
		Connected: e.Connected,
		Service:   e.Service,
		Tier:      e.Tier,
		IsPremium: &premium,
	}, nil
}

// Disconnect marks the entitlement as disconnected. Repeated calls succeed.
func (s *EntitlementService) Disconnect(ctx context.Context, userID uuid.UUID, svc models.Service) (dto.ConnectionResponse, error) {
	e, err := s.Get(ctx, userID, svc)
	if err != nil {
		return dto.ConnectionResponse{}, err
	}
	if !e.Connected {
		return dto.ConnectionResponse{
			Connected: false,
			Service:   svc,
			Message:   "Already disconnected from this service",
		}, nil
	}

	connected := false
	e, err = s.Upsert(ctx, userID, svc, models.EntitlementPatch{Connected: &connected})
	if err != nil {
		return dto.ConnectionResponse{}, err
	}
	s.audit.Record(ctx, userID, models.AuditServiceDisconnect, map[string]any{"service": string(svc)})

	premium := e.IsPremium
	return dto.ConnectionResponse{
		Connected: false,
		Service:   e.Service,
		Tier:      e.Tier,
		IsPremium: &premium,
		Message:   "Successfully disconnected from service",
	}, nil
}

// Grant lets an operator change another user's entitlement. actor is nil for
// service-to-service callers, which are not audited.
func (s *EntitlementService) Grant(ctx context.Context, actor *uuid.UUID, target uuid.UUID, svc models.Service, patch models.EntitlementPatch, changes map[string]any) (*models.ServiceEntitlement, error) {
	if _, err := s.users.GetByID(ctx, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	e, err := s.Upsert(ctx, target, svc, patch)
	if err != nil {
		return nil, err
	}
	if actor != nil {
		s.audit.Record(ctx, *actor, models.AuditServiceAccessGrant, map[string]any{
			"targetUserId": target.String(),
			"service":      string(svc),
			"changes":      changes,
		})
	}
	return e, nil
}

func (s *EntitlementService) enterpriseDrop(ctx context.Context, userID uuid.UUID) (*models.ServiceEntitlement, error) {
	e, err := s.store.Get(ctx, userID, models.ServiceDrop)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrEnterpriseRequired
	}
	if err != nil {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	if e.Tier != tierCustomDNS {
		return nil, ErrEnterpriseRequired
	}
	return e, nil
}

// SetCustomDomain attaches an unverified domain to the user's DROP account.
func (s *EntitlementService) SetCustomDomain(ctx context.Context, userID uuid.UUID, domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" || len(domain) > 255 {
		return "", ErrInvalidDomain
	}

	e, err := s.enterpriseDrop(ctx, userID)
	if err != nil {
		return "", err
	}
	if !domainRe.MatchString(domain) {
		return "", ErrInvalidDomain
	}

	owner, err := s.store.FindCustomDomainOwner(ctx, domain, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("find domain owner: %w", err)
	}
	if owner != nil {
		return "", ErrDomainTaken
	}

	meta := copyMap(e.Metadata)
	meta[metaDomain] = domain
	meta[metaVerified] = false
	if _, err := s.Upsert(ctx, userID, models.ServiceDrop, models.EntitlementPatch{Metadata: meta}); err != nil {
		return "", err
	}
	s.audit.Record(ctx, userID, models.AuditUserUpdate, map[string]any{"field": metaDomain, "value": domain})
	return domain, nil
}

func (s *EntitlementService) RemoveCustomDomain(ctx context.Context, userID uuid.UUID) error {
	e, err := s.enterpriseDrop(ctx, userID)
	if err != nil {
		return err
	}

	meta := copyMap(e.Metadata)
	delete(meta, metaDomain)
	delete(meta, metaVerified)
	if _, err := s.Upsert(ctx, userID, models.ServiceDrop, models.EntitlementPatch{Metadata: meta}); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, models.AuditUserUpdate, map[string]any{"field": metaDomain, "value": nil})
	return nil
}

func (s *EntitlementService) GetCustomDomain(ctx context.Context, userID uuid.UUID) (dto.CustomDomainResponse, error) {
	e, err := s.enterpriseDrop(ctx, userID)
	if err != nil {
		return dto.CustomDomainResponse{}, err
	}
	resp := dto.CustomDomainResponse{}
	if d := e.MetadataString(metaDomain); d != "" {
		resp.CustomDomain = &d
		resp.HasCustomDomain = true
	}
	if e.Metadata != nil {
		resp.CustomDomainVerified, _ = e.Metadata[metaVerified].(bool)
	}
	return resp, nil
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
