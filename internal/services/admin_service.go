package services

import (
	"context"
	"fmt"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/models"
)

type AdminService struct {
	users        UserStore
	entitlements EntitlementStore
}

func NewAdminService(users UserStore, entitlements EntitlementStore) *AdminService {
	return &AdminService{users: users, entitlements: entitlements}
}

// ListUsers pages users newest first with a summary of their DROP entitlement.
func (s *AdminService) ListUsers(ctx context.Context, page, limit int) (*dto.AdminUsersResponse, error) {
	if page < 1 {
		page = 1
	}
	limit, _ = clampPage(limit, 0)
	offset := (page - 1) * limit

	users, total, err := s.users.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]dto.AdminUser, 0, len(users))
	for _, u := range users {
		out = append(out, dto.AdminUser{
			ID:            u.ID,
			Email:         u.Email,
			DisplayName:   u.DisplayName,
			Avatar:        u.Avatar,
			CreatedAt:     u.CreatedAt,
			UpdatedAt:     u.UpdatedAt,
			ServiceAccess: dropSummary(u.Entitlements),
		})
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return &dto.AdminUsersResponse{
		Users: out,
		Pagination: dto.Pagination{
			Page:       page,
			Limit:      limit,
			TotalCount: total,
			TotalPages: totalPages,
			HasMore:    int64(offset+len(out)) < total,
		},
	}, nil
}

func dropSummary(list []models.ServiceEntitlement) dto.AdminServiceAccess {
	summary := dto.AdminServiceAccess{
		Tier:        models.DefaultTier,
		AccessFlags: map[string]any{},
		Metadata:    map[string]any{},
	}
	for _, e := range list {
		if e.Service != models.ServiceDrop {
			continue
		}
		if e.Tier != "" {
			summary.Tier = e.Tier
		}
		summary.IsPremium = e.IsPremium
		if e.AccessFlags != nil {
			summary.AccessFlags = e.AccessFlags
		}
		if e.Metadata != nil {
			summary.Metadata = e.Metadata
		}
		summary.CustomStorageLimit = e.CustomStorageLimit
		summary.CustomAPIKeyLimit = e.CustomAPIKeyLimit
	}
	return summary
}

// Stats counts users and premium DROP subscribers.
func (s *AdminService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	premium, err := s.entitlements.CountPremium(ctx, models.ServiceDrop)
	if err != nil {
		return nil, fmt.Errorf("count premium: %w", err)
	}
	return &dto.StatsResponse{
		TotalUsers:   total,
		PremiumUsers: premium,
		FreeUsers:    total - premium,
	}, nil
}
