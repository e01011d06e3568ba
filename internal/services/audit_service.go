package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nullpass/nullpass/internal/ipcrypt"
	"github.com/nullpass/nullpass/internal/models"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

type AuditService struct {
	store  AuditStore
	cipher *ipcrypt.Cipher
}

func NewAuditService(store AuditStore, cipher *ipcrypt.Cipher) *AuditService {
	return &AuditService{store: store, cipher: cipher}
}

// Record appends an audit entry. Failures are logged and swallowed so the
// audited operation never fails because of the trail.
func (s *AuditService) Record(ctx context.Context, userID uuid.UUID, action models.AuditAction, data map[string]any) {
	payload := datatypes.JSONMap{}
	for k, v := range data {
		payload[k] = v
	}
	if ip, ok := payload["ip"].(string); ok && ip != "" {
		sealed, err := s.cipher.Seal(userID.String(), ip)
		if err != nil {
			slog.WarnContext(ctx, "audit ip encryption failed", "user_id", userID, "error", err)
			sealed = ipcrypt.Redacted
		}
		payload["ip"] = sealed
	}

	entry := &models.AuditLog{UserID: userID, Action: action, Data: payload}
	if err := s.store.Create(ctx, entry); err != nil {
		slog.WarnContext(ctx, "audit write failed", "user_id", userID, "action", action, "error", err)
	}
}

// List pages a user's audit trail, newest first, with IPs revealed.
func (s *AuditService) List(ctx context.Context, userID uuid.UUID, action models.AuditAction, limit, offset int) ([]models.AuditLog, int64, int, int, error) {
	limit, offset = clampPage(limit, offset)
	entries, total, err := s.store.List(ctx, userID, action, offset, limit)
	if err != nil {
		return nil, 0, limit, offset, fmt.Errorf("list audit logs: %w", err)
	}
	for i := range entries {
		if ip, ok := entries[i].Data["ip"].(string); ok {
			entries[i].Data["ip"] = s.cipher.Reveal(userID.String(), ip)
		}
	}
	return entries, total, limit, offset, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
