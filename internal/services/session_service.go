package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/jobs"
	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/repository"
)

// Issued is the outcome of binding a token to a (user, ip) session.
type Issued struct {
	Token   string
	Session *models.Session
	Created bool
}

// SessionService keeps at most one live session per user and origin IP.
type SessionService struct {
	sessions SessionStore
	users    UserStore
	tokens   TokenIssuer
	audit    *AuditService
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionService(sessions SessionStore, users UserStore, tokens TokenIssuer, audit *AuditService, ttl time.Duration) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		tokens:   tokens,
		audit:    audit,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Reconcile runs after credentials (and the second factor, if any) checked
// out. A live session for the same IP keeps its token when the token still
// verifies for this user; otherwise the row gets a fresh token in place.
func (s *SessionService) Reconcile(ctx context.Context, user *models.User, ip string, twoFactorUsed bool) (*Issued, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	existing, err := s.sessions.FindLive(ctx, user.ID, ip, now)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find session: %w", err)
	}

	var issued *Issued
	if existing == nil {
		issued, err = s.create(ctx, user, ip, now)
		if err != nil {
			return nil, err
		}
	} else {
		raw := existing.Token
		if p, ok := s.tokens.Verify(raw); !ok || p.UserID != user.ID.String() {
			raw, err = s.tokens.Issue(user.ID.String(), user.Email)
			if err != nil {
				return nil, fmt.Errorf("issue token: %w", err)
			}
		}
		err = s.sessions.Rotate(ctx, existing.ID, raw, expiresAt)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// Revoked between lookup and rotate.
			issued, err = s.create(ctx, user, ip, now)
			if err != nil {
				return nil, err
			}
		case err != nil:
			return nil, fmt.Errorf("rotate session: %w", err)
		default:
			existing.Token = raw
			existing.ExpiresAt = expiresAt
			issued = &Issued{Token: raw, Session: existing}
		}
	}

	if err := s.users.Touch(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}

	s.audit.Record(ctx, user.ID, models.AuditUserLogin, map[string]any{
		"ip":            ip,
		"twoFactorUsed": twoFactorUsed,
	})
	if issued.Created {
		s.audit.Record(ctx, user.ID, models.AuditSessionCreate, map[string]any{"ip": ip})
	}

	return issued, nil
}

// Create always inserts a new session. Registration uses it.
func (s *SessionService) Create(ctx context.Context, user *models.User, ip string) (*Issued, error) {
	issued, err := s.create(ctx, user, ip, s.now())
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, user.ID, models.AuditSessionCreate, map[string]any{"ip": ip})
	return issued, nil
}

func (s *SessionService) create(ctx context.Context, user *models.User, ip string, now time.Time) (*Issued, error) {
	raw, err := s.tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	session := &models.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     raw,
		IP:        ip,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Issued{Token: raw, Session: session, Created: true}, nil
}

// List returns the user's live sessions, newest first. Tokens never leave.
func (s *SessionService) List(ctx context.Context, userID uuid.UUID) ([]dto.SessionResponse, error) {
	rows, err := s.sessions.ListLive(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]dto.SessionResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.SessionResponse{
			ID:        r.ID,
			IP:        r.IP,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
		})
	}
	return out, nil
}

// Revoke deletes one of the user's sessions. Unknown ids are a no-op.
func (s *SessionService) Revoke(ctx context.Context, userID, sessionID uuid.UUID) error {
	err := s.sessions.Delete(ctx, userID, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.audit.Record(ctx, userID, models.AuditSessionDelete, map[string]any{"sessionId": sessionID.String()})
	return nil
}

// RevokeAll logs the user out everywhere.
func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.sessions.DeleteAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	s.audit.Record(ctx, userID, models.AuditUserLogout, map[string]any{"sessions": n})
	return n, nil
}

// ReapExpired removes sessions that expired before the cutoff.
func (s *SessionService) ReapExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("reap sessions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "expired sessions reaped", "count", n, "before", before)
	}
	return n, nil
}

// StartReaper reaps sessions that expired more than grace ago, once per
// interval, until done is closed.
func (s *SessionService) StartReaper(interval, grace time.Duration, done <-chan struct{}) {
	jobs.Every("session-reaper", interval, done, func(ctx context.Context) {
		if _, err := s.ReapExpired(ctx, time.Now().Add(-grace)); err != nil {
			slog.ErrorContext(ctx, "session reaper failed", "error", err)
		}
	})
}
