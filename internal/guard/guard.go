// Package guard validates a bearer token together with its backing session.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/repository"
	"github.com/nullpass/nullpass/internal/token"
)

var (
	// ErrUnauthorized is returned for every authentication failure. The
	// concrete reason is only logged.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInternal signals a storage failure while checking the session.
	ErrInternal = errors.New("internal server error")
)

// Identity is the authenticated caller of a protected operation.
type Identity struct {
	UserID uuid.UUID
	Email  string
	// System marks service-to-service callers authenticated by the
	// internal secret. UserID is zero for them.
	System bool
}

type SessionFinder interface {
	GetByToken(ctx context.Context, token string) (*models.Session, error)
}

type TokenVerifier interface {
	Verify(raw string) (token.Payload, bool)
}

type Guard struct {
	tokens   TokenVerifier
	sessions SessionFinder
	now      func() time.Time
}

func New(tokens TokenVerifier, sessions SessionFinder) *Guard {
	return &Guard{tokens: tokens, sessions: sessions, now: time.Now}
}

// Authenticate verifies raw and cross-checks the session row.
func (g *Guard) Authenticate(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return deny(ctx, "missing bearer token", "")
	}
	payload, ok := g.tokens.Verify(raw)
	if !ok {
		return deny(ctx, "invalid or expired token", "")
	}
	return g.Resolve(ctx, raw, payload)
}

// Resolve performs the session cross-check for a token whose signature and
// expiry were already verified.
func (g *Guard) Resolve(ctx context.Context, raw string, payload token.Payload) (Identity, error) {
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return deny(ctx, "malformed user id in token", payload.UserID)
	}

	session, err := g.sessions.GetByToken(ctx, raw)
	if errors.Is(err, repository.ErrNotFound) {
		return deny(ctx, "no session for token", payload.UserID)
	}
	if err != nil {
		slog.ErrorContext(ctx, "session lookup failed", "user_id", payload.UserID, "error", err)
		return Identity{}, ErrInternal
	}
	if !session.Live(g.now()) {
		return deny(ctx, "session expired", payload.UserID)
	}
	if session.UserID != userID {
		return deny(ctx, "session user mismatch", payload.UserID)
	}

	return Identity{UserID: userID, Email: payload.Email}, nil
}

func deny(ctx context.Context, reason, userID string) (Identity, error) {
	slog.WarnContext(ctx, "authentication denied", "reason", reason, "user_id", userID)
	return Identity{}, ErrUnauthorized
}
