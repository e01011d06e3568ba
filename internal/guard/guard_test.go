package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/repository"
	"github.com/nullpass/nullpass/internal/token"
)

type fakeSessions struct {
	byToken map[string]*models.Session
	err     error
}

func (f *fakeSessions) GetByToken(_ context.Context, raw string) (*models.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.byToken[raw]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

type fixture struct {
	guard    *Guard
	codec    *token.Codec
	sessions *fakeSessions
	userID   uuid.UUID
	token    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec := token.NewCodec("secret", time.Hour)
	userID := uuid.New()
	raw, err := codec.Issue(userID.String(), "a@b.com")
	require.NoError(t, err)

	sessions := &fakeSessions{byToken: map[string]*models.Session{
		raw: {ID: uuid.New(), UserID: userID, Token: raw, ExpiresAt: time.Now().Add(time.Hour)},
	}}
	return &fixture{
		guard:    New(codec, sessions),
		codec:    codec,
		sessions: sessions,
		userID:   userID,
		token:    raw,
	}
}

func TestAuthenticate_Allow(t *testing.T) {
	f := newFixture(t)

	id, err := f.guard.Authenticate(context.Background(), f.token)
	require.NoError(t, err)
	assert.Equal(t, f.userID, id.UserID)
	assert.Equal(t, "a@b.com", id.Email)
	assert.False(t, id.System)
}

func TestAuthenticate_UniformDenial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign, err := token.NewCodec("other", time.Hour).Issue(f.userID.String(), "a@b.com")
	require.NoError(t, err)

	noSession, err := f.codec.Issue(f.userID.String(), "a@b.com")
	require.NoError(t, err)

	expiredRow, err := f.codec.Issue(f.userID.String(), "a@b.com")
	require.NoError(t, err)
	f.sessions.byToken[expiredRow] = &models.Session{UserID: f.userID, Token: expiredRow, ExpiresAt: time.Now().Add(-time.Minute)}

	mismatch, err := f.codec.Issue(f.userID.String(), "a@b.com")
	require.NoError(t, err)
	f.sessions.byToken[mismatch] = &models.Session{UserID: uuid.New(), Token: mismatch, ExpiresAt: time.Now().Add(time.Hour)}

	badID, err := f.codec.Issue("not-a-uuid", "a@b.com")
	require.NoError(t, err)

	cases := map[string]string{
		"missing":         "",
		"garbage":         "garbage",
		"foreign key":     foreign,
		"deleted session": noSession,
		"expired session": expiredRow,
		"user mismatch":   mismatch,
		"malformed id":    badID,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			id, err := f.guard.Authenticate(ctx, raw)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Equal(t, Identity{}, id)
		})
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(past),
		},
		UserID: f.userID.String(),
		Email:  "a@b.com",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	f.sessions.byToken[raw] = &models.Session{UserID: f.userID, Token: raw, ExpiresAt: time.Now().Add(time.Hour)}

	_, err = f.guard.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_StorageError(t *testing.T) {
	f := newFixture(t)
	f.sessions.err = errors.New("connection refused")

	_, err := f.guard.Authenticate(context.Background(), f.token)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestAuthenticate_ExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	expires := f.sessions.byToken[f.token].ExpiresAt

	f.guard.now = func() time.Time { return expires }
	_, err := f.guard.Authenticate(context.Background(), f.token)
	assert.NoError(t, err)

	f.guard.now = func() time.Time { return expires.Add(time.Millisecond) }
	_, err = f.guard.Authenticate(context.Background(), f.token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
