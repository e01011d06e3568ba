// Package token issues and verifies the signed bearer tokens handed to clients.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT body carried by every bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Payload is the verified content of a token.
type Payload struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Codec signs tokens with a shared HMAC secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for the user. Each token carries a random ID, so two
// tokens issued in the same second for the same user still differ.
func (c *Codec) Issue(userID, email string) (string, error) {
	now := c.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		UserID: userID,
		Email:  email,
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. Every failure returns ok=false with
// no further detail.
func (c *Codec) Verify(raw string) (Payload, bool) {
	if raw == "" {
		return Payload{}, false
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, c.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !tok.Valid {
		return Payload{}, false
	}

	p, ok := claims.Payload()
	if !ok {
		return Payload{}, false
	}
	return p, true
}

// Keyfunc resolves the verification key and rejects non-HMAC algorithms.
func (c *Codec) Keyfunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
	}
	return c.secret, nil
}

// Payload converts parsed claims, failing when required fields are missing.
func (cl *Claims) Payload() (Payload, bool) {
	if cl.UserID == "" || cl.ExpiresAt == nil {
		return Payload{}, false
	}
	p := Payload{
		UserID:    cl.UserID,
		Email:     cl.Email,
		ExpiresAt: cl.ExpiresAt.Time,
	}
	if cl.IssuedAt != nil {
		p.IssuedAt = cl.IssuedAt.Time
	}
	return p, true
}
