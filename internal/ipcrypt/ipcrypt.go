// Package ipcrypt seals client IP addresses with a per-user key so that only
// the owning user's view of the audit trail shows them in clear text.
package ipcrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const prefix = "enc:v1:"

// Redacted replaces a sealed value that cannot be opened.
const Redacted = "[encrypted]"

var ErrMalformed = errors.New("malformed sealed ip")

type Cipher struct {
	master []byte
}

// New returns nil when key is empty. A nil Cipher passes values through.
func New(key string) *Cipher {
	if key == "" {
		return nil
	}
	return &Cipher{master: []byte(key)}
}

func (c *Cipher) Enabled() bool {
	return c != nil
}

func (c *Cipher) derive(userID string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, c.master, []byte(userID), []byte("nullpass ip"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Seal encrypts ip for userID.
func (c *Cipher) Seal(userID, ip string) (string, error) {
	if c == nil || ip == "" {
		return ip, nil
	}
	key, err := c.derive(userID)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(ip)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(ip), []byte(userID))
	return prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix
// are returned unchanged.
func (c *Cipher) Open(userID, value string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return value, nil
	}
	if c == nil {
		return "", errors.New("ip encryption key not configured")
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", ErrMalformed
	}
	key, err := c.derive(userID)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrMalformed
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], []byte(userID))
	if err != nil {
		return "", fmt.Errorf("failed to open sealed ip: %w", err)
	}
	return string(plain), nil
}

// Reveal is Open for display paths: failures collapse to Redacted.
func (c *Cipher) Reveal(userID, value string) string {
	plain, err := c.Open(userID, value)
	if err != nil {
		return Redacted
	}
	return plain
}
