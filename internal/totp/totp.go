// Package totp validates RFC 6238 one-time codes and produces enrollment material.
package totp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	Issuer        = "Nullpass"
	Period        = 30
	DefaultWindow = 2
	secretSize    = 20
	qrSize        = 256
)

// Enrollment is handed to the client when a second factor is being set up.
type Enrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"uri"`
	QRCode          string `json:"qrCode"`
}

type Verifier struct {
	window uint
	now    func() time.Time
}

func NewVerifier(window uint) *Verifier {
	return &Verifier{window: window, now: time.Now}
}

// Verify checks a 6-digit code against a base32 secret at the current time.
func (v *Verifier) Verify(secret, code string) bool {
	return v.VerifyAt(secret, code, v.now())
}

// VerifyAt accepts codes within ±window steps of t. Malformed secrets and
// codes are rejected, never reported as errors.
func (v *Verifier) VerifyAt(secret, code string, t time.Time) bool {
	if secret == "" || len(code) != 6 {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t.UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      v.window,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateSecret creates a fresh 160-bit secret for account.
func (v *Verifier) GenerateSecret(account string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      Issuer,
		AccountName: account,
		Period:      Period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return Enrollment{}, fmt.Errorf("failed to render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Enrollment{}, fmt.Errorf("failed to encode qr code: %w", err)
	}

	return Enrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCode:          "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
