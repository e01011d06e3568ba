// Package polar talks to the Polar billing API and authenticates its webhooks.
package polar

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"

	DefaultTolerance = 5 * time.Minute
)

var (
	ErrMissingHeaders   = errors.New("missing webhook headers")
	ErrInvalidTimestamp = errors.New("invalid webhook timestamp")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
	ErrBadSignature     = errors.New("no matching webhook signature")
)

// Verifier checks Standard Webhooks signatures as sent by Polar. Tolerance is
// enforced here against an injectable clock; the signature itself is checked
// by the standardwebhooks library.
type Verifier struct {
	wh        *standardwebhooks.Webhook
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier accepts either a "whsec_" prefixed base64 secret or the raw
// secret string shown in the Polar dashboard.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("empty webhook secret")
	}
	var (
		wh  *standardwebhooks.Webhook
		err error
	)
	if strings.HasPrefix(secret, "whsec_") {
		wh, err = standardwebhooks.NewWebhook(secret)
		if err != nil {
			return nil, errors.New("malformed whsec_ webhook secret")
		}
	} else {
		wh, err = standardwebhooks.NewWebhookRaw([]byte(secret))
		if err != nil {
			return nil, err
		}
	}
	return &Verifier{wh: wh, tolerance: DefaultTolerance, now: time.Now}, nil
}

// Verify authenticates body against the three webhook headers.
func (v *Verifier) Verify(id, timestamp, signatures string, body []byte) error {
	if id == "" || timestamp == "" || signatures == "" {
		return ErrMissingHeaders
	}

	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	sent := time.Unix(sec, 0)
	now := v.now()
	if now.Sub(sent) > v.tolerance || sent.Sub(now) > v.tolerance {
		return ErrStaleTimestamp
	}

	headers := http.Header{}
	headers.Set(HeaderID, id)
	headers.Set(HeaderTimestamp, timestamp)
	headers.Set(HeaderSignature, signatures)
	if err := v.wh.VerifyIgnoringTimestamp(body, headers); err != nil {
		return ErrBadSignature
	}
	return nil
}

// Sign produces a header value for the given message. Used by tests and
// local tooling that replays events. An unparsable timestamp yields "".
func (v *Verifier) Sign(id, timestamp string, body []byte) string {
	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ""
	}
	sig, err := v.wh.Sign(id, time.Unix(sec, 0), body)
	if err != nil {
		return ""
	}
	return sig
}
