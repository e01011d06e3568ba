package polar

import (
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, secret string, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(secret)
	require.NoError(t, err)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifier_Valid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, "polar_secret", now)
	body := []byte(`{"type":"subscription.created"}`)
	ts := strconv.FormatInt(now.Unix(), 10)

	sig := v.Sign("msg_1", ts, body)
	assert.NoError(t, v.Verify("msg_1", ts, sig, body))
	assert.NoError(t, v.Verify("msg_1", ts, "v1,Zm9v "+sig, body), "any listed signature may match")
}

func TestVerifier_WhsecSecret(t *testing.T) {
	now := time.Now()
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("raw-key"))
	v := newTestVerifier(t, secret, now)
	ts := strconv.FormatInt(now.Unix(), 10)

	assert.NoError(t, v.Verify("id", ts, v.Sign("id", ts, []byte("{}")), []byte("{}")))

	_, err := NewVerifier("whsec_***")
	assert.Error(t, err)
	_, err = NewVerifier("")
	assert.Error(t, err)
}

func TestVerifier_Rejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, "polar_secret", now)
	body := []byte(`{"type":"subscription.created"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign("msg_1", ts, body)

	assert.ErrorIs(t, v.Verify("", ts, sig, body), ErrMissingHeaders)
	assert.ErrorIs(t, v.Verify("msg_1", "yesterday", sig, body), ErrInvalidTimestamp)
	assert.ErrorIs(t, v.Verify("msg_1", ts, sig, []byte(`{"type":"x"}`)), ErrBadSignature)
	assert.ErrorIs(t, v.Verify("msg_2", ts, sig, body), ErrBadSignature)
	assert.ErrorIs(t, v.Verify("msg_1", ts, "v2,"+sig[3:], body), ErrBadSignature)

	other := newTestVerifier(t, "other_secret", now)
	assert.ErrorIs(t, v.Verify("msg_1", ts, other.Sign("msg_1", ts, body), body), ErrBadSignature)
}

func TestVerifier_Tolerance(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, "polar_secret", now)
	body := []byte(`{}`)

	for _, tc := range []struct {
		offset time.Duration
		ok     bool
	}{
		{-4 * time.Minute, true},
		{4 * time.Minute, true},
		{-6 * time.Minute, false},
		{6 * time.Minute, false},
	} {
		ts := strconv.FormatInt(now.Add(tc.offset).Unix(), 10)
		err := v.Verify("id", ts, v.Sign("id", ts, body), body)
		if tc.ok {
			assert.NoError(t, err, tc.offset.String())
		} else {
			assert.ErrorIs(t, err, ErrStaleTimestamp, tc.offset.String())
		}
	}
}
