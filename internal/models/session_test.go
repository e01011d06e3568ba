package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionLive(t *testing.T) {
	expires := time.Unix(1_700_000_000, 0)
	s := &Session{ExpiresAt: expires}

	assert.True(t, s.Live(expires.Add(-time.Second)))
	assert.True(t, s.Live(expires), "usable up to and including expiresAt")
	assert.False(t, s.Live(expires.Add(time.Nanosecond)))
}
