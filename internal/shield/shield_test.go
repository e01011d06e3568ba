package shield

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Decide(ctx context.Context, req Request, cost int) (Decision, error) {
	args := m.Called(req, cost)
	return args.Get(0).(Decision), args.Error(1)
}

var browser = Request{IP: "203.0.113.1", UserAgent: "Mozilla/5.0", Method: "POST", Path: "/api/auth/login"}

func TestReasonStatus(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, ReasonRateLimit.Status())
	assert.Equal(t, http.StatusBadRequest, ReasonSensitiveInfo.Status())
	for _, r := range []Reason{ReasonBot, ReasonShield, ReasonFilter, ReasonForbidden} {
		assert.Equal(t, http.StatusForbidden, r.Status(), r)
	}
}

func TestProtect_FailsOpen(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Decide", browser, 1).Return(Decision{}, errors.New("timeout"))

	d := New(gw, false).Protect(context.Background(), browser, 0)
	assert.True(t, d.Allowed)
	gw.AssertExpectations(t)
}

func TestProtect_Deny(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Decide", browser, 5).Return(Deny(ReasonBot), nil)

	d := New(gw, false).Protect(context.Background(), browser, 5)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonBot, d.Reason)
}

func TestProtect_DryRunAllows(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Decide", browser, 1).Return(Deny(ReasonRateLimit), nil)

	assert.True(t, New(gw, true).Protect(context.Background(), browser, 1).Allowed)
}

func TestProtect_NilGateway(t *testing.T) {
	assert.True(t, New(nil, false).Protect(context.Background(), browser, 1).Allowed)
	var s *Shield
	assert.True(t, s.Protect(context.Background(), browser, 1).Allowed)
}

func TestRemoteGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var body decideRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch body.UserAgent {
		case "bot":
			_, _ = w.Write([]byte(`{"conclusion":"DENY","reason":"BOT"}`))
		case "odd":
			_, _ = w.Write([]byte(`{"conclusion":"DENY","reason":"EMAIL"}`))
		case "slow":
			time.Sleep(200 * time.Millisecond)
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			assert.Equal(t, 2, body.Requested)
			_, _ = w.Write([]byte(`{"conclusion":"ALLOW"}`))
		}
	}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL, "key", 50*time.Millisecond)
	ctx := context.Background()

	d, err := g.Decide(ctx, browser, 2)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = g.Decide(ctx, Request{UserAgent: "bot"}, 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonBot, d.Reason)

	d, err = g.Decide(ctx, Request{UserAgent: "odd"}, 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonForbidden, d.Reason)

	_, err = g.Decide(ctx, Request{UserAgent: "broken"}, 1)
	assert.Error(t, err)

	_, err = g.Decide(ctx, Request{UserAgent: "slow"}, 1)
	assert.Error(t, err)
	assert.True(t, New(g, false).Protect(ctx, Request{UserAgent: "slow"}, 1).Allowed)
}

func TestLocalGateway_Bucket(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := NewLocalGateway(10, 5, 10*time.Second)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, _ := g.Decide(ctx, browser, 1)
		require.True(t, d.Allowed, "request %d", i)
	}
	d, _ := g.Decide(ctx, browser, 1)
	assert.Equal(t, ReasonRateLimit, d.Reason)

	now = now.Add(10 * time.Second)
	d, _ = g.Decide(ctx, browser, 5)
	assert.True(t, d.Allowed)
	d, _ = g.Decide(ctx, browser, 1)
	assert.False(t, d.Allowed)

	other := browser
	other.IP = "203.0.113.2"
	d, _ = g.Decide(ctx, other, 5)
	assert.True(t, d.Allowed, "buckets are per client")
}

func TestLocalGateway_Filter(t *testing.T) {
	g := NewLocalGateway(10, 5, 10*time.Second)
	for _, ua := range []string{"", "  ", "curl/8.4.0", "Mozilla CURL"} {
		d, _ := g.Decide(context.Background(), Request{IP: "1.1.1.1", UserAgent: ua}, 1)
		assert.Equal(t, ReasonFilter, d.Reason, ua)
	}
}

func TestLocalGateway_Sweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := NewLocalGateway(10, 5, 10*time.Second)
	g.now = func() time.Time { return now }

	_, _ = g.Decide(context.Background(), browser, 1)
	assert.Equal(t, 0, g.Sweep())

	now = now.Add(20 * time.Second)
	assert.Equal(t, 1, g.Sweep())
}

func TestLocalGateway_CostAboveCapacity(t *testing.T) {
	g := NewLocalGateway(3, 1, time.Second)
	d, _ := g.Decide(context.Background(), browser, 5)
	assert.Equal(t, ReasonRateLimit, d.Reason)

	d, _ = g.Decide(context.Background(), browser, 3)
	assert.True(t, d.Allowed, "a denied request spends nothing")
}
