package shield

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalGateway is an in-process fallback: a user-agent filter and a token
// bucket keyed by (ip, user agent).
type LocalGateway struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewLocalGateway refills refill tokens every interval up to capacity.
func NewLocalGateway(capacity, refill int, interval time.Duration) *LocalGateway {
	return &LocalGateway{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(refill) / interval.Seconds()),
		burst:    capacity,
		now:      time.Now,
	}
}

func (g *LocalGateway) Decide(_ context.Context, req Request, cost int) (Decision, error) {
	ua := strings.ToLower(strings.TrimSpace(req.UserAgent))
	if ua == "" || strings.Contains(ua, "curl") {
		return Deny(ReasonFilter), nil
	}

	if !g.limiter(req.IP+"|"+req.UserAgent).AllowN(g.now(), cost) {
		return Deny(ReasonRateLimit), nil
	}
	return Allow, nil
}

func (g *LocalGateway) limiter(key string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[key]
	if !ok {
		l = rate.NewLimiter(g.limit, g.burst)
		g.limiters[key] = l
	}
	return l
}

// Sweep drops limiters that have been idle long enough to be full again.
func (g *LocalGateway) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	n := 0
	for k, l := range g.limiters {
		if l.TokensAt(now) >= float64(l.Burst()) {
			delete(g.limiters, k)
			n++
		}
	}
	return n
}
