// Package shield asks a rate-limit and bot-detection gateway whether a
// request may proceed.
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type Reason string

const (
	ReasonRateLimit     Reason = "rate_limit"
	ReasonBot           Reason = "bot"
	ReasonShield        Reason = "shield"
	ReasonFilter        Reason = "filter"
	ReasonSensitiveInfo Reason = "sensitive_info"
	ReasonForbidden     Reason = "forbidden"
)

// Status maps a deny reason onto the HTTP status returned to the client.
func (r Reason) Status() int {
	switch r {
	case ReasonRateLimit:
		return http.StatusTooManyRequests
	case ReasonSensitiveInfo:
		return http.StatusBadRequest
	}
	return http.StatusForbidden
}

func (r Reason) Message() string {
	switch r {
	case ReasonRateLimit:
		return "Too Many Requests"
	case ReasonBot:
		return "No bots allowed"
	case ReasonShield:
		return "Request blocked by security rules"
	case ReasonFilter:
		return "Request blocked by filter rules"
	case ReasonSensitiveInfo:
		return "Sensitive information detected"
	}
	return "Forbidden"
}

// Request carries the request characteristics a gateway decides on.
type Request struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Origin    string `json:"origin,omitempty"`
}

type Decision struct {
	Allowed bool
	Reason  Reason
}

var Allow = Decision{Allowed: true}

func Deny(r Reason) Decision {
	return Decision{Reason: r}
}

type Gateway interface {
	Decide(ctx context.Context, req Request, cost int) (Decision, error)
}

// Shield wraps a gateway with the fail-open and dry-run policy.
type Shield struct {
	gateway Gateway
	dryRun  bool
}

// New returns a Shield. A nil gateway allows everything.
func New(gateway Gateway, dryRun bool) *Shield {
	return &Shield{gateway: gateway, dryRun: dryRun}
}

// Protect returns the decision to enforce. Gateway errors and timeouts fail
// open; only explicit denials block, and in dry-run mode they are only logged.
func (s *Shield) Protect(ctx context.Context, req Request, cost int) Decision {
	if s == nil || s.gateway == nil {
		return Allow
	}
	if cost < 1 {
		cost = 1
	}

	d, err := s.gateway.Decide(ctx, req, cost)
	if err != nil {
		slog.Error("shield decision failed, allowing request", "ip", req.IP, "path", req.Path, "error", err)
		return Allow
	}
	if d.Allowed {
		return d
	}
	if s.dryRun {
		slog.Warn("shield would deny request", "ip", req.IP, "path", req.Path, "reason", d.Reason)
		return Allow
	}
	slog.Warn("shield denied request", "ip", req.IP, "path", req.Path, "reason", d.Reason)
	return d
}
