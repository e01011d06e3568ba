package shield

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RemoteGateway delegates decisions to an HTTP decision service.
type RemoteGateway struct {
	url        string
	key        string
	httpClient *http.Client
}

func NewRemoteGateway(url, key string, timeout time.Duration) *RemoteGateway {
	return &RemoteGateway{
		url:        url,
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type decideRequest struct {
	Request
	Requested int `json:"requested"`
}

type decideResponse struct {
	Conclusion string `json:"conclusion"`
	Reason     string `json:"reason"`
}

func (g *RemoteGateway) Decide(ctx context.Context, req Request, cost int) (Decision, error) {
	body, err := json.Marshal(decideRequest{Request: req, Requested: cost})
	if err != nil {
		return Decision{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to build shield request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.key)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Decision{}, fmt.Errorf("shield request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("shield status %d", resp.StatusCode)
	}

	var out decideResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Decision{}, fmt.Errorf("failed to decode shield response: %w", err)
	}

	switch strings.ToUpper(out.Conclusion) {
	case "ALLOW":
		return Allow, nil
	case "DENY":
		return Deny(parseReason(out.Reason)), nil
	}
	return Decision{}, fmt.Errorf("unknown shield conclusion %q", out.Conclusion)
}

func parseReason(s string) Reason {
	switch Reason(strings.ToLower(s)) {
	case ReasonRateLimit, ReasonBot, ReasonShield, ReasonFilter, ReasonSensitiveInfo:
		return Reason(strings.ToLower(s))
	}
	return ReasonForbidden
}
