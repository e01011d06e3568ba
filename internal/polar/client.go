package polar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNotConfigured = errors.New("polar access token not configured")
	ErrNotFound      = errors.New("polar resource not found")
)

// Subscription is the part of Polar's subscription object the API exposes.
type Subscription struct {
	ID                 string               `json:"id"`
	Status             string               `json:"status"`
	CurrentPeriodStart *time.Time           `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time           `json:"current_period_end"`
	CancelAtPeriodEnd  bool                 `json:"cancel_at_period_end"`
	Metadata           map[string]any       `json:"metadata"`
	Price              *SubscriptionPrice   `json:"price"`
	Product            *SubscriptionProduct `json:"product"`
}

type SubscriptionProduct struct {
	Name string `json:"name"`
}

type SubscriptionPrice struct {
	Amount            int64  `json:"price_amount"`
	Currency          string `json:"price_currency"`
	RecurringInterval string `json:"recurring_interval"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool { return c != nil && c.token != "" }

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions/"+id, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription revokes the subscription immediately.
func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/subscriptions/"+id, nil)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build polar request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polar request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read polar response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("polar API status %d", resp.StatusCode)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode polar response: %w", err)
	}
	return nil
}
