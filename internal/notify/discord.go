// Package notify posts operator notifications to a Discord-compatible webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Footer struct {
	Text string `json:"text"`
}

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
}

type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Payment describes a newly activated premium subscription.
type Payment struct {
	UserID         string
	UserEmail      string
	UserName       string
	Plan           string
	Amount         int64
	Currency       string
	SubscriptionID string
	BillingCycle   string
}

// Event is the subset of a billing webhook shown in notifications.
type Event struct {
	Type          string
	Status        string
	Plan          string
	CustomerEmail string
	CustomerName  string
	CustomerID    string
	Amount        int64
	Currency      string
}

type Discord struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

// NewDiscord returns a notifier. An empty url disables delivery.
func NewDiscord(url string, timeout time.Duration) *Discord {
	return &Discord{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

func (d *Discord) Enabled() bool { return d != nil && d.url != "" }

// Send posts msg. Returns nil without sending when disabled.
func (d *Discord) Send(ctx context.Context, msg Message) error {
	if !d.Enabled() {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

func (d *Discord) PaymentSucceeded(ctx context.Context, p Payment) error {
	name := p.UserName
	if name == "" {
		name = p.UserEmail
	}
	return d.Send(ctx, Message{Embeds: []Embed{{
		Title:       "Payment Successful",
		Description: "New premium subscription activated!",
		Color:       0x00ff00,
		Fields: []Field{
			{Name: "User", Value: name, Inline: true},
			{Name: "Email", Value: p.UserEmail, Inline: true},
			{Name: "Plan", Value: strings.ToUpper(p.Plan), Inline: true},
			{Name: "Amount", Value: formatAmount(p.Amount, p.Currency), Inline: true},
			{Name: "Billing Cycle", Value: p.BillingCycle, Inline: true},
			{Name: "Subscription ID", Value: "`" + p.SubscriptionID + "`"},
			{Name: "User ID", Value: "`" + p.UserID + "`"},
		},
		Timestamp: d.now().UTC().Format(time.RFC3339),
		Footer:    &Footer{Text: "NullPass - Payment System"},
	}}})
}

// EventReceived posts a summary of a billing webhook event.
func (d *Discord) EventReceived(ctx context.Context, e Event) error {
	return d.Send(ctx, Message{Embeds: []Embed{d.EventEmbed(e)}})
}

func (d *Discord) EventEmbed(e Event) Embed {
	embed := Embed{
		Title:     eventTitle(e.Type),
		Color:     eventColor(e),
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}

	switch e.Type {
	case "checkout.updated":
		embed.Fields = []Field{
			{Name: "Status", Value: orNA(e.Status), Inline: true},
			{Name: "Customer", Value: orNA(e.CustomerEmail), Inline: true},
			{Name: "Amount", Value: formatAmount(e.Amount, e.Currency), Inline: true},
		}
	case "subscription.created", "subscription.updated", "subscription.active",
		"subscription.canceled", "subscription.revoked":
		plan := e.Plan
		if plan == "" {
			plan = "Unknown"
		}
		embed.Fields = []Field{
			{Name: "Plan", Value: plan, Inline: true},
			{Name: "Customer", Value: orNA(e.CustomerEmail), Inline: true},
			{Name: "Status", Value: orNA(e.Status), Inline: true},
			{Name: "Amount", Value: formatAmount(e.Amount, e.Currency), Inline: true},
		}
	case "customer.created", "customer.updated":
		embed.Fields = []Field{
			{Name: "Email", Value: orNA(e.CustomerEmail), Inline: true},
			{Name: "Name", Value: orNA(e.CustomerName), Inline: true},
		}
	case "customer.deleted":
		embed.Fields = []Field{{Name: "Customer ID", Value: orNA(e.CustomerID), Inline: true}}
	default:
		embed.Fields = []Field{{Name: "Event Type", Value: e.Type, Inline: true}}
	}
	return embed
}

func eventTitle(t string) string {
	switch t {
	case "checkout.updated":
		return "Checkout Updated"
	case "subscription.created":
		return "New Subscription"
	case "subscription.updated":
		return "Subscription Updated"
	case "subscription.active":
		return "Subscription Activated"
	case "subscription.canceled":
		return "Subscription Canceled"
	case "subscription.revoked":
		return "Subscription Revoked"
	case "customer.created":
		return "New Customer"
	case "customer.updated":
		return "Customer Updated"
	case "customer.deleted":
		return "Customer Deleted"
	}
	return "Polar Webhook Event"
}

func eventColor(e Event) int {
	switch e.Type {
	case "subscription.created", "subscription.active":
		return 0x00ff00
	case "subscription.canceled", "subscription.revoked":
		return 0xff0000
	case "customer.created":
		return 0x0099ff
	case "customer.deleted":
		return 0xff6600
	case "checkout.updated":
		if e.Status == "succeeded" {
			return 0x00ff00
		}
		return 0xffaa00
	}
	return 0x666666
}

// formatAmount renders minor units, e.g. 999 "usd" as "9.99 USD".
func formatAmount(minor int64, currency string) string {
	if currency == "" {
		currency = "usd"
	}
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, strings.ToUpper(currency))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
