package dto

import "encoding/json"

// PolarWebhook is the envelope of every Polar webhook delivery.
type PolarWebhook struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type PolarSubscription struct {
	ID         string           `json:"id"`
	Status     string           `json:"status"`
	CustomerID string           `json:"customer_id"`
	Amount     int64            `json:"amount"`
	Currency   string           `json:"currency"`
	Metadata   map[string]any   `json:"metadata"`
	Customer   *PolarCustomer   `json:"customer,omitempty"`
	Product    *PolarProductRef `json:"product,omitempty"`
}

type PolarProductRef struct {
	Name string `json:"name"`
}

type PolarCustomer struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

type PolarCheckout struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Metadata map[string]any `json:"metadata"`
}

// MetaString reads a string value from a Polar metadata map.
func MetaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
