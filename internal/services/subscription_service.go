package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/notify"
	"github.com/nullpass/nullpass/internal/polar"
	"github.com/nullpass/nullpass/internal/repository"
)

// Notifier posts operator notifications. Delivery is best effort.
type Notifier interface {
	EventReceived(ctx context.Context, e notify.Event) error
	PaymentSucceeded(ctx context.Context, p notify.Payment) error
}

// SubscriptionFetcher reads a subscription from the billing provider.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*polar.Subscription, error)
}

// SubscriptionService applies billing webhooks to the entitlement ledger.
type SubscriptionService struct {
	entitlements *EntitlementService
	store        EntitlementStore
	users        UserStore
	audit        *AuditService
	notifier     Notifier
	polar        SubscriptionFetcher
}

func NewSubscriptionService(
	entitlements *EntitlementService,
	store EntitlementStore,
	users UserStore,
	audit *AuditService,
	notifier Notifier,
	fetcher SubscriptionFetcher,
) *SubscriptionService {
	return &SubscriptionService{
		entitlements: entitlements,
		store:        store,
		users:        users,
		audit:        audit,
		notifier:     notifier,
		polar:        fetcher,
	}
}

// eventSummary is the union of the fields the notification needs across
// every event type.
type eventSummary struct {
	Status     string             `json:"status"`
	Amount     int64              `json:"amount"`
	Currency   string             `json:"currency"`
	CustomerID string             `json:"customer_id"`
	ID         string             `json:"id"`
	Email      string             `json:"email"`
	Name       string             `json:"name"`
	Metadata   map[string]any     `json:"metadata"`
	Customer   *dto.PolarCustomer `json:"customer"`
}

// HandleWebhookEvent applies one verified Polar event for the given service.
// Unknown event types are ignored.
func (s *SubscriptionService) HandleWebhookEvent(ctx context.Context, svc models.Service, event *dto.PolarWebhook) error {
	s.notifyEvent(ctx, event)

	switch event.Type {
	case "subscription.created":
		return s.handleCreated(ctx, svc, event)
	case "subscription.updated", "subscription.active":
		return s.handleUpdated(ctx, svc, event)
	case "subscription.canceled", "subscription.revoked":
		return s.handleCanceled(ctx, svc, event)
	case "customer.created", "customer.updated":
		return s.handleCustomer(ctx, svc, event)
	case "customer.deleted":
		return s.handleCustomerDeleted(ctx, svc, event)
	case "checkout.updated":
		var checkout dto.PolarCheckout
		if err := json.Unmarshal(event.Data, &checkout); err != nil {
			return fmt.Errorf("decode checkout: %w", err)
		}
		slog.InfoContext(ctx, "checkout updated", "service", svc, "checkout_id", checkout.ID, "status", checkout.Status)
		return nil
	default:
		slog.DebugContext(ctx, "ignoring webhook event", "service", svc, "type", event.Type)
		return nil
	}
}

func (s *SubscriptionService) notifyEvent(ctx context.Context, event *dto.PolarWebhook) {
	if s.notifier == nil {
		return
	}
	var sum eventSummary
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &sum); err != nil {
			slog.WarnContext(ctx, "decode webhook for notification failed", "type", event.Type, "error", err)
		}
	}
	e := notify.Event{
		Type:          event.Type,
		Status:        sum.Status,
		Plan:          dto.MetaString(sum.Metadata, "plan"),
		CustomerEmail: sum.Email,
		CustomerName:  sum.Name,
		CustomerID:    sum.CustomerID,
		Amount:        sum.Amount,
		Currency:      sum.Currency,
	}
	if sum.Customer != nil {
		e.CustomerEmail = sum.Customer.Email
		e.CustomerName = sum.Customer.Name
	}
	if event.Type == "customer.deleted" {
		e.CustomerID = sum.ID
	}
	if err := s.notifier.EventReceived(ctx, e); err != nil {
		slog.WarnContext(ctx, "webhook notification failed", "type", event.Type, "error", err)
	}
}

func decodeSubscription(event *dto.PolarWebhook) (*dto.PolarSubscription, uuid.UUID, bool, error) {
	var sub dto.PolarSubscription
	if err := json.Unmarshal(event.Data, &sub); err != nil {
		return nil, uuid.Nil, false, fmt.Errorf("decode subscription: %w", err)
	}
	userID, err := uuid.Parse(dto.MetaString(sub.Metadata, "userId"))
	if err != nil {
		return &sub, uuid.Nil, false, nil
	}
	return &sub, userID, true, nil
}

func planOf(sub *dto.PolarSubscription) string {
	if p := dto.MetaString(sub.Metadata, "plan"); p != "" {
		return p
	}
	return "unknown"
}

func (s *SubscriptionService) apply(ctx context.Context, svc models.Service, userID uuid.UUID, sub *dto.PolarSubscription) error {
	patch := SubscriptionPatch(sub.Status, dto.MetaString(sub.Metadata, "plan"), sub.CustomerID, sub.ID)
	if _, err := s.entitlements.Upsert(ctx, userID, svc, patch); err != nil {
		return err
	}
	slog.InfoContext(ctx, "subscription applied", "user_id", userID, "service", svc, "status", sub.Status)
	return nil
}

func (s *SubscriptionService) handleCreated(ctx context.Context, svc models.Service, event *dto.PolarWebhook) error {
	sub, userID, ok, err := decodeSubscription(event)
	if err != nil || !ok {
		return err
	}
	if err := s.apply(ctx, svc, userID, sub); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, models.AuditSubscriptionCreate, map[string]any{
		"service":        string(svc),
		"plan":           planOf(sub),
		"subscriptionId": sub.ID,
	})

	if sub.Status != "active" || s.notifier == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "payment notification skipped", "user_id", userID, "error", err)
		return nil
	}
	currency := sub.Currency
	if currency == "" {
		currency = "usd"
	}
	cycle := dto.MetaString(sub.Metadata, "billingCycle")
	if cycle == "" {
		cycle = "monthly"
	}
	if err := s.notifier.PaymentSucceeded(ctx, notify.Payment{
		UserID:         user.ID.String(),
		UserEmail:      user.Email,
		Plan:           planOf(sub),
		Amount:         sub.Amount,
		Currency:       currency,
		SubscriptionID: sub.ID,
		BillingCycle:   cycle,
	}); err != nil {
		slog.WarnContext(ctx, "payment notification failed", "user_id", userID, "error", err)
	}
	return nil
}

func (s *SubscriptionService) handleUpdated(ctx context.Context, svc models.Service, event *dto.PolarWebhook) error {
	sub, userID, ok, err := decodeSubscription(event)
	if err != nil || !ok {
		return err
	}
	if err := s.apply(ctx, svc, userID, sub); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, models.AuditSubscriptionUpdate, map[string]any{
		"service":        string(svc),
		"plan":           planOf(sub),
		"status":         sub.Status,
		"subscriptionId": sub.ID,
	})
	return nil
}

func (s *SubscriptionService) handleCanceled(ctx context.Context, svc models.Service, event *dto.PolarWebhook) error {
	sub, userID, ok, err := decodeSubscription(event)
	if err != nil || !ok {
		return err
	}

	_, err = s.store.Get(ctx, userID, svc)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		slog.InfoContext(ctx, "cancel for missing entitlement", "user_id", userID, "service", svc)
	case err != nil:
		return fmt.Errorf("get entitlement: %w", err)
	default:
		if _, err := s.entitlements.Upsert(ctx, userID, svc, CancelPatch()); err != nil {
			return err
		}
	}

	action := models.AuditSubscriptionCancel
	if event.Type == "subscription.revoked" {
		action = models.AuditSubscriptionRevoke
	}
	s.audit.Record(ctx, userID, action, map[string]any{
		"service":        string(svc),
		"subscriptionId": sub.ID,
	})
	return nil
}

func (s *SubscriptionService) handleCustomer(ctx context.Context, svc models.Service, event *dto.PolarWebhook) error {
	var customer dto.PolarCustomer
	if err := json.Unmarshal(event.Data, &customer); err != nil {
		return fmt.Errorf("decode customer: %w", err)
	}

	userID, err := uuid.Parse(dto.MetaString(customer.Metadata, "userId"))
	if err != nil {
		if customer.Email == "" {
			return nil
		}
		user, err := s.users.GetByEmail(ctx, customer.Email)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup customer user: %w", err)
		}
		userID = user.ID
	}

	_, err = s.entitlements.Upsert(ctx, userID, svc, models.EntitlementPatch{PolarCustomerID: &customer.ID})
	return err
}

func (s *SubscriptionService) handleCustomerDeleted(ctx context.Context, svc models.Service, event *dto.PolarWebhook) error {
	var customer dto.PolarCustomer
	if err := json.Unmarshal(event.Data, &customer); err != nil {
		return fmt.Errorf("decode customer: %w", err)
	}
	if customer.ID == "" {
		return nil
	}

	linked, err := s.store.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return fmt.Errorf("list customer entitlements: %w", err)
	}
	patch := CancelPatch()
	patch.ClearPolarCustomer = true
	for _, e := range linked {
		if e.Service != svc {
			continue
		}
		if _, err := s.entitlements.Upsert(ctx, e.UserID, svc, patch); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "customer deletion handled", "service", svc, "customer_id", customer.ID)
	return nil
}

// Subscription returns the caller's DROP subscription as seen by Polar.
func (s *SubscriptionService) Subscription(ctx context.Context, userID uuid.UUID) (*dto.SubscriptionResponse, error) {
	e, err := s.store.Get(ctx, userID, models.ServiceDrop)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	if e.PolarSubscriptionID == nil || *e.PolarSubscriptionID == "" {
		return nil, ErrNoSubscription
	}

	sub, err := s.polar.GetSubscription(ctx, *e.PolarSubscriptionID)
	if err != nil {
		slog.ErrorContext(ctx, "polar subscription fetch failed", "user_id", userID, "error", err)
		return nil, ErrSubscriptionFetch
	}

	resp := &dto.SubscriptionResponse{
		ID:                sub.ID,
		Status:            sub.Status,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Plan:              "unknown",
		BillingCycle:      "monthly",
		Price:             &dto.SubscriptionPrice{Interval: "month"},
		Product:           &dto.SubscriptionProduct{Name: "Premium"},
	}
	if sub.CurrentPeriodStart != nil {
		resp.CurrentPeriodStart = sub.CurrentPeriodStart.Unix()
	}
	if sub.CurrentPeriodEnd != nil {
		resp.CurrentPeriodEnd = sub.CurrentPeriodEnd.Unix()
	}
	if p := dto.MetaString(sub.Metadata, "plan"); p != "" {
		resp.Plan = p
	}
	if c := dto.MetaString(sub.Metadata, "billingCycle"); c != "" {
		resp.BillingCycle = c
	}
	if sub.Price != nil {
		resp.Price.Amount = sub.Price.Amount
		resp.Price.Currency = sub.Price.Currency
		if sub.Price.RecurringInterval != "" {
			resp.Price.Interval = sub.Price.RecurringInterval
		}
	}
	if sub.Product != nil && sub.Product.Name != "" {
		resp.Product.Name = sub.Product.Name
	}
	return resp, nil
}
