package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/polar"
)

func webhook(t *testing.T, typ string, data any) *dto.PolarWebhook {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &dto.PolarWebhook{Type: typ, Data: raw}
}

func subscriptionData(userID, status string) map[string]any {
	return map[string]any{
		"id":          "sub_1",
		"status":      status,
		"customer_id": "cus_1",
		"amount":      999,
		"currency":    "usd",
		"metadata":    map[string]any{"userId": userID, "plan": "pro"},
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := seedUser(t, h, "payer@example.com")

	require.NoError(t, h.billing.HandleWebhookEvent(ctx, models.ServiceDrop,
		webhook(t, "subscription.created", subscriptionData(u.ID.String(), "active"))))

	e, err := h.entitlements.Get(ctx, u.ID, models.ServiceDrop)
	require.NoError(t, err)
	assert.True(t, e.IsPremium)
	assert.Equal(t, "pro", e.Tier)
	assert.Equal(t, "sub_1", *e.PolarSubscriptionID)
	assert.Equal(t, "cus_1", *e.PolarCustomerID)

	require.Len(t, h.notifier.payments, 1)
	assert.Equal(t, int64(999), h.notifier.payments[0].Amount)
	assert.Equal(t, "payer@example.com", h.notifier.payments[0].UserEmail)
	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, "pro", h.notifier.events[0].Plan)

	require.NoError(t, h.billing.HandleWebhookEvent(ctx, models.ServiceDrop,
		webhook(t, "subscription.updated", subscriptionData(u.ID.String(), "past_due"))))
	e, err = h.entitlements.Get(ctx, u.ID, models.ServiceDrop)
	require.NoError(t, err)
	assert.False(t, e.IsPremium)
	assert.Equal(t, models.DefaultTier, e.Tier)

	require.NoError(t, h.billing.HandleWebhookEvent(ctx, models.ServiceDrop,
		webhook(t, "subscription.revoked", subscriptionData(u.ID.String(), "revoked"))))
	e, err = h.entitlements.Get(ctx, u.ID, models.ServiceDrop)
	require.NoError(t, err)
	assert.Nil(t, e.PolarSubscriptionID)
	assert.Equal(t, "canceled", *e.PolarSubscriptionStatus)
	assert.Equal(t, "cus_1", *e.PolarCustomerID, "customer link survives a cancel")

	assert.Equal(t, []models.AuditAction{
		models.AuditSubscriptionCreate,
		models.AuditSubscriptionUpdate,
		models.AuditSubscriptionRevoke,
	}, h.store.Actions(u.ID))
}

func TestSubscriptionEventsAreScopedToService(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := seedUser(t, h, "scoped@example.com")

	require.NoError(t, h.billing.HandleWebhookEvent(ctx, models.ServiceMails,
		webhook(t, "subscription.active", subscriptionData(u.ID.String(), "active"))))

	_, err := h.entitlements.Get(ctx, u.ID, models.ServiceDrop)
	assert.ErrorIs(t, err, ErrEntitlementNotFound)
	e, err := h.entitlements.Get(ctx, u.ID, models.ServiceMails)
	require.NoError(t, err)
	assert.True(t, e.IsPremium)
}

func TestCancelWithoutEntitlementCreatesNothing(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := seedUser(t, h, "none@example.com")

	require.NoError(t, h.billing.HandleWebhookEvent(ctx, models.ServiceVault,
		webhook(t, "subscription.canceled", subscriptionData(u.ID.String(), "canceled"))))

	_, err := h.entitlements.Get(ctx, u.ID, models.ServiceVault)
	assert.ErrorIs(t, err, ErrEntitlementNotFound)
	assert.Equal(t, []models.AuditAction{models.AuditSubscriptionCancel}, h.store.Actions(u.ID))
}

func TestSubscriptionWithoutUserIsIgnored(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	data := subscriptionData("not-a-uuid", "active")
	require.NoError(t, h.billing.HandleWebhookEvent(ctx, models.ServiceDrop, webhook(t, "subscription.created", data)))
	assert.Empty(t, h.notifier.payments)
}

func TestCustomerLinkAndDeletion(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := seedUser(t, h, "cust@example.com")

	require.NoError(t, h.billing.HandleWebhookEvent(ctx, models.ServiceDrop, webhook(t, "customer.created", map[string]any{
		"id":    "cus_9",
		"email": "cust@example.com",
	})))
	e, err := h.entitlements.Get(ctx, u.ID, models.ServiceDrop)
	require.NoError(t, err)
	assert.Equal(t, "cus_9", *e.PolarCustomerID)

	require.NoError(t, h.billing.HandleWebhookEvent(ctx, models.ServiceDrop,
		webhook(t, "subscription.created", map[string]any{
			"id": "sub_9", "status": "active", "customer_id": "cus_9",
			"metadata": map[string]any{"userId": u.ID.String(), "plan": "pro"},
		})))

	require.NoError(t, h.billing.HandleWebhookEvent(ctx, models.ServiceDrop, webhook(t, "customer.deleted", map[string]any{"id": "cus_9"})))
	e, err = h.entitlements.Get(ctx, u.ID, models.ServiceDrop)
	require.NoError(t, err)
	assert.Nil(t, e.PolarCustomerID)
	assert.Nil(t, e.PolarSubscriptionID)
	assert.False(t, e.IsPremium)
	assert.Equal(t, models.DefaultTier, e.Tier)
	assert.Equal(t, "cus_9", h.notifier.events[len(h.notifier.events)-1].CustomerID)
}

func TestUnknownEventIgnored(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.billing.HandleWebhookEvent(context.Background(), models.ServiceDrop,
		webhook(t, "benefit.granted", map[string]any{"id": "x"})))
	require.Len(t, h.notifier.events, 1)
}

func TestSubscriptionLookup(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := seedUser(t, h, "look@example.com")

	_, err := h.billing.Subscription(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNoSubscription)

	start := time.Unix(1_700_000_000, 0).UTC()
	h.polar.subs["sub_5"] = &polar.Subscription{
		ID:                 "sub_5",
		Status:             "active",
		CurrentPeriodStart: &start,
		Metadata:           map[string]any{"plan": "pro"},
		Price:              &polar.SubscriptionPrice{Amount: 1500, Currency: "usd", RecurringInterval: "year"},
	}
	_, err = h.entitlements.Upsert(ctx, u.ID, models.ServiceDrop, models.EntitlementPatch{PolarSubscriptionID: ptr("sub_5")})
	require.NoError(t, err)

	resp, err := h.billing.Subscription(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), resp.CurrentPeriodStart)
	assert.Equal(t, int64(0), resp.CurrentPeriodEnd)
	assert.Equal(t, "pro", resp.Plan)
	assert.Equal(t, "monthly", resp.BillingCycle)
	assert.Equal(t, "year", resp.Price.Interval)
	assert.Equal(t, int64(1500), resp.Price.Amount)
	assert.Equal(t, "Premium", resp.Product.Name)

	h.polar.err = errors.New("boom")
	_, err = h.billing.Subscription(ctx, u.ID)
	assert.ErrorIs(t, err, ErrSubscriptionFetch)
}
