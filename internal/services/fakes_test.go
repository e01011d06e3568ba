package services

import (
	"context"
	"time"

	"github.com/nullpass/nullpass/internal/ipcrypt"
	"github.com/nullpass/nullpass/internal/notify"
	"github.com/nullpass/nullpass/internal/polar"
	"github.com/nullpass/nullpass/internal/repository/memory"
	"github.com/nullpass/nullpass/internal/token"
	"github.com/nullpass/nullpass/internal/totp"
)

type recordingNotifier struct {
	events   []notify.Event
	payments []notify.Payment
}

func (n *recordingNotifier) EventReceived(_ context.Context, e notify.Event) error {
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) PaymentSucceeded(_ context.Context, p notify.Payment) error {
	n.payments = append(n.payments, p)
	return nil
}

type fakePolar struct {
	subs      map[string]*polar.Subscription
	cancelled []string
	err       error
}

func (f *fakePolar) Enabled() bool { return true }

func (f *fakePolar) GetSubscription(_ context.Context, id string) (*polar.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subs[id]
	if !ok {
		return nil, polar.ErrNotFound
	}
	return sub, nil
}

func (f *fakePolar) CancelSubscription(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return f.err
}

// harness wires every service over one in-memory store.
type harness struct {
	store        *memory.Store
	codec        *token.Codec
	audit        *AuditService
	sessions     *SessionService
	entitlements *EntitlementService
	auth         *AuthService
	billing      *SubscriptionService
	migration    *MigrationService
	admin        *AdminService
	polar        *fakePolar
	notifier     *recordingNotifier
}

func newHarness() *harness {
	h := &harness{
		store:    memory.New(),
		codec:    token.NewCodec("test-secret", time.Hour),
		polar:    &fakePolar{subs: map[string]*polar.Subscription{}},
		notifier: &recordingNotifier{},
	}
	users := h.store.Users()
	ents := h.store.Entitlements()
	h.audit = NewAuditService(h.store.Audit(), ipcrypt.New("audit-key"))
	h.sessions = NewSessionService(h.store.Sessions(), users, h.codec, h.audit, 7*24*time.Hour)
	h.entitlements = NewEntitlementService(ents, users, h.audit)
	h.auth = NewAuthService(users, h.sessions, h.entitlements, h.codec, totp.NewVerifier(totp.DefaultWindow), h.audit, h.polar)
	h.billing = NewSubscriptionService(h.entitlements, ents, users, h.audit, h.notifier, h.polar)
	h.migration = NewMigrationService(users, h.entitlements)
	h.admin = NewAdminService(users, ents)
	return h
}
