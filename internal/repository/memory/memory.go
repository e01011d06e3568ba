// Package memory keeps nullpass records in process memory. It mirrors the
// gorm repositories' method sets and error values and backs the service and
// HTTP tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/models"
	"github.com/nullpass/nullpass/internal/repository"
)

// Store holds every table behind one mutex.
type Store struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*models.User
	sessions     []*models.Session
	entitlements []*models.ServiceEntitlement
	audit        []models.AuditLog
}

// New returns an empty store.
func New() *Store {
	return &Store{users: map[uuid.UUID]*models.User{}}
}

func (m *Store) Users() Users               { return Users{m} }
func (m *Store) Sessions() Sessions         { return Sessions{m} }
func (m *Store) Entitlements() Entitlements { return Entitlements{m} }
func (m *Store) Audit() Audit               { return Audit{m} }

// Users, Sessions, Entitlements and Audit view one Store through the
// matching repository method set.
type Users struct{ *Store }
type Sessions struct{ *Store }
type Entitlements struct{ *Store }
type Audit struct{ *Store }

func (m Users) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m Users) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m Users) GetWithEntitlements(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Entitlements, _ = Entitlements(m).List(ctx, id)
	return u, nil
}

func strPtr(v any) *string {
	switch s := v.(type) {
	case string:
		return &s
	case *string:
		return s
	default:
		return nil
	}
}

func (m Users) Update(_ context.Context, id uuid.UUID, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "password_hash":
			u.PasswordHash = strPtr(v)
		case "two_factor_enabled":
			u.TwoFactorEnabled = v.(bool)
		case "two_factor_secret":
			u.TwoFactorSecret = strPtr(v)
		case "disabled":
			u.Disabled = v.(bool)
		case "migrated":
			u.Migrated = v.(bool)
		case "display_name":
			u.DisplayName = strPtr(v)
		case "avatar":
			u.Avatar = strPtr(v)
		case "created_at":
			u.CreatedAt = v.(time.Time)
		}
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (m Users) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.UpdatedAt = at
	}
	return nil
}

func (m Users) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	sessions := m.sessions[:0]
	for _, s := range m.sessions {
		if s.UserID != id {
			sessions = append(sessions, s)
		}
	}
	m.sessions = sessions
	ents := m.entitlements[:0]
	for _, e := range m.entitlements {
		if e.UserID != id {
			ents = append(ents, e)
		}
	}
	m.entitlements = ents
	return nil
}

func (m Users) List(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	m.mu.Lock()
	all := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, *u)
	}
	m.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if offset >= len(all) {
		return []models.User{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[offset:end]
	for i := range page {
		ents, _ := Entitlements(m).List(ctx, page[i].ID)
		for _, e := range ents {
			if e.Service == models.ServiceDrop {
				page[i].Entitlements = append(page[i].Entitlements, e)
			}
		}
	}
	return page, total, nil
}

func (m Users) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m Sessions) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.Token == s.Token {
			return repository.ErrDuplicate
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	cp := *s
	m.sessions = append(m.sessions, &cp)
	return nil
}

func (m Sessions) FindLive(_ context.Context, userID uuid.UUID, ip string, now time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		s := m.sessions[i]
		if s.UserID == userID && s.IP == ip && s.Live(now) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m Sessions) GetByToken(_ context.Context, raw string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Token == raw {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m Sessions) Rotate(_ context.Context, id uuid.UUID, raw string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id {
			s.Token = raw
			s.ExpiresAt = expiresAt
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m Sessions) ListLive(_ context.Context, userID uuid.UUID, now time.Time) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for i := len(m.sessions) - 1; i >= 0; i-- {
		s := m.sessions[i]
		if s.UserID == userID && s.Live(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m Sessions) Delete(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sessions {
		if s.ID == id && s.UserID == userID {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m Sessions) DeleteAll(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if s.UserID == userID {
			n++
			continue
		}
		kept = append(kept, s)
	}
	m.sessions = kept
	return n, nil
}

func (m Sessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if s.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, s)
	}
	m.sessions = kept
	return n, nil
}

func (m Entitlements) Get(_ context.Context, userID uuid.UUID, service models.Service) (*models.ServiceEntitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entitlements {
		if e.UserID == userID && e.Service == service {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m Entitlements) List(_ context.Context, userID uuid.UUID) ([]models.ServiceEntitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceEntitlement
	for _, e := range m.entitlements {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

func (m Entitlements) Upsert(_ context.Context, userID uuid.UUID, service models.Service, patch models.EntitlementPatch) (*models.ServiceEntitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entitlements {
		if e.UserID == userID && e.Service == service {
			patch.Apply(e)
			e.UpdatedAt = time.Now()
			cp := *e
			return &cp, nil
		}
	}
	e := patch.NewEntitlement(userID, service)
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	m.entitlements = append(m.entitlements, e)
	cp := *e
	return &cp, nil
}

func (m Entitlements) ListByCustomer(_ context.Context, customerID string) ([]models.ServiceEntitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceEntitlement
	for _, e := range m.entitlements {
		if e.PolarCustomerID != nil && *e.PolarCustomerID == customerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m Entitlements) FindCustomDomainOwner(_ context.Context, domain string, exclude uuid.UUID) (*models.ServiceEntitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entitlements {
		if e.Service == models.ServiceDrop && e.UserID != exclude && e.MetadataString("customDomain") == domain {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m Entitlements) CountPremium(_ context.Context, service models.Service) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.entitlements {
		if e.Service == service && e.IsPremium {
			n++
		}
	}
	return n, nil
}

func (m Audit) Create(_ context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	m.audit = append(m.audit, *entry)
	return nil
}

func (m Audit) List(_ context.Context, userID uuid.UUID, action models.AuditAction, offset, limit int) ([]models.AuditLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.AuditLog
	for i := len(m.audit) - 1; i >= 0; i-- {
		a := m.audit[i]
		if a.UserID == userID && (action == "" || a.Action == action) {
			matched = append(matched, a)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.AuditLog{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

// Actions returns the recorded audit actions for a user in write order.
func (m *Store) Actions(userID uuid.UUID) []models.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditAction
	for _, a := range m.audit {
		if a.UserID == userID {
			out = append(out, a.Action)
		}
	}
	return out
}

// SessionCount counts the user's session rows, expired ones included.
func (m *Store) SessionCount(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// AuditEntries returns a copy of every audit row in write order.
func (m *Store) AuditEntries() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditLog(nil), m.audit...)
}
