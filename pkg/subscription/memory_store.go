package subscription

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store with the same uniqueness rules as the Postgres
// table (one row per tenant, one row per external subscription id).
type MemoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Subscription // by row ID
	err  error
}

// NewMemoryStore returns an empty in-process Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]*Subscription)}
}

func (m *MemoryStore) FindByTenant(_ context.Context, tenantID uuid.UUID) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, unavailable("find", m.err)
	}
	if row := m.byTenant(tenantID); row != nil {
		return row.Clone(), nil
	}
	return nil, ErrSubscriptionNotFound
}

func (m *MemoryStore) FindByExternalID(_ context.Context, externalID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, unavailable("find", m.err)
	}
	if row := m.byExternalID(externalID); row != nil {
		return row.Clone(), nil
	}
	return nil, ErrSubscriptionNotFound
}

func (m *MemoryStore) Insert(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return unavailable("insert", m.err)
	}
	if err := m.checkUnique("insert", s); err != nil {
		return err
	}
	m.rows[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return unavailable("update", m.err)
	}
	if _, ok := m.rows[s.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	if err := m.checkUnique("update", s); err != nil {
		return err
	}
	m.rows[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) MarkRenewalNotified(_ context.Context, tenantID uuid.UUID, at, notSince time.Time) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, unavailable("mark_renewal_notified", m.err)
	}

	row := m.byTenant(tenantID)
	if row == nil {
		return nil, ErrSubscriptionNotFound
	}
	if row.RenewalNotificationSentAt != nil && !row.RenewalNotificationSentAt.Before(notSince) {
		return nil, ErrRenewalAlreadyNotified
	}

	next, err := Apply(row, RenewalReminderSent{At: at})
	if err != nil {
		return nil, ErrRenewalAlreadyNotified
	}
	m.rows[next.ID] = next
	return next.Clone(), nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, statuses ...Status) ([]*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, unavailable("list", m.err)
	}

	var out []*Subscription
	for _, row := range m.rows {
		if slices.Contains(statuses, row.Status) {
			out = append(out, row.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (m *MemoryStore) ListRenewalsDue(_ context.Context, from, to time.Time) ([]*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, unavailable("list", m.err)
	}

	var out []*Subscription
	for _, row := range m.rows {
		if row.Status != StatusActive || row.PendingRenewal || row.CurrentPeriodEnd == nil {
			continue
		}
		end := *row.CurrentPeriodEnd
		if !end.Before(from) && end.Before(to) {
			out = append(out, row.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

// SetErr makes every call fail as unavailable until cleared with nil.
func (m *MemoryStore) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Len returns the number of stored rows.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MemoryStore) byTenant(tenantID uuid.UUID) *Subscription {
	for _, row := range m.rows {
		if row.TenantID == tenantID {
			return row
		}
	}
	return nil
}

func (m *MemoryStore) byExternalID(externalID string) *Subscription {
	if externalID == "" {
		return nil
	}
	for _, row := range m.rows {
		if row.ExternalSubscriptionID == externalID {
			return row
		}
	}
	return nil
}

func (m *MemoryStore) checkUnique(op string, s *Subscription) error {
	if row := m.byTenant(s.TenantID); row != nil && row.ID != s.ID {
		return conflict(op, ConstraintTenantID, fmt.Errorf("tenant %s already has a subscription", s.TenantID))
	}
	if row := m.byExternalID(s.ExternalSubscriptionID); row != nil && row.ID != s.ID {
		return conflict(op, ConstraintExternalID, fmt.Errorf("external subscription %q is already stored", s.ExternalSubscriptionID))
	}
	return nil
}

func sortByCreated(rows []*Subscription) {
	slices.SortFunc(rows, func(a, b *Subscription) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
}
