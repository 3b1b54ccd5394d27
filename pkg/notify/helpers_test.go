package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planwarden/pkg/email"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
)

var t0 = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type outbox struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	err  error
}

func (o *outbox) SendEmail(_ context.Context, p email.SendEmailParams) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, p)
	return nil
}

func (o *outbox) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *outbox) messages() []email.SendEmailParams {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]email.SendEmailParams(nil), o.sent...)
}

var errTransport = errors.New("smtp: 421 service not available")

type fixture struct {
	clock   *clock
	repo    *subscription.Repository
	store   *subscription.MemoryStore
	tenants *tenant.MemoryStore
	outbox  *outbox
}

func newFixture(t *testing.T, shortTrial bool) *fixture {
	t.Helper()
	f := &fixture{
		clock:   newClock(t0),
		store:   subscription.NewMemoryStore(),
		tenants: tenant.NewMemoryStore(),
		outbox:  &outbox{},
	}
	f.repo = subscription.NewRepository(f.store, subscription.TrialConfig{
		ShortMode:     shortTrial,
		ShortDuration: time.Hour,
		LongDuration:  14 * 24 * time.Hour,
	}, subscription.WithClock(f.clock.Now))
	return f
}

func (f *fixture) tenant(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.tenants.Put(tenant.Profile{ID: id, Email: "owner+" + id.String()[:8] + "@example.com", Name: "Acme"})
	return id
}

func (f *fixture) trial(t *testing.T) uuid.UUID {
	t.Helper()
	id := f.tenant(t)
	_, err := f.repo.CreateTrial(context.Background(), id)
	require.NoError(t, err)
	return id
}

func (f *fixture) activeEnding(t *testing.T, end time.Time) uuid.UUID {
	t.Helper()
	id := f.tenant(t)
	_, err := f.repo.Upsert(context.Background(), id, subscription.Patch{
		Status:           subscription.Ptr(subscription.StatusActive),
		CurrentPeriodEnd: &end,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) dropEmail(id uuid.UUID) {
	f.tenants.Put(tenant.Profile{ID: id, Name: "Acme"})
}
