package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/pkg/audit"
	"github.com/dmitrymomot/planwarden/pkg/logger"
	"github.com/dmitrymomot/planwarden/pkg/plan"
)

// CounterFunc returns how many records of one kind a tenant owns.
type CounterFunc func(ctx context.Context, tenantID uuid.UUID) (int64, error)

// Registry maps a resource kind to its CounterFunc.
// Not thread-safe: register all counters at startup only.
type Registry map[plan.Resource]CounterFunc

// NewRegistry returns a new, empty Registry.
func NewRegistry() Registry {
	return make(Registry)
}

// Register sets or replaces the CounterFunc for res. Panics if fn is nil.
func (r Registry) Register(res plan.Resource, fn CounterFunc) {
	if fn == nil {
		panic(fmt.Sprintf("usage: CounterFunc for resource %q cannot be nil", res))
	}
	r[res] = fn
}

// Snapshot is one tenant's consumption at the time of the call.
type Snapshot struct {
	Customers int64 `json:"customers"`
	Workers   int64 `json:"workers"`
	Products  int64 `json:"products"`
	Locations int64 `json:"locations"`

	// Failed lists kinds whose count query failed and were reported as 0.
	Failed []plan.Resource `json:"failed,omitempty"`
}

// Get returns the count for res.
func (s Snapshot) Get(res plan.Resource) int64 {
	switch res {
	case plan.ResourceCustomers:
		return s.Customers
	case plan.ResourceWorkers:
		return s.Workers
	case plan.ResourceProducts:
		return s.Products
	case plan.ResourceLocations:
		return s.Locations
	}
	return 0
}

func (s *Snapshot) set(res plan.Resource, n int64) {
	switch res {
	case plan.ResourceCustomers:
		s.Customers = n
	case plan.ResourceWorkers:
		s.Workers = n
	case plan.ResourceProducts:
		s.Products = n
	case plan.ResourceLocations:
		s.Locations = n
	}
}

// Degraded reports whether any count in the snapshot is a fallback zero.
func (s Snapshot) Degraded() bool { return len(s.Failed) > 0 }

// Counter computes usage snapshots. Counts are never cached: every call
// goes to the record store.
type Counter struct {
	registry Registry
	logger   *slog.Logger
	audit    audit.Sink
}

// Option configures a Counter.
type Option func(*Counter)

// WithLogger sets the counter logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Counter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAudit records failed counts to s.
func WithAudit(s audit.Sink) Option {
	return func(c *Counter) {
		if s != nil {
			c.audit = s
		}
	}
}

// NewCounter counts resources through registry.
func NewCounter(registry Registry, opts ...Option) *Counter {
	if registry == nil {
		registry = NewRegistry()
	}
	c := &Counter{
		registry: registry,
		logger:   logger.Discard(),
		audit:    audit.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Count returns the exact count for one kind, or an error.
func (c *Counter) Count(ctx context.Context, tenantID uuid.UUID, res plan.Resource) (int64, error) {
	fn, ok := c.registry[res]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoCounterRegistered, res)
	}
	n, err := fn(ctx, tenantID)
	if err != nil {
		return 0, errors.Join(ErrCountFailed, err)
	}
	return n, nil
}

// CountOrZero is Count with the availability policy applied: a failed query
// reports 0 and ok=false instead of an error. The failure is logged and audited.
// Undercounting here can let a tenant briefly exceed a cap while the store is
// unhealthy; that trade is accepted to keep access checks answering.
func (c *Counter) CountOrZero(ctx context.Context, tenantID uuid.UUID, res plan.Resource) (int64, bool) {
	n, err := c.Count(ctx, tenantID, res)
	if err == nil {
		return n, true
	}

	c.logger.WarnContext(ctx, "usage count failed, reporting zero",
		logger.TenantID(tenantID.String()),
		logger.Resource(string(res)),
		logger.Error(err),
	)
	if aerr := c.audit.LogError(ctx, audit.ActionUsageCountFailed, err,
		audit.WithTenant(tenantID.String()),
		audit.WithResource("usage", string(res)),
	); aerr != nil {
		c.logger.ErrorContext(ctx, "audit write failed", logger.Error(aerr))
	}
	return 0, false
}

// CountsFor counts every registered kind independently. One failing kind
// reports 0 and is listed in Snapshot.Failed; the others are unaffected.
func (c *Counter) CountsFor(ctx context.Context, tenantID uuid.UUID) Snapshot {
	var snap Snapshot
	for _, res := range plan.Resources {
		if _, ok := c.registry[res]; !ok {
			continue
		}
		n, ok := c.CountOrZero(ctx, tenantID, res)
		if !ok {
			snap.Failed = append(snap.Failed, res)
		}
		snap.set(res, n)
	}
	return snap
}
