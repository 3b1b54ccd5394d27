package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/planwarden/pkg/audit"
	"github.com/dmitrymomot/planwarden/pkg/logger"
	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
	"github.com/dmitrymomot/planwarden/pkg/usage"
)

// SubscriptionSource is the part of the subscription repository access needs.
type SubscriptionSource interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error)
	CreateTrial(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error)
}

// Evaluator decides whether a tenant may use the product and create records.
type Evaluator struct {
	subs       SubscriptionSource
	lifecycle  *subscription.Lifecycle
	catalog    *plan.Catalog
	counter    *usage.Counter
	tenants    tenant.Store
	superAdmin tenant.SuperAdmin
	trials     singleflight.Group
	audit      audit.Sink
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSuperAdmin grants unlimited access to tenants sa reports.
func WithSuperAdmin(sa tenant.SuperAdmin) Option {
	return func(e *Evaluator) { e.superAdmin = sa }
}

// WithLifecycle replaces the default status resolver.
func WithLifecycle(l *subscription.Lifecycle) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.lifecycle = l
		}
	}
}

// WithAudit records fail-open decisions to s.
func WithAudit(s audit.Sink) Option {
	return func(e *Evaluator) {
		if s != nil {
			e.audit = s
		}
	}
}

// WithLogger sets the evaluator logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator answers access questions from subs, catalog and counter.
// tenants may be nil when no super admin check is configured.
func NewEvaluator(subs SubscriptionSource, catalog *plan.Catalog, counter *usage.Counter, tenants tenant.Store, opts ...Option) *Evaluator {
	e := &Evaluator{
		subs:      subs,
		lifecycle: subscription.NewLifecycle(),
		catalog:   catalog,
		counter:   counter,
		tenants:   tenants,
		audit:     audit.Discard(),
		logger:    logger.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckAccess never fails: every path ends in a Decision. When the
// subscription subsystem cannot decide, access is allowed with an upgrade
// prompt and a fail-open Basis.
func (e *Evaluator) CheckAccess(ctx context.Context, tenantID uuid.UUID) Decision {
	if e.isSuperAdmin(ctx, tenantID) {
		return Decision{Allowed: true, Basis: BasisSuperAdmin}
	}

	info, err := e.resolve(ctx, tenantID)
	if err != nil {
		return e.failOpen(ctx, tenantID, BasisDegraded, ReasonStoreUnavailable, err)
	}

	if !info.Exists() {
		info, err = e.provision(ctx, tenantID)
		if err != nil || !info.Exists() {
			return e.failOpen(ctx, tenantID, BasisUnprovisioned, ReasonNoSubscription, err)
		}
	}

	d := Decision{Subscription: &info}
	switch {
	case info.IsTrial:
		// Trial users are never hard-blocked, only prompted once expired.
		d.Allowed = true
		d.Basis = BasisTrial
		if info.IsExpired {
			d.ShowUpgradePrompt = true
			d.Reason = ReasonTrialExpired
		}
	case info.IsExpired:
		d.Basis = BasisExpired
		d.ShowUpgradePrompt = true
		d.Reason = ReasonSubscriptionExpired
	case !info.IsActive && !info.IsPending:
		d.Basis = BasisInactive
		d.ShowUpgradePrompt = true
		d.Reason = ReasonSubscriptionPastDue
	case info.IsPending:
		d.Allowed = true
		d.Basis = BasisPending
	default:
		d.Allowed = true
		d.Basis = BasisActive
	}
	return d
}

// CheckResource decides whether the tenant may create one more record of res.
// A failed count is treated as zero.
func (e *Evaluator) CheckResource(ctx context.Context, tenantID uuid.UUID, res plan.Resource) ResourceDecision {
	access := e.CheckAccess(ctx, tenantID)
	d := ResourceDecision{Resource: res, Access: access, PlanType: access.PlanType()}

	if !res.Valid() {
		d.Reason = ReasonUnknownResource
		return d
	}
	if !access.Allowed {
		d.ShowUpgradePrompt = true
		d.Reason = access.Reason
		return d
	}
	if access.Basis == BasisSuperAdmin {
		d.Allowed = true
		d.Unlimited = true
		d.MaxLimit = plan.Unlimited
		return d
	}

	// Fail-open decisions carry no plan; the catalog falls back to its most
	// restrictive tier.
	p := e.catalog.LimitsFor(d.PlanType)
	d.PlanType = p.Type
	limit, _ := p.Limit(res)
	d.MaxLimit = limit
	if limit == plan.Unlimited {
		d.Allowed = true
		d.Unlimited = true
		return d
	}

	count, ok := e.counter.CountOrZero(ctx, tenantID, res)
	d.CurrentCount = count
	d.Degraded = !ok
	d.Allowed = p.IsWithinLimit(res, count)
	if !d.Allowed {
		d.ShowUpgradePrompt = true
		d.Reason = fmt.Sprintf("%s: %d of %d %s", ReasonLimitReached, count, limit, res)
	}
	return d
}

// HasFeature fails closed: a tenant without a usable, known plan gets false.
func (e *Evaluator) HasFeature(ctx context.Context, tenantID uuid.UUID, f plan.Feature) bool {
	access := e.CheckAccess(ctx, tenantID)
	switch {
	case access.Basis == BasisSuperAdmin:
		return true
	case !access.Allowed, access.Basis.FailOpen():
		return false
	}
	return e.catalog.HasFeature(access.PlanType(), f)
}

// Usage returns the tenant's counts for every resource kind.
func (e *Evaluator) Usage(ctx context.Context, tenantID uuid.UUID) usage.Snapshot {
	return e.counter.CountsFor(ctx, tenantID)
}

func (e *Evaluator) resolve(ctx context.Context, tenantID uuid.UUID) (subscription.Info, error) {
	row, err := e.subs.Get(ctx, tenantID)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		row = nil
	case err != nil:
		return subscription.Info{}, err
	}
	return e.lifecycle.Resolve(row, e.now()), nil
}

// provision creates the trial once per tenant even when many requests race.
func (e *Evaluator) provision(ctx context.Context, tenantID uuid.UUID) (subscription.Info, error) {
	v, err, _ := e.trials.Do(tenantID.String(), func() (any, error) {
		return e.subs.CreateTrial(ctx, tenantID)
	})
	if err != nil {
		return subscription.Info{}, err
	}
	return e.lifecycle.Resolve(v.(*subscription.Subscription), e.now()), nil
}

func (e *Evaluator) isSuperAdmin(ctx context.Context, tenantID uuid.UUID) bool {
	if p, ok := tenant.FromContext(ctx); ok && p.ID == tenantID {
		return e.superAdmin.Matches(p)
	}
	if e.tenants == nil {
		return false
	}

	p, err := e.tenants.GetByID(ctx, tenantID)
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return false
	case err != nil:
		e.logger.WarnContext(ctx, "tenant lookup failed, super-admin bypass skipped",
			logger.TenantID(tenantID),
			logger.Error(err),
		)
		return false
	}
	return e.superAdmin.Matches(p)
}

func (e *Evaluator) failOpen(ctx context.Context, tenantID uuid.UUID, basis Basis, reason string, cause error) Decision {
	attrs := []any{logger.TenantID(tenantID), slog.String("basis", string(basis))}
	if cause != nil {
		attrs = append(attrs, logger.Error(cause))
	}
	e.logger.WarnContext(ctx, "access allowed without a usable subscription", attrs...)

	opts := []audit.EventOption{
		audit.WithTenant(tenantID.String()),
		audit.WithMetadata("basis", string(basis)),
		audit.WithMetadata("reason", reason),
	}
	var aerr error
	if cause != nil {
		aerr = e.audit.LogError(ctx, audit.ActionAccessFailOpen, cause, opts...)
	} else {
		aerr = e.audit.Log(ctx, audit.ActionAccessFailOpen, opts...)
	}
	if aerr != nil {
		e.logger.ErrorContext(ctx, "audit write failed", logger.Error(aerr))
	}

	return Decision{
		Allowed:           true,
		ShowUpgradePrompt: true,
		Reason:            reason,
		Basis:             basis,
	}
}
