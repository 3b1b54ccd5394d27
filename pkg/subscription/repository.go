package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/pkg/audit"
	"github.com/dmitrymomot/planwarden/pkg/logger"
	"github.com/dmitrymomot/planwarden/pkg/plan"
)

// TrialConfig selects the trial length with a single switch.
type TrialConfig struct {
	ShortMode     bool          `env:"TRIAL_SHORT_MODE" envDefault:"false"`
	ShortDuration time.Duration `env:"TRIAL_SHORT_DURATION" envDefault:"1h"`
	LongDuration  time.Duration `env:"TRIAL_LONG_DURATION" envDefault:"336h"`
}

// Duration returns the trial length in force.
func (c TrialConfig) Duration() time.Duration {
	if c.ShortMode {
		return c.ShortDuration
	}
	return c.LongDuration
}

const defaultUpsertAttempts = 3

// Repository owns every write to subscription rows and keeps their invariants.
type Repository struct {
	store         Store
	trialDuration time.Duration
	attempts      int
	now           func() time.Time
	logger        *slog.Logger
	audit         audit.Sink
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithClock overrides time.Now; tests pin it.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger for conflict and recovery warnings.
func WithLogger(l *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAudit records row changes to s.
func WithAudit(s audit.Sink) RepositoryOption {
	return func(r *Repository) {
		if s != nil {
			r.audit = s
		}
	}
}

// WithUpsertAttempts bounds the insert/update convergence loop of Upsert.
func WithUpsertAttempts(n int) RepositoryOption {
	return func(r *Repository) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// NewRepository wraps store. Trial rows it creates last trial.Duration().
func NewRepository(store Store, trial TrialConfig, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store:         store,
		trialDuration: trial.Duration(),
		attempts:      defaultUpsertAttempts,
		now:           time.Now,
		logger:        logger.Discard(),
		audit:         audit.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TrialDuration returns the configured trial length.
func (r *Repository) TrialDuration() time.Duration { return r.trialDuration }

// Get returns the tenant's row, ErrSubscriptionNotFound, or a *RepositoryError.
func (r *Repository) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return r.store.FindByTenant(ctx, tenantID)
}

// GetByExternalID looks a row up by the payment processor's subscription id.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*Subscription, error) {
	if externalID == "" {
		return nil, ErrSubscriptionNotFound
	}
	return r.store.FindByExternalID(ctx, externalID)
}

// CreateTrial provisions a trial row for the tenant. If a row already exists,
// including one inserted concurrently, that row is returned unchanged.
func (r *Repository) CreateTrial(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}

	existing, err := r.store.FindByTenant(ctx, tenantID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	now := r.now()
	row := r.newRow(tenantID, now)
	normalize(row, now, r.trialDuration)

	err = r.store.Insert(ctx, row)
	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "trial subscription created",
			logger.TenantID(tenantID),
			slog.Time("trial_ends_at", *row.TrialEndsAt),
		)
		r.record(ctx, audit.ActionTrialCreated, row)
		return row, nil

	case IsConflict(err):
		// Lost a provisioning race; the winner's row is the answer.
		return r.store.FindByTenant(ctx, tenantID)

	default:
		return nil, err
	}
}

// Upsert applies patch to the tenant's row, creating it if absent.
//
// When the insert collides with a row already holding the patch's external
// subscription id, that row is reassigned to tenantID and patched instead:
// one row per external id wins over tenant-id immutability. Callers should
// use the returned row rather than their inputs; after a recovery its ID is
// the recovered row's and the previous owner no longer has a subscription.
//
// Status is taken from the patch as given; Upsert never derives it.
func (r *Repository) Upsert(ctx context.Context, tenantID uuid.UUID, patch Patch) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}

	var lastErr error
	for range r.attempts {
		existing, err := r.store.FindByTenant(ctx, tenantID)
		switch {
		case err == nil:
			row, err := r.updateExisting(ctx, existing, patch)
			if errors.Is(err, ErrSubscriptionNotFound) {
				lastErr = err
				continue
			}
			return row, err

		case errors.Is(err, ErrSubscriptionNotFound):
			row, retry, err := r.insertOrRecover(ctx, tenantID, patch)
			if retry {
				lastErr = err
				continue
			}
			return row, err

		default:
			return nil, err
		}
	}

	return nil, &RepositoryError{
		Op:   "upsert",
		Kind: KindConflict,
		Err:  errors.Join(ErrUpsertRetriesExhausted, lastErr),
	}
}

func (r *Repository) updateExisting(ctx context.Context, existing *Subscription, patch Patch) (*Subscription, error) {
	now := r.now()
	row := existing.Clone()
	patch.applyTo(row)
	normalize(row, now, r.trialDuration)
	row.UpdatedAt = now

	if err := r.store.Update(ctx, row); err != nil {
		if IsConflict(err) {
			r.logger.WarnContext(ctx, "subscription update conflicts with another row",
				logger.TenantID(row.TenantID),
				logger.ExternalID(row.ExternalSubscriptionID),
				logger.Error(err),
			)
		}
		return nil, err
	}

	r.record(ctx, audit.ActionUpserted, row, audit.WithMetadata("path", "update"))
	return row, nil
}

// insertOrRecover returns retry=true when the caller should restart from the lookup.
func (r *Repository) insertOrRecover(ctx context.Context, tenantID uuid.UUID, patch Patch) (*Subscription, bool, error) {
	now := r.now()
	row := r.newRow(tenantID, now)
	patch.applyTo(row)
	normalize(row, now, r.trialDuration)

	err := r.store.Insert(ctx, row)
	if err == nil {
		r.record(ctx, audit.ActionUpserted, row, audit.WithMetadata("path", "insert"))
		return row, false, nil
	}

	switch conflictOn(err) {
	case ConstraintExternalID:
		return r.recoverExternalID(ctx, tenantID, row.ExternalSubscriptionID, patch)
	case "":
		return nil, false, err
	default:
		// Another writer created the tenant's row first; update it instead.
		return nil, true, err
	}
}

func (r *Repository) recoverExternalID(ctx context.Context, tenantID uuid.UUID, externalID string, patch Patch) (*Subscription, bool, error) {
	owner, err := r.store.FindByExternalID(ctx, externalID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, true, err
	}
	if err != nil {
		return nil, false, err
	}

	now := r.now()
	previousTenant := owner.TenantID
	row := owner.Clone()
	row.TenantID = tenantID
	patch.applyTo(row)
	normalize(row, now, r.trialDuration)
	row.UpdatedAt = now

	err = r.store.Update(ctx, row)
	switch {
	case err == nil:
	case errors.Is(err, ErrSubscriptionNotFound), conflictOn(err) == ConstraintTenantID:
		return nil, true, err
	default:
		return nil, false, err
	}

	r.logger.WarnContext(ctx, "external subscription id reassigned to tenant",
		logger.TenantID(tenantID),
		logger.ExternalID(externalID),
		slog.String("previous_tenant_id", previousTenant.String()),
	)
	r.record(ctx, audit.ActionExternalIDRecovered, row,
		audit.WithMetadata("previous_tenant_id", previousTenant.String()),
		audit.WithMetadata("external_subscription_id", externalID),
	)
	return row, false, nil
}

// MarkRenewalNotified records that the renewal reminder went out now and
// moves the row into pending renewal. Only the first call of a calendar day
// succeeds; later ones get ErrRenewalAlreadyNotified. The day is day's date
// in day's location, so the caller decides the timezone, as it does for
// ListRenewalsDue.
func (r *Repository) MarkRenewalNotified(ctx context.Context, tenantID uuid.UUID, day time.Time) (*Subscription, error) {
	row, err := r.store.MarkRenewalNotified(ctx, tenantID, r.now(), startOfDay(day))
	if err != nil {
		return nil, err
	}
	r.record(ctx, audit.ActionRenewalNotified, row)
	return row, nil
}

// ApproveRenewal is the operator step that clears pending renewal and
// advances the period end.
func (r *Repository) ApproveRenewal(ctx context.Context, tenantID uuid.UUID, nextPeriodEnd time.Time) (*Subscription, error) {
	existing, err := r.store.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	row, err := Apply(existing, RenewalApproved{NextPeriodEnd: nextPeriodEnd, At: r.now()})
	if err != nil {
		return nil, err
	}
	if err := r.store.Update(ctx, row); err != nil {
		return nil, err
	}

	r.record(ctx, audit.ActionRenewalApproved, row,
		audit.WithMetadata("current_period_end", nextPeriodEnd),
	)
	return row, nil
}

// ListByStatus returns rows in any of the given statuses, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, statuses ...Status) ([]*Subscription, error) {
	return r.store.ListByStatus(ctx, statuses...)
}

// ListRenewalsDue returns active rows not pending renewal whose period ends
// on the calendar day of day.
func (r *Repository) ListRenewalsDue(ctx context.Context, day time.Time) ([]*Subscription, error) {
	from := startOfDay(day)
	return r.store.ListRenewalsDue(ctx, from, from.AddDate(0, 0, 1))
}

func (r *Repository) newRow(tenantID uuid.UUID, now time.Time) *Subscription {
	return &Subscription{
		ID:        uuid.New(),
		TenantID:  tenantID,
		PlanType:  plan.TypeTrial,
		Status:    StatusTrial,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Repository) record(ctx context.Context, action string, row *Subscription, opts ...audit.EventOption) {
	opts = append(opts,
		audit.WithTenant(row.TenantID.String()),
		audit.WithResource("subscription", row.ID.String()),
		audit.WithFields(map[string]any{
			"plan_type":       string(row.PlanType),
			"status":          string(row.Status),
			"pending_renewal": row.PendingRenewal,
		}),
	)
	if err := r.audit.Log(ctx, action, opts...); err != nil {
		r.logger.ErrorContext(ctx, "audit write failed", slog.String("action", action), logger.Error(err))
	}
}

// startOfDay truncates t to midnight in t's own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
