package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/pkg/email"
	"github.com/dmitrymomot/planwarden/pkg/logger"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
)

// RenewalStore is the part of the subscription repository the renewal
// scheduler needs.
type RenewalStore interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error)
	ListRenewalsDue(ctx context.Context, day time.Time) ([]*subscription.Subscription, error)
	MarkRenewalNotified(ctx context.Context, tenantID uuid.UUID, day time.Time) (*subscription.Subscription, error)
}

// RenewalScheduler reminds tenants on the day their period ends. A delivered
// reminder moves the subscription into pending renewal.
type RenewalScheduler struct {
	dispatcher
	subs RenewalStore
}

// NewRenewalScheduler returns a scheduler over subs; see RenewalPolicy for the timezone.
func NewRenewalScheduler(subs RenewalStore, tenants tenant.Store, sender email.EmailSender, opts ...Option) *RenewalScheduler {
	return &RenewalScheduler{
		dispatcher: newDispatcher(tenants, sender, opts),
		subs:       subs,
	}
}

// ScanAndNotify reminds every tenant whose period ends today. Per-tenant
// failures are counted in the result, not returned.
func (s *RenewalScheduler) ScanAndNotify(ctx context.Context) (SweepResult, error) {
	defer s.metrics.observeSweep("renewal", time.Now())

	rows, err := s.subs.ListRenewalsDue(ctx, s.renewal.in(s.now()))
	if err != nil {
		return SweepResult{}, err
	}

	var res SweepResult
	for _, row := range rows {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		res.Checked++
		res.add(s.notify(ctx, row))
	}

	s.logger.InfoContext(ctx, "renewal notification sweep finished",
		slog.Int("checked", res.Checked),
		slog.Int("sent", res.Sent),
		slog.Int("skipped", res.Skipped),
		slog.Int("errors", res.Errors),
		slog.Bool("interrupted", res.Interrupted),
	)
	return res, nil
}

// CheckAndNotify runs the renewal check for one tenant. A tenant without a
// subscription is not an error.
func (s *RenewalScheduler) CheckAndNotify(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	row, err := s.subs.Get(ctx, tenantID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.notify(ctx, row)
}

func (s *RenewalScheduler) notify(ctx context.Context, row *subscription.Subscription) (bool, error) {
	now := s.renewal.in(s.now())
	if !renewalDue(row, now) {
		return false, nil
	}
	if sent := row.RenewalNotificationSentAt; sent != nil && subscription.SameDay(now, *sent) {
		return false, nil
	}

	sent, err := s.deliver(ctx, row.TenantID, s.renewal.Gate.Cutoff(now, time.Time{}), Data{
		Kind:      KindRenewal,
		PlanType:  row.PlanType,
		Deadline:  *row.CurrentPeriodEnd,
		Remaining: row.CurrentPeriodEnd.Sub(now),
	})
	if !sent || err != nil {
		return sent, err
	}

	_, err = s.subs.MarkRenewalNotified(ctx, row.TenantID, now)
	switch {
	case err == nil:
	case errors.Is(err, subscription.ErrRenewalAlreadyNotified):
		// Another path recorded the reminder first; the row is already pending.
		s.logger.InfoContext(ctx, "renewal reminder already recorded", logger.TenantID(row.TenantID))
	default:
		s.logger.ErrorContext(ctx, "renewal reminder sent but not recorded",
			logger.TenantID(row.TenantID),
			logger.Error(err),
		)
		return true, errors.Join(ErrMarkRenewalFailed, err)
	}
	return true, nil
}

func renewalDue(row *subscription.Subscription, now time.Time) bool {
	return row.Status == subscription.StatusActive &&
		!row.PendingRenewal &&
		row.CurrentPeriodEnd != nil &&
		subscription.SameDay(now, *row.CurrentPeriodEnd)
}
