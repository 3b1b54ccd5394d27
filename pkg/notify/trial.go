package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/pkg/email"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
)

// TrialSource is the read side of the subscription repository the trial
// scheduler needs.
type TrialSource interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error)
	ListByStatus(ctx context.Context, statuses ...subscription.Status) ([]*subscription.Subscription, error)
}

// TrialScheduler warns tenants whose trial is about to end.
type TrialScheduler struct {
	dispatcher
	subs TrialSource
}

// NewTrialScheduler returns a scheduler that reminds trial tenants before the trial ends.
func NewTrialScheduler(subs TrialSource, tenants tenant.Store, sender email.EmailSender, opts ...Option) *TrialScheduler {
	return &TrialScheduler{
		dispatcher: newDispatcher(tenants, sender, opts),
		subs:       subs,
	}
}

// ScanAndNotify checks every trial row once. Per-tenant failures are counted,
// never returned; the error is only for a failed listing.
func (s *TrialScheduler) ScanAndNotify(ctx context.Context) (SweepResult, error) {
	defer s.metrics.observeSweep("trial", time.Now())

	rows, err := s.subs.ListByStatus(ctx, subscription.StatusTrial)
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

	s.logger.InfoContext(ctx, "trial notification sweep finished",
		slog.Int("checked", res.Checked),
		slog.Int("sent", res.Sent),
		slog.Int("skipped", res.Skipped),
		slog.Int("errors", res.Errors),
		slog.Bool("interrupted", res.Interrupted),
	)
	return res, nil
}

// CheckAndNotify runs the same check for one tenant, e.g. on a dashboard visit.
func (s *TrialScheduler) CheckAndNotify(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	row, err := s.subs.Get(ctx, tenantID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.notify(ctx, row)
}

func (s *TrialScheduler) notify(ctx context.Context, row *subscription.Subscription) (bool, error) {
	if row.Status != subscription.StatusTrial || row.TrialEndsAt == nil {
		return false, nil
	}

	now := s.now()
	end := *row.TrialEndsAt
	length := end.Sub(row.CreatedAt)
	if row.CreatedAt.IsZero() {
		length = s.trial.ShortThreshold
	}

	w, ok := s.trial.Match(length, end.Sub(now))
	if !ok {
		return false, nil
	}

	return s.deliver(ctx, row.TenantID, w.Gate.Cutoff(now, end.Add(-w.Opens)), Data{
		Kind:      w.Kind,
		PlanType:  row.PlanType,
		Deadline:  end,
		Remaining: end.Sub(now),
	})
}
