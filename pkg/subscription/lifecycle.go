package subscription

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/planwarden/pkg/logger"
	"github.com/dmitrymomot/planwarden/pkg/plan"
)

// State is the computed lifecycle state of a subscription at an instant.
type State string

const (
	StateNone           State = "none"  // no row
	StateStale          State = "stale" // expired/canceled long enough ago to be ignored
	StateTrialActive    State = "trial_active"
	StateTrialExpired   State = "trial_expired"
	StateActive         State = "active"
	StatePending        State = "pending"         // stored status pending
	StatePendingRenewal State = "pending_renewal" // active, reminder sent, awaiting approval
	StatePastDue        State = "past_due"
	StateExpired        State = "expired"
	StateCanceled       State = "canceled"
)

// Info is the computed view the access policy consumes.
type Info struct {
	PlanType         plan.Type  `json:"plan_type"`
	Status           Status     `json:"status"`
	State            State      `json:"state"`
	IsActive         bool       `json:"is_active"`
	IsTrial          bool       `json:"is_trial"`
	IsExpired        bool       `json:"is_expired"`
	IsPending        bool       `json:"is_pending"`
	TrialEndsAt      *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

// Exists is false for StateNone and StateStale: the caller should behave as
// if the tenant had no subscription.
func (i Info) Exists() bool {
	return i.State != StateNone && i.State != StateStale
}

// DefaultStaleAfterMonths is how long an expired or canceled row keeps counting.
const DefaultStaleAfterMonths = 1

// Lifecycle derives Info from a stored row and the current time. It never writes.
type Lifecycle struct {
	staleAfterMonths int
	logger           *slog.Logger
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithStaleAfterMonths sets the staleness window in calendar months. Zero or
// negative disables the rule.
func WithStaleAfterMonths(months int) LifecycleOption {
	return func(l *Lifecycle) { l.staleAfterMonths = months }
}

// WithLifecycleLogger sets the logger used for unknown status values.
func WithLifecycleLogger(log *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if log != nil {
			l.logger = log
		}
	}
}

// NewLifecycle applies opts over the defaults.
func NewLifecycle(opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		staleAfterMonths: DefaultStaleAfterMonths,
		logger:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsStale reports whether an expired or canceled row is old enough to be ignored.
// The reference instant is the first set of CurrentPeriodEnd, CanceledAt,
// UpdatedAt, CreatedAt.
func (l *Lifecycle) IsStale(s *Subscription, now time.Time) bool {
	if s == nil || l.staleAfterMonths <= 0 {
		return false
	}
	if s.Status != StatusExpired && s.Status != StatusCanceled {
		return false
	}

	var ref time.Time
	switch {
	case s.CurrentPeriodEnd != nil:
		ref = *s.CurrentPeriodEnd
	case s.CanceledAt != nil:
		ref = *s.CanceledAt
	case !s.UpdatedAt.IsZero():
		ref = s.UpdatedAt
	default:
		ref = s.CreatedAt
	}
	return ref.AddDate(0, l.staleAfterMonths, 0).Before(now)
}

// Resolve computes the lifecycle view of s at now. A nil row yields StateNone.
func (l *Lifecycle) Resolve(s *Subscription, now time.Time) Info {
	if s == nil {
		return Info{State: StateNone}
	}
	if l.IsStale(s, now) {
		return Info{PlanType: s.PlanType, Status: s.Status, State: StateStale}
	}

	info := Info{
		PlanType:         s.PlanType,
		Status:           s.Status,
		TrialEndsAt:      cloneTime(s.TrialEndsAt),
		CurrentPeriodEnd: cloneTime(s.CurrentPeriodEnd),
	}

	status := s.Status
	if _, ok := ParseStatus(string(status)); !ok {
		l.logger.Warn("unknown subscription status, treating as expired",
			logger.TenantID(s.TenantID),
			logger.Status(string(status)),
		)
		status = StatusExpired
	}

	switch status {
	case StatusTrial:
		info.IsTrial = true
		if s.TrialEndsAt != nil && now.Before(*s.TrialEndsAt) {
			info.State = StateTrialActive
			info.IsActive = true
		} else {
			info.State = StateTrialExpired
			info.IsExpired = true
		}

	case StatusActive:
		inPeriod := s.CurrentPeriodEnd == nil || now.Before(*s.CurrentPeriodEnd)
		switch {
		case s.PendingRenewal:
			// Reminder sent: usable until period end, then pending approval
			// rather than expired.
			info.State = StatePendingRenewal
			info.IsPending = true
			info.IsActive = inPeriod
		case inPeriod:
			info.State = StateActive
			info.IsActive = true
		default:
			info.State = StateExpired
			info.IsExpired = true
		}

	case StatusPending:
		info.State = StatePending
		info.IsPending = true

	case StatusPastDue:
		info.State = StatePastDue

	case StatusCanceled:
		info.State = StateCanceled
		info.IsExpired = true

	default:
		info.State = StateExpired
		info.IsExpired = true
	}

	return info
}

// Transition is a stored-state change the engine itself performs.
// The set of variants is closed.
type Transition interface {
	apply(s *Subscription) error
}

// RenewalReminderSent moves an active subscription into pending renewal:
// the reminder going out is what marks the row as awaiting approval.
type RenewalReminderSent struct {
	At time.Time
}

func (t RenewalReminderSent) apply(s *Subscription) error {
	if s.Status != StatusActive || s.PendingRenewal {
		return ErrInvalidTransition
	}
	s.PendingRenewal = true
	s.RenewalNotificationSentAt = timePtr(t.At)
	s.UpdatedAt = t.At
	return nil
}

// RenewalApproved clears pending renewal and advances the billing period.
type RenewalApproved struct {
	NextPeriodEnd time.Time
	At            time.Time
}

func (t RenewalApproved) apply(s *Subscription) error {
	if s.Status != StatusActive || !s.PendingRenewal {
		return ErrInvalidTransition
	}
	if s.CurrentPeriodEnd != nil && !t.NextPeriodEnd.After(*s.CurrentPeriodEnd) {
		return ErrInvalidTransition
	}
	if s.CurrentPeriodEnd != nil {
		s.CurrentPeriodStart = cloneTime(s.CurrentPeriodEnd)
	}
	s.CurrentPeriodEnd = timePtr(t.NextPeriodEnd)
	s.PendingRenewal = false
	s.UpdatedAt = t.At
	return nil
}

// Apply returns a copy of s with t applied, or ErrInvalidTransition.
func Apply(s *Subscription, t Transition) (*Subscription, error) {
	if s == nil {
		return nil, ErrSubscriptionNotFound
	}
	next := s.Clone()
	if err := t.apply(next); err != nil {
		return nil, err
	}
	return next, nil
}
