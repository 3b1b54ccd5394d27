package subscription

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/pkg/plan"
)

// Status is the stored subscription status.
type Status string

const (
	StatusTrial    Status = "trial"
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
	StatusPastDue  Status = "past_due"
	StatusPending  Status = "pending"
)

// ParseStatus maps a stored string onto a known status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusTrial, StatusActive, StatusCanceled, StatusExpired, StatusPastDue, StatusPending:
		return st, true
	}
	return Status(s), false
}

// Subscription is the one row a tenant can have.
//
// Invariants kept by the Repository:
//   - TrialEndsAt is set iff Status is trial;
//   - PendingRenewal implies Status is active and RenewalNotificationSentAt is set.
type Subscription struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	PlanType plan.Type `json:"plan_type"`
	Status   Status    `json:"status"`

	// Payment processor identifiers; ExternalSubscriptionID is the dedup key when set.
	ExternalSubscriptionID string `json:"external_subscription_id,omitempty"`
	ExternalCustomerID     string `json:"external_customer_id,omitempty"`
	ExternalPriceID        string `json:"external_price_id,omitempty"`

	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`

	PendingRenewal            bool       `json:"pending_renewal"`
	RenewalNotificationSentAt *time.Time `json:"renewal_notification_sent_at,omitempty"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	cp := *s
	cp.CurrentPeriodStart = cloneTime(s.CurrentPeriodStart)
	cp.CurrentPeriodEnd = cloneTime(s.CurrentPeriodEnd)
	cp.TrialEndsAt = cloneTime(s.TrialEndsAt)
	cp.CanceledAt = cloneTime(s.CanceledAt)
	cp.RenewalNotificationSentAt = cloneTime(s.RenewalNotificationSentAt)
	cp.Metadata = maps.Clone(s.Metadata)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }

// Patch is a partial update. Nil fields are left untouched; Metadata keys are merged.
type Patch struct {
	PlanType               *plan.Type
	Status                 *Status
	ExternalSubscriptionID *string
	ExternalCustomerID     *string
	ExternalPriceID        *string
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	TrialEndsAt            *time.Time
	CanceledAt             *time.Time
	PendingRenewal         *bool
	Metadata               map[string]any
}

// Ptr is a helper for building patches.
func Ptr[T any](v T) *T { return &v }

func (p Patch) applyTo(s *Subscription) {
	if p.PlanType != nil {
		s.PlanType = *p.PlanType
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.ExternalSubscriptionID != nil {
		s.ExternalSubscriptionID = *p.ExternalSubscriptionID
	}
	if p.ExternalCustomerID != nil {
		s.ExternalCustomerID = *p.ExternalCustomerID
	}
	if p.ExternalPriceID != nil {
		s.ExternalPriceID = *p.ExternalPriceID
	}
	if p.CurrentPeriodStart != nil {
		s.CurrentPeriodStart = cloneTime(p.CurrentPeriodStart)
	}
	if p.CurrentPeriodEnd != nil {
		s.CurrentPeriodEnd = cloneTime(p.CurrentPeriodEnd)
	}
	if p.TrialEndsAt != nil {
		s.TrialEndsAt = cloneTime(p.TrialEndsAt)
	}
	if p.CanceledAt != nil {
		s.CanceledAt = cloneTime(p.CanceledAt)
	}
	if p.PendingRenewal != nil {
		s.PendingRenewal = *p.PendingRenewal
	}
	if len(p.Metadata) > 0 {
		if s.Metadata == nil {
			s.Metadata = make(map[string]any, len(p.Metadata))
		}
		maps.Copy(s.Metadata, p.Metadata)
	}
}

// normalize enforces the row invariants after a patch. Status itself is
// never derived here; callers pass the status they intend.
func normalize(s *Subscription, now time.Time, trialDuration time.Duration) {
	if s.Status == StatusTrial {
		if s.TrialEndsAt == nil {
			s.TrialEndsAt = timePtr(now.Add(trialDuration))
		}
	} else {
		s.TrialEndsAt = nil
	}

	if s.Status != StatusActive {
		s.PendingRenewal = false
	}
	if s.PendingRenewal && s.RenewalNotificationSentAt == nil {
		s.RenewalNotificationSentAt = timePtr(now)
	}
}
