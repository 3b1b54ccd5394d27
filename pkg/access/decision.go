package access

import (
	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
)

// Basis names the branch that produced a Decision.
type Basis string

const (
	BasisSuperAdmin Basis = "super_admin"
	BasisTrial      Basis = "trial"
	BasisActive     Basis = "active"
	BasisPending    Basis = "pending"
	BasisExpired    Basis = "expired"
	BasisInactive   Basis = "inactive"
	// BasisUnprovisioned: no usable row even after provisioning a trial. Fails open.
	BasisUnprovisioned Basis = "unprovisioned"
	// BasisDegraded: the subscription store could not be read. Fails open.
	BasisDegraded Basis = "degraded"
)

// FailOpen reports whether the decision allowed access only because the
// subscription subsystem could not decide.
func (b Basis) FailOpen() bool {
	return b == BasisUnprovisioned || b == BasisDegraded
}

// Decision is the result of CheckAccess. It is always returned, never an error.
type Decision struct {
	Allowed           bool               `json:"allowed"`
	Subscription      *subscription.Info `json:"subscription,omitempty"`
	ShowUpgradePrompt bool               `json:"show_upgrade_prompt"`
	Reason            string             `json:"reason,omitempty"`
	Basis             Basis              `json:"basis"`
}

// PlanType returns the plan the decision was made under, or "" when none.
func (d Decision) PlanType() plan.Type {
	if d.Subscription == nil {
		return ""
	}
	return d.Subscription.PlanType
}

// ResourceDecision is the result of CheckResource.
type ResourceDecision struct {
	Allowed           bool          `json:"allowed"`
	Resource          plan.Resource `json:"resource"`
	PlanType          plan.Type     `json:"plan_type,omitempty"`
	CurrentCount      int64         `json:"current_count"`
	MaxLimit          int64         `json:"max_limit"`
	Unlimited         bool          `json:"unlimited"`
	ShowUpgradePrompt bool          `json:"show_upgrade_prompt"`
	Reason            string        `json:"reason,omitempty"`
	// Degraded is set when the count query failed and zero was assumed.
	Degraded bool     `json:"degraded"`
	Access   Decision `json:"access"`
}

// Reasons reported in decisions.
const (
	ReasonNoSubscription      = "no subscription found"
	ReasonStoreUnavailable    = "subscription service unavailable"
	ReasonTrialExpired        = "trial expired"
	ReasonSubscriptionExpired = "subscription expired"
	ReasonSubscriptionPastDue = "subscription inactive"
	ReasonLimitReached        = "plan limit reached"
	ReasonUnknownResource     = "unknown resource"
)
