package audit

import (
	"context"
	"fmt"
	"time"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event is a single audit trail entry.
type Event struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// Sink is the audit capability the engine's components write to.
// Implementations must be safe for concurrent use.
type Sink interface {
	Log(ctx context.Context, action string, opts ...EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...EventOption) error
}

// Storage persists events.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// BatchStorage persists many events at once. Required by the async writer.
type BatchStorage interface {
	Storage
	StoreBatch(ctx context.Context, events []Event) error
}

// Action names recorded by the engine.
const (
	ActionTrialCreated        = "subscription.trial_created"
	ActionUpserted            = "subscription.upserted"
	ActionExternalIDRecovered = "subscription.external_id_recovered"
	ActionRenewalNotified     = "subscription.renewal_notified"
	ActionRenewalApproved     = "subscription.renewal_approved"
	ActionAccessFailOpen      = "access.fail_open"
	ActionUsageCountFailed    = "usage.count_failed"
	ActionNotifySent          = "notify.sent"
	ActionNotifySendFailed    = "notify.send_failed"
)
