package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the row-level persistence the Repository builds on.
//
// Implementations report missing rows with ErrSubscriptionNotFound, unique
// violations as a *RepositoryError of KindConflict naming the constraint,
// and connectivity failures as KindUnavailable.
type Store interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	FindByExternalID(ctx context.Context, externalID string) (*Subscription, error)

	// Insert stores a new row.
	Insert(ctx context.Context, s *Subscription) error

	// Update overwrites the row with s.ID, tenant id included.
	Update(ctx context.Context, s *Subscription) error

	// MarkRenewalNotified applies RenewalReminderSent{At: at} in one
	// conditional write. It fails with ErrRenewalAlreadyNotified unless the row
	// is active, not pending renewal, and was not notified at or after notSince.
	MarkRenewalNotified(ctx context.Context, tenantID uuid.UUID, at, notSince time.Time) (*Subscription, error)

	ListByStatus(ctx context.Context, statuses ...Status) ([]*Subscription, error)

	// ListRenewalsDue returns active rows not pending renewal whose
	// CurrentPeriodEnd falls in [from, to).
	ListRenewalsDue(ctx context.Context, from, to time.Time) ([]*Subscription, error)
}
