package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrRepositoryConflict     = errors.New("subscription repository conflict")
	ErrRepositoryUnavailable  = errors.New("subscription repository unavailable")
	ErrInvalidTransition      = errors.New("invalid subscription transition")
	ErrRenewalAlreadyNotified = errors.New("renewal reminder already recorded")
	ErrUpsertRetriesExhausted = errors.New("upsert did not converge")
	ErrMissingTenantID        = errors.New("tenant ID is required")

	// Provider-specific errors
	ErrMissingWebhookSecret      = errors.New("billing provider webhook secret is required")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrInvalidWebhookPayload     = errors.New("invalid webhook payload")
	ErrUnsupportedWebhookEvent   = errors.New("unsupported webhook event")
	ErrStaleWebhookEvent         = errors.New("webhook event older than the last applied one")
)

// Unique constraints of the subscriptions table.
const (
	ConstraintTenantID   = "subscriptions_tenant_id_key"
	ConstraintExternalID = "subscriptions_external_subscription_id_key"
)

// ErrorKind classifies store failures.
type ErrorKind int

const (
	// KindConflict is a unique-constraint collision; the repository recovers from it where it can.
	KindConflict ErrorKind = iota + 1
	// KindUnavailable means the store could not be reached; retry later.
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// RepositoryError is the typed store failure. It matches ErrRepositoryConflict
// or ErrRepositoryUnavailable with errors.Is, depending on Kind.
type RepositoryError struct {
	Op         string
	Kind       ErrorKind
	Constraint string // set for conflicts
	Err        error
}

func (e *RepositoryError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("subscription %s: %s on %s: %v", e.Op, e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("subscription %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

func (e *RepositoryError) Is(target error) bool {
	switch target {
	case ErrRepositoryConflict:
		return e.Kind == KindConflict
	case ErrRepositoryUnavailable:
		return e.Kind == KindUnavailable
	}
	return false
}

// IsConflict reports whether err is a repository conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrRepositoryConflict) }

// IsUnavailable reports whether err means the store could not be reached.
func IsUnavailable(err error) bool { return errors.Is(err, ErrRepositoryUnavailable) }

func conflict(op, constraint string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Kind: KindConflict, Constraint: constraint, Err: err}
}

func unavailable(op string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Kind: KindUnavailable, Err: err}
}

func conflictOn(err error) string {
	var rerr *RepositoryError
	if errors.As(err, &rerr) && rerr.Kind == KindConflict {
		return rerr.Constraint
	}
	return ""
}
