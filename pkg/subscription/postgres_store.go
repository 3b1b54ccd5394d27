package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/planwarden/pkg/pg"
	"github.com/dmitrymomot/planwarden/pkg/plan"
)

const subscriptionColumns = `id, tenant_id, plan_type, status,
	external_subscription_id, external_customer_id, external_price_id,
	current_period_start, current_period_end, trial_ends_at, canceled_at,
	pending_renewal, renewal_notification_sent_at, metadata, created_at, updated_at`

// PostgresStore keeps subscriptions in the subscriptions table.
type PostgresStore struct {
	db pg.DB
}

// NewPostgresStore returns a Store over db, which may be a pool or a transaction.
func NewPostgresStore(db pg.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	row := s.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id = $1`, tenantID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, classify("find", err)
	}
	return sub, nil
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*Subscription, error) {
	row := s.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE external_subscription_id = $1`, externalID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, classify("find", err)
	}
	return sub, nil
}

func (s *PostgresStore) Insert(ctx context.Context, sub *Subscription) error {
	meta, err := marshalMetadata(sub.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		sub.ID, sub.TenantID, string(sub.PlanType), string(sub.Status),
		nullString(sub.ExternalSubscriptionID), nullString(sub.ExternalCustomerID), nullString(sub.ExternalPriceID),
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEndsAt, sub.CanceledAt,
		sub.PendingRenewal, sub.RenewalNotificationSentAt, meta, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return classify("insert", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, sub *Subscription) error {
	meta, err := marshalMetadata(sub.Metadata)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE subscriptions SET
			tenant_id = $2, plan_type = $3, status = $4,
			external_subscription_id = $5, external_customer_id = $6, external_price_id = $7,
			current_period_start = $8, current_period_end = $9, trial_ends_at = $10, canceled_at = $11,
			pending_renewal = $12, renewal_notification_sent_at = $13, metadata = $14, updated_at = $15
		WHERE id = $1`,
		sub.ID, sub.TenantID, string(sub.PlanType), string(sub.Status),
		nullString(sub.ExternalSubscriptionID), nullString(sub.ExternalCustomerID), nullString(sub.ExternalPriceID),
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEndsAt, sub.CanceledAt,
		sub.PendingRenewal, sub.RenewalNotificationSentAt, meta, sub.UpdatedAt,
	)
	if err != nil {
		return classify("update", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// MarkRenewalNotified is the SQL form of RenewalReminderSent: one
// conditional UPDATE, so concurrent senders cannot both succeed.
func (s *PostgresStore) MarkRenewalNotified(ctx context.Context, tenantID uuid.UUID, at, notSince time.Time) (*Subscription, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE subscriptions SET
			pending_renewal = TRUE,
			renewal_notification_sent_at = $2,
			updated_at = $2
		WHERE tenant_id = $1
			AND status = 'active'
			AND NOT pending_renewal
			AND (renewal_notification_sent_at IS NULL OR renewal_notification_sent_at < $3)
		RETURNING `+subscriptionColumns,
		tenantID, at, notSince,
	)
	sub, err := scanSubscription(row)
	if err == nil {
		return sub, nil
	}
	if !pg.IsNotFoundError(err) {
		return nil, classify("mark_renewal_notified", err)
	}

	if _, err := s.FindByTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return nil, ErrRenewalAlreadyNotified
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...Status) ([]*Subscription, error) {
	raw := make([]string, len(statuses))
	for i, st := range statuses {
		raw[i] = string(st)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE status = ANY($1) ORDER BY created_at, id`, raw)
	if err != nil {
		return nil, classify("list", err)
	}
	return collect(rows)
}

// ListRenewalsDue returns active, non-pending rows whose period ends in [from, to).
func (s *PostgresStore) ListRenewalsDue(ctx context.Context, from, to time.Time) ([]*Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'active' AND NOT pending_renewal
			AND current_period_end >= $1 AND current_period_end < $2
		ORDER BY created_at, id`, from, to)
	if err != nil {
		return nil, classify("list", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Subscription, error) {
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, classify("list", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list", err)
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub                           Subscription
		planType, status              string
		extSub, extCustomer, extPrice *string
		meta                          []byte
	)
	err := row.Scan(
		&sub.ID, &sub.TenantID, &planType, &status,
		&extSub, &extCustomer, &extPrice,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.TrialEndsAt, &sub.CanceledAt,
		&sub.PendingRenewal, &sub.RenewalNotificationSentAt, &meta, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Unknown values are kept verbatim; Lifecycle and the plan catalog log and fall back.
	sub.PlanType = plan.Type(planType)
	sub.Status = Status(status)
	sub.ExternalSubscriptionID = deref(extSub)
	sub.ExternalCustomerID = deref(extCustomer)
	sub.ExternalPriceID = deref(extPrice)

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &sub.Metadata); err != nil {
			return nil, fmt.Errorf("decode subscription metadata: %w", err)
		}
		if len(sub.Metadata) == 0 {
			sub.Metadata = nil
		}
	}
	return &sub, nil
}

// classify maps driver errors onto the repository error taxonomy. Errors
// that are neither conflicts nor outages (check violations, bad input,
// decode failures) keep their cause and are not retryable.
func classify(op string, err error) error {
	switch {
	case pg.IsNotFoundError(err):
		return ErrSubscriptionNotFound
	case pg.IsDuplicateKeyError(err):
		return conflict(op, pg.ConstraintName(err), err)
	case pg.IsUnavailableError(err):
		return unavailable(op, err)
	default:
		return fmt.Errorf("subscription %s: %w", op, err)
	}
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
