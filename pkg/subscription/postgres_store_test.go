package subscription_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
)

// failingDB answers every statement with err.
type failingDB struct{ err error }

func (f failingDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, f.err
}

func (f failingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, f.err
}

func (f failingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{f.err}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func TestPostgresStoreErrorClassification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sub := &subscription.Subscription{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		PlanType: plan.TypeTrial,
		Status:   subscription.StatusTrial,
	}

	t.Run("check violation is not retryable", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewPostgresStore(failingDB{&pgconn.PgError{
			Code:           "23514",
			ConstraintName: "subscriptions_trial_ends_at_check",
		}})

		err := store.Insert(ctx, sub)
		require.Error(t, err)
		assert.False(t, subscription.IsUnavailable(err))
		assert.False(t, subscription.IsConflict(err))

		var pgErr *pgconn.PgError
		assert.ErrorAs(t, err, &pgErr)
	})

	t.Run("decode failure is not retryable", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewPostgresStore(failingDB{fmt.Errorf("scan: %w", &json.SyntaxError{})})

		_, err := store.FindByTenant(ctx, sub.TenantID)
		require.Error(t, err)
		assert.False(t, subscription.IsUnavailable(err))
		assert.NotErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("connection loss is unavailable", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewPostgresStore(failingDB{&pgconn.PgError{Code: "08006"}})

		err := store.Update(ctx, sub)
		assert.True(t, subscription.IsUnavailable(err))

		_, err = store.ListByStatus(ctx, subscription.StatusActive)
		assert.True(t, subscription.IsUnavailable(err))
	})

	t.Run("deadline is unavailable", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewPostgresStore(failingDB{context.DeadlineExceeded})

		_, err := store.ListRenewalsDue(ctx, time.Now(), time.Now().Add(time.Hour))
		assert.True(t, subscription.IsUnavailable(err))
	})

	t.Run("duplicate key is a conflict", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewPostgresStore(failingDB{&pgconn.PgError{
			Code:           "23505",
			ConstraintName: subscription.ConstraintTenantID,
		}})

		err := store.Insert(ctx, sub)
		assert.True(t, subscription.IsConflict(err))
		assert.False(t, subscription.IsUnavailable(err))
	})

	t.Run("no rows is not found", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewPostgresStore(failingDB{pgx.ErrNoRows})

		_, err := store.FindByExternalID(ctx, "sub_missing")
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})
}
