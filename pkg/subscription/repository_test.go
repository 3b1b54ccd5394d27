package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planwarden/pkg/audit"
	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
)

func newRepo(t *testing.T, trial subscription.TrialConfig) (*subscription.Repository, *subscription.MemoryStore, *audit.MemoryStorage) {
	t.Helper()
	store := subscription.NewMemoryStore()
	events := audit.NewMemoryStorage()
	repo := subscription.NewRepository(store, trial,
		subscription.WithClock(func() time.Time { return now }),
		subscription.WithAudit(audit.NewLogger(events)),
	)
	return repo, store, events
}

var longTrial = subscription.TrialConfig{ShortDuration: time.Hour, LongDuration: 14 * 24 * time.Hour}

func TestTrialConfigDuration(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 14*24*time.Hour, longTrial.Duration())

	short := longTrial
	short.ShortMode = true
	assert.Equal(t, time.Hour, short.Duration())
}

func TestRepositoryCreateTrial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates a trial ending after the configured duration", func(t *testing.T) {
		t.Parallel()
		repo, _, events := newRepo(t, longTrial)
		tenantID := uuid.New()

		sub, err := repo.CreateTrial(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrial, sub.Status)
		assert.Equal(t, plan.TypeTrial, sub.PlanType)
		require.NotNil(t, sub.TrialEndsAt)
		assert.Equal(t, now.Add(14*24*time.Hour), *sub.TrialEndsAt)
		assert.Len(t, events.ByAction(audit.ActionTrialCreated), 1)
	})

	t.Run("short mode", func(t *testing.T) {
		t.Parallel()
		short := longTrial
		short.ShortMode = true
		repo, _, _ := newRepo(t, short)

		sub, err := repo.CreateTrial(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), *sub.TrialEndsAt)
	})

	t.Run("existing row is returned unchanged", func(t *testing.T) {
		t.Parallel()
		repo, store, events := newRepo(t, longTrial)
		tenantID := uuid.New()

		_, err := repo.Upsert(ctx, tenantID, subscription.Patch{
			PlanType: subscription.Ptr(plan.TypeProfessional),
			Status:   subscription.Ptr(subscription.StatusActive),
		})
		require.NoError(t, err)

		sub, err := repo.CreateTrial(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, plan.TypeProfessional, sub.PlanType)
		assert.Equal(t, 1, store.Len())
		assert.Empty(t, events.ByAction(audit.ActionTrialCreated))
	})

	t.Run("concurrent callers converge on one row", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		tenantID := uuid.New()

		var (
			wg      sync.WaitGroup
			results = make([]*subscription.Subscription, 8)
			errs    = make([]error, 8)
		)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				// Each caller sees a different clock; only the winner's trial end survives.
				at := now.Add(time.Duration(i) * time.Second)
				repo := subscription.NewRepository(store, longTrial,
					subscription.WithClock(func() time.Time { return at }))
				results[i], errs[i] = repo.CreateTrial(ctx, tenantID)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, store.Len())
		for i := range results {
			require.NoError(t, errs[i])
			assert.Equal(t, *results[0].TrialEndsAt, *results[i].TrialEndsAt)
			assert.Equal(t, results[0].ID, results[i].ID)
		}
	})

	t.Run("nil tenant", func(t *testing.T) {
		t.Parallel()
		repo, _, _ := newRepo(t, longTrial)
		_, err := repo.CreateTrial(ctx, uuid.Nil)
		assert.ErrorIs(t, err, subscription.ErrMissingTenantID)
	})

	t.Run("store outage is reported as unavailable", func(t *testing.T) {
		t.Parallel()
		repo, store, _ := newRepo(t, longTrial)
		store.SetErr(errors.New("connection refused"))

		_, err := repo.CreateTrial(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrRepositoryUnavailable)
		assert.True(t, subscription.IsUnavailable(err))
	})
}

func TestRepositoryUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("insert takes status from the patch", func(t *testing.T) {
		t.Parallel()
		repo, _, _ := newRepo(t, longTrial)
		end := now.AddDate(0, 1, 0)

		sub, err := repo.Upsert(ctx, uuid.New(), subscription.Patch{
			PlanType:               subscription.Ptr(plan.TypeStarter),
			Status:                 subscription.Ptr(subscription.StatusActive),
			ExternalSubscriptionID: subscription.Ptr("sub_1"),
			CurrentPeriodEnd:       &end,
		})
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Nil(t, sub.TrialEndsAt)
		assert.Equal(t, end, *sub.CurrentPeriodEnd)
	})

	t.Run("updates the existing row", func(t *testing.T) {
		t.Parallel()
		repo, store, _ := newRepo(t, longTrial)
		tenantID := uuid.New()

		trial, err := repo.CreateTrial(ctx, tenantID)
		require.NoError(t, err)

		sub, err := repo.Upsert(ctx, tenantID, subscription.Patch{
			PlanType: subscription.Ptr(plan.TypeProfessional),
			Status:   subscription.Ptr(subscription.StatusActive),
			Metadata: map[string]any{"source": "webhook"},
		})
		require.NoError(t, err)
		assert.Equal(t, trial.ID, sub.ID)
		assert.Equal(t, plan.TypeProfessional, sub.PlanType)
		assert.Nil(t, sub.TrialEndsAt, "trial end is cleared once the row leaves trial")
		assert.Equal(t, "webhook", sub.Metadata["source"])
		assert.Equal(t, 1, store.Len())
	})

	t.Run("leaving active clears pending renewal", func(t *testing.T) {
		t.Parallel()
		repo, _, _ := newRepo(t, longTrial)
		tenantID := uuid.New()

		_, err := repo.Upsert(ctx, tenantID, subscription.Patch{
			Status:           subscription.Ptr(subscription.StatusActive),
			CurrentPeriodEnd: subscription.Ptr(now.Add(time.Hour)),
		})
		require.NoError(t, err)
		_, err = repo.MarkRenewalNotified(ctx, tenantID, now)
		require.NoError(t, err)

		sub, err := repo.Upsert(ctx, tenantID, subscription.Patch{
			Status: subscription.Ptr(subscription.StatusCanceled),
		})
		require.NoError(t, err)
		assert.False(t, sub.PendingRenewal)
	})

	t.Run("external id held by another tenant is reassigned", func(t *testing.T) {
		t.Parallel()
		repo, store, events := newRepo(t, longTrial)
		tenantA, tenantB := uuid.New(), uuid.New()

		first, err := repo.Upsert(ctx, tenantA, subscription.Patch{
			Status:                 subscription.Ptr(subscription.StatusActive),
			ExternalSubscriptionID: subscription.Ptr("sub_shared"),
		})
		require.NoError(t, err)

		sub, err := repo.Upsert(ctx, tenantB, subscription.Patch{
			PlanType:               subscription.Ptr(plan.TypeEnterprise),
			Status:                 subscription.Ptr(subscription.StatusActive),
			ExternalSubscriptionID: subscription.Ptr("sub_shared"),
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, sub.ID)
		assert.Equal(t, tenantB, sub.TenantID)
		assert.Equal(t, plan.TypeEnterprise, sub.PlanType)
		assert.Equal(t, 1, store.Len())

		_, err = repo.Get(ctx, tenantA)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

		byExt, err := repo.GetByExternalID(ctx, "sub_shared")
		require.NoError(t, err)
		assert.Equal(t, tenantB, byExt.TenantID)

		recovered := events.ByAction(audit.ActionExternalIDRecovered)
		require.Len(t, recovered, 1)
		assert.Equal(t, tenantA.String(), recovered[0].Metadata["previous_tenant_id"])
	})

	t.Run("external id collision on update is a conflict", func(t *testing.T) {
		t.Parallel()
		repo, _, _ := newRepo(t, longTrial)
		tenantA, tenantB := uuid.New(), uuid.New()

		_, err := repo.Upsert(ctx, tenantA, subscription.Patch{ExternalSubscriptionID: subscription.Ptr("sub_a")})
		require.NoError(t, err)
		_, err = repo.CreateTrial(ctx, tenantB)
		require.NoError(t, err)

		_, err = repo.Upsert(ctx, tenantB, subscription.Patch{ExternalSubscriptionID: subscription.Ptr("sub_a")})
		require.Error(t, err)
		assert.ErrorIs(t, err, subscription.ErrRepositoryConflict)

		var repoErr *subscription.RepositoryError
		require.ErrorAs(t, err, &repoErr)
		assert.Equal(t, subscription.ConstraintExternalID, repoErr.Constraint)
	})

	t.Run("store outage", func(t *testing.T) {
		t.Parallel()
		repo, store, _ := newRepo(t, longTrial)
		store.SetErr(errors.New("timeout"))

		_, err := repo.Upsert(ctx, uuid.New(), subscription.Patch{})
		assert.ErrorIs(t, err, subscription.ErrRepositoryUnavailable)
	})
}

func TestRepositoryRenewal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	activeEndingToday := func(t *testing.T, repo *subscription.Repository) uuid.UUID {
		t.Helper()
		tenantID := uuid.New()
		_, err := repo.Upsert(ctx, tenantID, subscription.Patch{
			Status:           subscription.Ptr(subscription.StatusActive),
			CurrentPeriodEnd: subscription.Ptr(now.Add(6 * time.Hour)),
		})
		require.NoError(t, err)
		return tenantID
	}

	t.Run("only the first reminder of the day is recorded", func(t *testing.T) {
		t.Parallel()
		repo, _, events := newRepo(t, longTrial)
		tenantID := activeEndingToday(t, repo)

		sub, err := repo.MarkRenewalNotified(ctx, tenantID, now)
		require.NoError(t, err)
		assert.True(t, sub.PendingRenewal)
		assert.Equal(t, now, *sub.RenewalNotificationSentAt)

		_, err = repo.MarkRenewalNotified(ctx, tenantID, now)
		assert.ErrorIs(t, err, subscription.ErrRenewalAlreadyNotified)
		assert.Len(t, events.ByAction(audit.ActionRenewalNotified), 1)
	})

	t.Run("reminder day follows the caller's timezone", func(t *testing.T) {
		t.Parallel()
		east := time.FixedZone("UTC+10", 10*60*60)
		clock := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC).In(east)
		repo := subscription.NewRepository(subscription.NewMemoryStore(), longTrial,
			subscription.WithClock(func() time.Time { return clock }),
		)
		tenantID := uuid.New()
		_, err := repo.Upsert(ctx, tenantID, subscription.Patch{
			Status:           subscription.Ptr(subscription.StatusActive),
			CurrentPeriodEnd: subscription.Ptr(clock.Add(time.Hour)),
		})
		require.NoError(t, err)

		_, err = repo.MarkRenewalNotified(ctx, tenantID, clock.UTC())
		require.NoError(t, err)
		_, err = repo.ApproveRenewal(ctx, tenantID, clock.AddDate(0, 0, 1))
		require.NoError(t, err)

		// Same local day in UTC+10, but the next day in UTC.
		clock = time.Date(2026, 10, 17, 1, 0, 0, 0, time.UTC).In(east)
		sub, err := repo.MarkRenewalNotified(ctx, tenantID, clock.UTC())
		require.NoError(t, err)
		assert.True(t, sub.PendingRenewal)

		_, err = repo.ApproveRenewal(ctx, tenantID, clock.AddDate(0, 0, 2))
		require.NoError(t, err)
		_, err = repo.MarkRenewalNotified(ctx, tenantID, clock.UTC())
		assert.ErrorIs(t, err, subscription.ErrRenewalAlreadyNotified)
	})

	t.Run("due list covers the calendar day", func(t *testing.T) {
		t.Parallel()
		repo, _, _ := newRepo(t, longTrial)
		tenantID := activeEndingToday(t, repo)

		_, err := repo.Upsert(ctx, uuid.New(), subscription.Patch{
			Status:           subscription.Ptr(subscription.StatusActive),
			CurrentPeriodEnd: subscription.Ptr(now.AddDate(0, 0, 2)),
		})
		require.NoError(t, err)

		due, err := repo.ListRenewalsDue(ctx, now)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, tenantID, due[0].TenantID)

		_, err = repo.MarkRenewalNotified(ctx, tenantID, now)
		require.NoError(t, err)

		due, err = repo.ListRenewalsDue(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, due, "pending rows are not due again")
	})

	t.Run("approval clears pending and extends the period", func(t *testing.T) {
		t.Parallel()
		repo, _, events := newRepo(t, longTrial)
		tenantID := activeEndingToday(t, repo)

		_, err := repo.MarkRenewalNotified(ctx, tenantID, now)
		require.NoError(t, err)

		next := now.AddDate(0, 1, 0)
		sub, err := repo.ApproveRenewal(ctx, tenantID, next)
		require.NoError(t, err)
		assert.False(t, sub.PendingRenewal)
		assert.Equal(t, next, *sub.CurrentPeriodEnd)
		assert.Len(t, events.ByAction(audit.ActionRenewalApproved), 1)
	})

	t.Run("approval without reminder is rejected", func(t *testing.T) {
		t.Parallel()
		repo, _, _ := newRepo(t, longTrial)
		tenantID := activeEndingToday(t, repo)

		_, err := repo.ApproveRenewal(ctx, tenantID, now.AddDate(0, 1, 0))
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
	})
}

func TestSameDay(t *testing.T) {
	t.Parallel()
	assert.True(t, subscription.SameDay(now, now.Add(13*time.Hour)))
	assert.False(t, subscription.SameDay(now, now.Add(14*time.Hour)))
}
