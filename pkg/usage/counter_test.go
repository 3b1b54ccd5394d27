package usage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planwarden/pkg/audit"
	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/usage"
)

func fixed(n int64) usage.CounterFunc {
	return func(context.Context, uuid.UUID) (int64, error) { return n, nil }
}

func failing(context.Context, uuid.UUID) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestCounter_CountsFor(t *testing.T) {
	t.Parallel()

	t.Run("all kinds", func(t *testing.T) {
		t.Parallel()

		reg := usage.NewRegistry()
		reg.Register(plan.ResourceCustomers, fixed(12))
		reg.Register(plan.ResourceWorkers, fixed(3))
		reg.Register(plan.ResourceProducts, fixed(40))
		reg.Register(plan.ResourceLocations, fixed(1))

		snap := usage.NewCounter(reg).CountsFor(context.Background(), uuid.New())

		assert.Equal(t, usage.Snapshot{Customers: 12, Workers: 3, Products: 40, Locations: 1}, snap)
		assert.False(t, snap.Degraded())
		assert.Equal(t, int64(40), snap.Get(plan.ResourceProducts))
	})

	t.Run("one failing kind reports zero", func(t *testing.T) {
		t.Parallel()

		storage := audit.NewMemoryStorage()
		reg := usage.NewRegistry()
		reg.Register(plan.ResourceCustomers, fixed(12))
		reg.Register(plan.ResourceWorkers, failing)
		reg.Register(plan.ResourceProducts, fixed(40))

		tenantID := uuid.New()
		snap := usage.NewCounter(reg, usage.WithAudit(audit.NewLogger(storage))).CountsFor(context.Background(), tenantID)

		assert.Equal(t, int64(12), snap.Customers)
		assert.Equal(t, int64(0), snap.Workers)
		assert.Equal(t, int64(40), snap.Products)
		assert.Equal(t, []plan.Resource{plan.ResourceWorkers}, snap.Failed)
		assert.True(t, snap.Degraded())

		events := storage.ByAction(audit.ActionUsageCountFailed)
		require.Len(t, events, 1)
		assert.Equal(t, tenantID.String(), events[0].TenantID)
		assert.Equal(t, "workers", events[0].ResourceID)
	})

	t.Run("every kind failing", func(t *testing.T) {
		t.Parallel()

		reg := usage.NewRegistry()
		for _, res := range plan.Resources {
			reg.Register(res, failing)
		}

		snap := usage.NewCounter(reg).CountsFor(context.Background(), uuid.New())
		assert.Len(t, snap.Failed, len(plan.Resources))
		assert.Zero(t, snap.Customers+snap.Workers+snap.Products+snap.Locations)
	})
}

func TestCounter_Count(t *testing.T) {
	t.Parallel()

	reg := usage.NewRegistry()
	reg.Register(plan.ResourceCustomers, fixed(7))
	reg.Register(plan.ResourceWorkers, failing)
	c := usage.NewCounter(reg)

	n, err := c.Count(context.Background(), uuid.New(), plan.ResourceCustomers)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = c.Count(context.Background(), uuid.New(), plan.ResourceWorkers)
	assert.ErrorIs(t, err, usage.ErrCountFailed)

	_, err = c.Count(context.Background(), uuid.New(), plan.ResourceProducts)
	assert.ErrorIs(t, err, usage.ErrNoCounterRegistered)

	n, ok := c.CountOrZero(context.Background(), uuid.New(), plan.ResourceWorkers)
	assert.False(t, ok)
	assert.Zero(t, n)
}

func TestRegistry_RegisterNilPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { usage.NewRegistry().Register(plan.ResourceCustomers, nil) })
}

func TestDefaultTables(t *testing.T) {
	t.Parallel()

	tables := usage.DefaultTables()
	for _, res := range plan.Resources {
		tbl, ok := tables[res]
		require.True(t, ok, res)
		assert.Equal(t, "admin_id", tbl.OwnerColumn)
	}
}
