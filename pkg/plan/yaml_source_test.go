package plan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planwarden/pkg/plan"
)

const catalogYAML = `
plans:
  trial:
    limits: {customers: 10, workers: 1, products: 5, locations: 1}
    features: [queue_basic]
  starter:
    name: Starter
    limits: {customers: 100, workers: 3, products: 50, locations: 1}
    features: [queue_basic, inventory]
  professional:
    name: Pro
    limits: {customers: 1000, workers: 10, products: 500, locations: 3}
    features: [queue_basic, analytics]
  enterprise:
    name: Enterprise
    limits: {customers: unlimited, workers: unlimited, products: -1, locations: unlimited}
    features: [white_label]
`

func TestYAMLSource(t *testing.T) {
	t.Parallel()

	t.Run("loads a full catalog", func(t *testing.T) {
		t.Parallel()

		catalog, err := plan.NewCatalog(context.Background(), plan.NewYAMLSource([]byte(catalogYAML)))
		require.NoError(t, err)

		trial := catalog.LimitsFor(plan.TypeTrial)
		assert.Equal(t, "trial", trial.Name)
		assert.Equal(t, int64(10), trial.Limits[plan.ResourceCustomers])
		assert.True(t, catalog.IsWithinLimit(plan.TypeEnterprise, plan.ResourceProducts, 1<<40))
		assert.True(t, catalog.HasFeature(plan.TypeProfessional, plan.FeatureAnalytics))
	})

	t.Run("from file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

		src, err := plan.NewYAMLFileSource(path)
		require.NoError(t, err)

		plans, err := src.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, plans, 4)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := plan.NewYAMLFileSource(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, plan.ErrFailedToLoadPlans)
	})

	t.Run("unknown tier", func(t *testing.T) {
		t.Parallel()

		_, err := plan.NewYAMLSource([]byte("plans:\n  gold:\n    limits: {customers: 1}\n")).Load(context.Background())
		assert.ErrorIs(t, err, plan.ErrUnknownPlanType)
	})

	t.Run("unknown resource", func(t *testing.T) {
		t.Parallel()

		_, err := plan.NewYAMLSource([]byte("plans:\n  trial:\n    limits: {seats: 1}\n")).Load(context.Background())
		assert.ErrorIs(t, err, plan.ErrUnknownResource)
	})

	t.Run("bad limit", func(t *testing.T) {
		t.Parallel()

		_, err := plan.NewYAMLSource([]byte("plans:\n  trial:\n    limits: {customers: lots}\n")).Load(context.Background())
		assert.ErrorIs(t, err, plan.ErrInvalidLimitValue)
	})
}
