package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planwarden/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("sweep", slog.Int("checked", 3), slog.Int("sent", 1))
	require.Equal(t, "sweep", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "checked", g[0].Key)
	assert.Equal(t, "sent", g[1].Key)
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want any
	}{
		{"tenant", logger.TenantID("t-1"), "tenant_id", "t-1"},
		{"plan", logger.PlanType("starter"), "plan_type", "starter"},
		{"status", logger.Status("active"), "status", "active"},
		{"kind", logger.Kind("renewal"), "kind", "renewal"},
		{"resource", logger.Resource("customers"), "resource", "customers"},
		{"external id", logger.ExternalID("sub_1"), "external_id", "sub_1"},
		{"component", logger.Component("notify"), "component", "notify"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.Any())
		})
	}

	assert.True(t, logger.TenantID(nil).Equal(slog.Attr{}))
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
}
