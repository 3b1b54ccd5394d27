package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planwarden/handler"
	"github.com/dmitrymomot/planwarden/pkg/access"
	"github.com/dmitrymomot/planwarden/pkg/api"
	"github.com/dmitrymomot/planwarden/pkg/httpserver"
	"github.com/dmitrymomot/planwarden/pkg/notify"
	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/schedule"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
	"github.com/dmitrymomot/planwarden/pkg/usage"
)

const token = "internal-s3cret"

var now = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

type fakeSweeper struct {
	result  notify.SweepResult
	err     error
	block   chan struct{}
	entered chan struct{}
	checked atomic.Int32
}

func (f *fakeSweeper) ScanAndNotify(context.Context) (notify.SweepResult, error) {
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeSweeper) CheckAndNotify(context.Context, uuid.UUID) (bool, error) {
	f.checked.Add(1)
	return true, f.err
}

type testServer struct {
	handler http.Handler
	repo    *subscription.Repository
	store   *subscription.MemoryStore
	trial   *fakeSweeper
	runner  *schedule.Runner
	hooks   atomic.Int32
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store: subscription.NewMemoryStore(),
		trial: &fakeSweeper{result: notify.SweepResult{Checked: 3, Sent: 1, Skipped: 2}},
	}
	clock := func() time.Time { return now }
	ts.repo = subscription.NewRepository(ts.store,
		subscription.TrialConfig{ShortDuration: time.Hour, LongDuration: 14 * 24 * time.Hour},
		subscription.WithClock(clock),
	)

	reg := usage.NewRegistry()
	reg.Register(plan.ResourceCustomers, func(context.Context, uuid.UUID) (int64, error) { return 42, nil })
	catalog := plan.NewDefaultCatalog()
	eval := access.NewEvaluator(ts.repo, catalog, usage.NewCounter(reg), tenant.NewMemoryStore(), access.WithClock(clock))

	ts.runner = schedule.NewRunner()
	require.NoError(t, ts.runner.Add("trial", schedule.Every(time.Hour), func(ctx context.Context) error {
		_, err := ts.trial.ScanAndNotify(ctx)
		return err
	}))

	promReg := prometheus.NewRegistry()
	metrics := notify.NewMetrics(promReg)
	metrics.Sent.WithLabelValues(string(notify.KindTrialFinal)).Inc()

	ts.handler = api.NewRouter(api.Config{
		Evaluator: eval,
		Catalog:   catalog,
		Renewals:  ts.repo,
		Sweepers:  map[string]api.Sweeper{"trial": ts.trial},
		Jobs:      ts.runner,
		Webhooks: map[string]http.Handler{
			"paddle": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				ts.hooks.Add(1)
				w.WriteHeader(http.StatusOK)
			}),
		},
		Readiness:     map[string]httpserver.Check{"store": func(context.Context) error { return nil }},
		Metrics:       promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		InternalToken: token,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, handler.JSONResponse) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if strings.HasPrefix(path, "/internal") {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)

	var env handler.JSONResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && strings.HasPrefix(path, "/internal") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func field(t *testing.T, env handler.JSONResponse, key string) any {
	t.Helper()
	data, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return data[key]
}

func TestHealthAndWebhooks(t *testing.T) {
	t.Parallel()
	ts := newServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "planwarden_notify")

	rec, _ = ts.do(t, http.MethodPost, "/webhooks/paddle", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), ts.hooks.Load())

	rec, _ = ts.do(t, http.MethodPost, "/webhooks/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInternalRequiresToken(t *testing.T) {
	t.Parallel()
	ts := newServer(t)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/access/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInternalClosedWithoutConfiguredToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := subscription.NewMemoryStore()
	repo := subscription.NewRepository(store,
		subscription.TrialConfig{ShortDuration: time.Hour, LongDuration: 14 * 24 * time.Hour},
		subscription.WithClock(func() time.Time { return now }),
	)
	id := uuid.New()
	end := now.Add(2 * time.Hour)
	_, err := repo.Upsert(ctx, id, subscription.Patch{
		PlanType:         subscription.Ptr(plan.TypeProfessional),
		Status:           subscription.Ptr(subscription.StatusActive),
		CurrentPeriodEnd: &end,
	})
	require.NoError(t, err)
	_, err = repo.MarkRenewalNotified(ctx, id, now)
	require.NoError(t, err)

	h := api.NewRouter(api.Config{Renewals: repo})

	for _, auth := range []string{"", "Bearer ", "Bearer anything"} {
		req := httptest.NewRequest(http.MethodPost, "/internal/tenants/"+id.String()+"/renewal/approve",
			strings.NewReader(`{"next_period_end":"2030-01-01T00:00:00Z"}`))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "authorization %q", auth)
	}

	sub, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, sub.PendingRenewal, "renewal stays pending")
	assert.Equal(t, end, *sub.CurrentPeriodEnd)
}

func TestAccessRoutes(t *testing.T) {
	t.Parallel()
	ts := newServer(t)
	id := uuid.New()

	rec, env := ts.do(t, http.MethodGet, "/internal/access/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, field(t, env, "allowed"))
	assert.Equal(t, string(access.BasisTrial), field(t, env, "basis"))

	rec, env = ts.do(t, http.MethodGet, "/internal/access/"+id.String()+"/resources/customers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, field(t, env, "allowed"))
	assert.InDelta(t, 42, field(t, env, "current_count"), 0)
	assert.InDelta(t, 50, field(t, env, "max_limit"), 0)

	rec, _ = ts.do(t, http.MethodGet, "/internal/access/"+id.String()+"/resources/invoices", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = ts.do(t, http.MethodGet, "/internal/access/"+id.String()+"/features/inventory", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, field(t, env, "enabled"))

	rec, env = ts.do(t, http.MethodGet, "/internal/tenants/"+id.String()+"/usage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 42, field(t, env, "customers"), 0)

	rec, _ = ts.do(t, http.MethodGet, "/internal/access/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSweepRoutes(t *testing.T) {
	t.Parallel()

	t.Run("runs the sweep", func(t *testing.T) {
		t.Parallel()
		ts := newServer(t)
		rec, env := ts.do(t, http.MethodPost, "/internal/sweeps/trial", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.InDelta(t, 3, field(t, env, "checked"), 0)
		assert.InDelta(t, 1, field(t, env, "sent"), 0)
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		ts := newServer(t)
		rec, env := ts.do(t, http.MethodPost, "/internal/sweeps/weekly", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "unknown_notification_kind", env.Error.Code)
	})

	t.Run("conflicts with a running sweep", func(t *testing.T) {
		t.Parallel()
		ts := newServer(t)
		ts.trial.block = make(chan struct{})
		ts.trial.entered = make(chan struct{})

		done := make(chan error, 1)
		go func() { done <- ts.runner.RunNow(context.Background(), "trial") }()
		<-ts.trial.entered

		rec, env := ts.do(t, http.MethodPost, "/internal/sweeps/trial", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "sweep_already_running", env.Error.Code)

		close(ts.trial.block)
		require.NoError(t, <-done)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		ts := newServer(t)
		ts.trial.err = errors.New("connection refused")
		rec, _ := ts.do(t, http.MethodPost, "/internal/sweeps/trial", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("on-demand check", func(t *testing.T) {
		t.Parallel()
		ts := newServer(t)
		rec, env := ts.do(t, http.MethodPost, "/internal/tenants/"+uuid.NewString()+"/notifications/trial", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, field(t, env, "sent"))
		assert.Equal(t, int32(1), ts.trial.checked.Load())
	})
}

func TestApproveRenewalRoute(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := newServer(t)

	id := uuid.New()
	end := now.Add(2 * time.Hour)
	_, err := ts.repo.Upsert(ctx, id, subscription.Patch{
		PlanType:         subscription.Ptr(plan.TypeProfessional),
		Status:           subscription.Ptr(subscription.StatusActive),
		CurrentPeriodEnd: &end,
	})
	require.NoError(t, err)

	path := "/internal/tenants/" + id.String() + "/renewal/approve"
	next := `{"next_period_end":"2026-11-16T12:00:00Z"}`

	rec, env := ts.do(t, http.MethodPost, path, next)
	assert.Equal(t, http.StatusConflict, rec.Code, "no reminder sent yet")
	require.NotNil(t, env.Error)
	assert.Equal(t, "renewal_not_pending", env.Error.Code)

	_, err = ts.repo.MarkRenewalNotified(ctx, id, now)
	require.NoError(t, err)

	rec, _ = ts.do(t, http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, env = ts.do(t, http.MethodPost, path, next)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, field(t, env, "pending_renewal"))
	assert.Equal(t, "2026-11-16T12:00:00Z", field(t, env, "current_period_end"))

	rec, _ = ts.do(t, http.MethodPost, "/internal/tenants/"+uuid.NewString()+"/renewal/approve", next)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComparePlansRoute(t *testing.T) {
	t.Parallel()
	ts := newServer(t)

	rec, env := ts.do(t, http.MethodGet, "/internal/plans/starter/compare/professional", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, field(t, env, "new_features"), "analytics")

	rec, _ = ts.do(t, http.MethodGet, "/internal/plans/starter/compare/platinum", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
