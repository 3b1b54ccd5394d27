package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/handler"
	"github.com/dmitrymomot/planwarden/pkg/access"
	"github.com/dmitrymomot/planwarden/pkg/httpserver"
	"github.com/dmitrymomot/planwarden/pkg/logger"
	"github.com/dmitrymomot/planwarden/pkg/notify"
	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/schedule"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
)

// Sweeper is one notification scheduler.
type Sweeper interface {
	ScanAndNotify(ctx context.Context) (notify.SweepResult, error)
	CheckAndNotify(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// JobGuard runs fn under the locks of the named periodic job.
// schedule.Runner satisfies it.
type JobGuard interface {
	Do(ctx context.Context, name string, fn schedule.Job) error
}

// Renewals is the operator side of the renewal approval step.
type Renewals interface {
	ApproveRenewal(ctx context.Context, tenantID uuid.UUID, nextPeriodEnd time.Time) (*subscription.Subscription, error)
}

// Config holds everything the router serves.
type Config struct {
	Evaluator *access.Evaluator
	Catalog   *plan.Catalog
	Renewals  Renewals
	// Sweepers by notification kind name: "trial", "renewal".
	Sweepers map[string]Sweeper
	Jobs     JobGuard
	// Webhooks by provider name, mounted at /webhooks/{provider}.
	Webhooks  map[string]http.Handler
	Readiness map[string]httpserver.Check
	Metrics   http.Handler
	// InternalToken guards /internal; empty rejects every /internal request.
	InternalToken string
	Logger        *slog.Logger
}

// NewRouter builds the HTTP surface.
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	h := &handlers{cfg: cfg, onError: handler.DefaultErrorHandler(cfg.Logger)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(cfg.Logger, 3*time.Second, cfg.Readiness))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	for provider, wh := range cfg.Webhooks {
		r.Method(http.MethodPost, "/webhooks/"+provider, wh)
	}

	r.Route("/internal", func(r chi.Router) {
		r.Use(handler.RequireToken(cfg.InternalToken))

		r.Post("/sweeps/{kind}", wrap(h.runSweep, h.onError))

		r.Get("/access/{tenant_id}", wrap(h.checkAccess, h.onError))
		r.Get("/access/{tenant_id}/resources/{resource}", wrap(h.checkResource, h.onError))
		r.Get("/access/{tenant_id}/features/{feature}", wrap(h.hasFeature, h.onError))

		r.Get("/tenants/{tenant_id}/usage", wrap(h.usage, h.onError))
		r.Post("/tenants/{tenant_id}/notifications/{kind}", wrap(h.notifyTenant, h.onError))
		r.Post("/tenants/{tenant_id}/renewal/approve", wrap(h.approveRenewal, h.onError))

		r.Get("/plans/{from}/compare/{to}", wrap(h.comparePlans, h.onError))
	})

	return r
}

func wrap[R any](fn handler.HandlerFunc[R], onError handler.ErrorHandler) http.HandlerFunc {
	return handler.Wrap(fn,
		handler.WithBinders[R](handler.Path(chi.URLParam), handler.JSONBody()),
		handler.WithErrorHandler[R](onError),
	)
}
