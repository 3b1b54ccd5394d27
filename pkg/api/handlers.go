package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/handler"
	"github.com/dmitrymomot/planwarden/pkg/notify"
	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/schedule"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
)

var (
	errUnknownKind     = handler.NewHTTPError(http.StatusNotFound, "unknown_notification_kind")
	errUnknownResource = handler.NewHTTPError(http.StatusNotFound, "unknown_resource")
	errUnknownPlan     = handler.NewHTTPError(http.StatusNotFound, "unknown_plan")
	errSweepRunning    = handler.NewHTTPError(http.StatusConflict, "sweep_already_running")
	errNoSubscription  = handler.NewHTTPError(http.StatusNotFound, "subscription_not_found")
	errNotPending      = handler.NewHTTPError(http.StatusConflict, "renewal_not_pending")
	errMissingPeriod   = handler.NewHTTPError(http.StatusUnprocessableEntity, "next_period_end_required")
)

type handlers struct {
	cfg     Config
	onError handler.ErrorHandler
}

type sweepRequest struct {
	Kind string `path:"kind"`
}

func (h *handlers) runSweep(ctx handler.Context, req sweepRequest) handler.Response {
	sweeper, ok := h.cfg.Sweepers[req.Kind]
	if !ok {
		return handler.JSONError(errUnknownKind)
	}

	var res notify.SweepResult
	run := func(ctx context.Context) error {
		var err error
		res, err = sweeper.ScanAndNotify(ctx)
		return err
	}

	var err error
	if h.cfg.Jobs != nil {
		err = h.cfg.Jobs.Do(ctx, req.Kind, run)
	} else {
		err = run(ctx)
	}
	switch {
	case errors.Is(err, schedule.ErrJobLocked):
		return handler.JSONError(errSweepRunning)
	case err != nil:
		return handler.JSONError(errors.Join(handler.ErrServiceUnavailable, err))
	}
	return handler.JSON(res)
}

type tenantRequest struct {
	TenantID uuid.UUID `path:"tenant_id"`
}

func (h *handlers) checkAccess(ctx handler.Context, req tenantRequest) handler.Response {
	return handler.JSON(h.cfg.Evaluator.CheckAccess(ctx, req.TenantID))
}

type resourceRequest struct {
	TenantID uuid.UUID     `path:"tenant_id"`
	Resource plan.Resource `path:"resource"`
}

func (h *handlers) checkResource(ctx handler.Context, req resourceRequest) handler.Response {
	if !req.Resource.Valid() {
		return handler.JSONError(errUnknownResource)
	}
	return handler.JSON(h.cfg.Evaluator.CheckResource(ctx, req.TenantID, req.Resource))
}

type featureRequest struct {
	TenantID uuid.UUID    `path:"tenant_id"`
	Feature  plan.Feature `path:"feature"`
}

func (h *handlers) hasFeature(ctx handler.Context, req featureRequest) handler.Response {
	return handler.JSON(map[string]any{
		"feature": req.Feature,
		"enabled": h.cfg.Evaluator.HasFeature(ctx, req.TenantID, req.Feature),
	})
}

func (h *handlers) usage(ctx handler.Context, req tenantRequest) handler.Response {
	return handler.JSON(h.cfg.Evaluator.Usage(ctx, req.TenantID))
}

type notifyRequest struct {
	TenantID uuid.UUID `path:"tenant_id"`
	Kind     string    `path:"kind"`
}

func (h *handlers) notifyTenant(ctx handler.Context, req notifyRequest) handler.Response {
	sweeper, ok := h.cfg.Sweepers[req.Kind]
	if !ok {
		return handler.JSONError(errUnknownKind)
	}
	sent, err := sweeper.CheckAndNotify(ctx, req.TenantID)
	if err != nil {
		return handler.JSONError(errors.Join(handler.ErrServiceUnavailable, err))
	}
	return handler.JSON(map[string]bool{"sent": sent})
}

type approveRequest struct {
	TenantID      uuid.UUID  `path:"tenant_id"`
	NextPeriodEnd *time.Time `json:"next_period_end"`
}

func (h *handlers) approveRenewal(ctx handler.Context, req approveRequest) handler.Response {
	if req.NextPeriodEnd == nil {
		return handler.JSONError(errMissingPeriod)
	}

	row, err := h.cfg.Renewals.ApproveRenewal(ctx, req.TenantID, *req.NextPeriodEnd)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return handler.JSONError(errNoSubscription)
	case errors.Is(err, subscription.ErrInvalidTransition):
		return handler.JSONError(errNotPending)
	case subscription.IsUnavailable(err):
		return handler.JSONError(errors.Join(handler.ErrServiceUnavailable, err))
	case err != nil:
		return handler.JSONError(err)
	}
	return handler.JSON(row)
}

type compareRequest struct {
	From plan.Type `path:"from"`
	To   plan.Type `path:"to"`
}

func (h *handlers) comparePlans(_ handler.Context, req compareRequest) handler.Response {
	if !req.From.Valid() || !req.To.Valid() {
		return handler.JSONError(errUnknownPlan)
	}
	return handler.JSON(h.cfg.Catalog.ComparePlans(req.From, req.To))
}
