package access

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
)

type decisionKey struct{}

// WithDecision stores d in ctx.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext returns the decision Middleware attached.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}

// TenantIDFunc extracts the tenant id from a request.
type TenantIDFunc func(r *http.Request) (uuid.UUID, bool)

// TenantFromContext reads the id set by tenant.Middleware.
func TenantFromContext(r *http.Request) (uuid.UUID, bool) {
	return tenant.IDFromContext(r.Context())
}

// Middleware rejects requests from tenants without access with
// 402 Payment Required. Allowed requests carry the Decision in their context.
func Middleware(e *Evaluator, tenantID TenantIDFunc) func(http.Handler) http.Handler {
	if tenantID == nil {
		tenantID = TenantFromContext
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := tenantID(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "tenant_required"})
				return
			}

			d := e.CheckAccess(r.Context(), id)
			if !d.Allowed {
				writeJSON(w, http.StatusPaymentRequired, map[string]any{
					"error":    "subscription_required",
					"decision": d,
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDecision(r.Context(), d)))
		})
	}
}

// RequireResource guards record-creation endpoints: it responds 402 with the
// current count and cap when the tenant is at its plan limit for res.
func RequireResource(e *Evaluator, res plan.Resource, tenantID TenantIDFunc) func(http.Handler) http.Handler {
	if tenantID == nil {
		tenantID = TenantFromContext
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := tenantID(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "tenant_required"})
				return
			}

			d := e.CheckResource(r.Context(), id, res)
			if !d.Allowed {
				writeJSON(w, http.StatusPaymentRequired, map[string]any{
					"error":    "limit_reached",
					"decision": d,
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDecision(r.Context(), d.Access)))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
