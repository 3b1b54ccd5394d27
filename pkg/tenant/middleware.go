package tenant

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Resolver extracts the raw tenant identifier from a request; "" means none.
type Resolver func(r *http.Request) string

// URLParamResolver reads a chi route parameter.
func URLParamResolver(name string) Resolver {
	return func(r *http.Request) string { return chi.URLParam(r, name) }
}

// HeaderResolver reads a request header.
func HeaderResolver(name string) Resolver {
	return func(r *http.Request) string { return r.Header.Get(name) }
}

// ErrorHandler handles errors that occur during tenant resolution.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware loads the tenant profile named by resolve and stores it in the
// request context. A tenant without a profile row continues with a bare
// profile carrying only the ID, so subscription checks still run for it.
func Middleware(resolve Resolver, store Store, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := resolve(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				onError(w, r, ErrInvalidIdentifier)
				return
			}

			p, err := store.GetByID(r.Context(), id)
			switch {
			case errors.Is(err, ErrTenantNotFound):
				p = &Profile{ID: id}
			case err != nil:
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), p)))
		})
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidIdentifier):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "tenant lookup failed", http.StatusServiceUnavailable)
	}
}
