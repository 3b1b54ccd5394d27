// Package handler provides type-safe HTTP handlers for the internal API.
//
// A HandlerFunc receives a Context and a request value already bound by the
// configured binders (Path for router parameters, JSONBody for bodies) and
// returns a Response. Wrap adapts it to net/http; binding and rendering
// errors go through an ErrorHandler that renders the JSON error envelope.
//
//	type accessRequest struct {
//		TenantID uuid.UUID `path:"tenant_id"`
//	}
//
//	r.Get("/internal/access/{tenant_id}", handler.Wrap(
//		func(ctx handler.Context, req accessRequest) handler.Response {
//			return handler.JSON(evaluator.CheckAccess(ctx, req.TenantID))
//		},
//		handler.WithBinders[accessRequest](handler.Path(chi.URLParam)),
//	))
//
// RequireToken guards internal routes with a static bearer token.
package handler
