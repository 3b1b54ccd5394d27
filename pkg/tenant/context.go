package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithTenant adds a tenant profile to the context.
func WithTenant(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext retrieves the tenant profile from the context.
func FromContext(ctx context.Context) (*Profile, bool) {
	p, ok := ctx.Value(contextKey{}).(*Profile)
	return p, ok && p != nil
}

// IDFromContext retrieves just the tenant ID from the context.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.ID, true
}

// IDStringFromContext is IDFromContext in the shape audit extractors expect.
func IDStringFromContext(ctx context.Context) (string, bool) {
	id, ok := IDFromContext(ctx)
	if !ok {
		return "", false
	}
	return id.String(), true
}

// LoggerExtractor returns a logger context extractor adding tenant_id.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return slog.String("tenant_id", id.String()), true
		}
		return slog.Attr{}, false
	}
}
