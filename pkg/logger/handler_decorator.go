package logger

import (
	"context"
	"log/slog"
	"slices"
)

// ContextExtractor reads one attribute from a request context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// contextHandler adds extractor attributes to each record. An extracted key
// that the record or a With call already set is skipped, so a component
// logging tenant_id explicitly does not get it twice.
type contextHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
	// bound holds top-level keys fixed by WithAttrs; nil once inside a group.
	bound   []string
	grouped bool
}

func newContextHandler(next slog.Handler, extractors []ContextExtractor) slog.Handler {
	if len(extractors) == 0 {
		return next
	}
	return &contextHandler{next: next, extractors: extractors}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if h.grouped {
		return h.next.Handle(ctx, rec)
	}

	present := slices.Clone(h.bound)
	rec.Attrs(func(a slog.Attr) bool {
		present = append(present, a.Key)
		return true
	})
	for _, ex := range h.extractors {
		attr, ok := ex(ctx)
		if !ok || slices.Contains(present, attr.Key) {
			continue
		}
		present = append(present, attr.Key)
		rec.AddAttrs(attr)
	}
	return h.next.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	if !h.grouped {
		c.bound = slices.Clone(h.bound)
		for _, a := range attrs {
			c.bound = append(c.bound, a.Key)
		}
	}
	return &c
}

// WithGroup stops extraction: attributes added inside a group would land
// under the group name instead of at the top level.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.next = h.next.WithGroup(name)
	c.grouped = true
	c.bound = nil
	return &c
}
