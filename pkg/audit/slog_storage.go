package audit

import (
	"context"
	"log/slog"
)

// SlogStorage writes every event as a structured log record.
type SlogStorage struct {
	logger *slog.Logger
}

// NewSlogStorage writes events as log records.
func NewSlogStorage(logger *slog.Logger) *SlogStorage {
	if logger == nil {
		panic("audit: logger cannot be nil")
	}
	return &SlogStorage{logger: logger.With(slog.String("component", "audit"))}
}

func (s *SlogStorage) Store(ctx context.Context, event Event) error {
	attrs := []slog.Attr{
		slog.String("event_id", event.ID),
		slog.String("action", event.Action),
		slog.String("result", string(event.Result)),
		slog.Time("at", event.CreatedAt),
	}
	if event.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", event.TenantID))
	}
	if event.Resource != "" {
		attrs = append(attrs, slog.String("resource", event.Resource), slog.String("resource_id", event.ResourceID))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if len(event.Metadata) > 0 {
		meta := make([]any, 0, len(event.Metadata))
		for k, v := range event.Metadata {
			meta = append(meta, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", meta...))
	}

	level := slog.LevelInfo
	if event.Result != ResultSuccess {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "audit", attrs...)
	return nil
}

func (s *SlogStorage) StoreBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		if err := s.Store(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
