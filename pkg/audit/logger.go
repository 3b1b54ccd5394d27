package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TenantIDExtractor pulls the tenant id out of a request context.
type TenantIDExtractor func(context.Context) (string, bool)

// Logger is the Storage-backed Sink.
type Logger struct {
	storage           Storage
	tenantIDExtractor TenantIDExtractor
	now               func() time.Time
}

// Option configures Logger behavior during initialization
type Option func(*Logger)

// WithTenantIDExtractor fills Event.TenantID from the context when the caller did not.
func WithTenantIDExtractor(fn TenantIDExtractor) Option {
	return func(l *Logger) {
		l.tenantIDExtractor = fn
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates a new audit logger
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	l := &Logger{
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultSuccess)
	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

// LogError records a failed action
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultError)
	if err != nil {
		event.Error = err.Error()
	}
	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

func (l *Logger) newEvent(ctx context.Context, action string, result Result) Event {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now(),
	}
	if l.tenantIDExtractor != nil {
		if tenantID, ok := l.tenantIDExtractor(ctx); ok {
			event.TenantID = tenantID
		}
	}
	return event
}

type discard struct{}

func (discard) Log(context.Context, string, ...EventOption) error { return nil }

func (discard) LogError(context.Context, string, error, ...EventOption) error { return nil }

// Discard returns a Sink that drops every event.
func Discard() Sink { return discard{} }
