package notify

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/planwarden/pkg/audit"
)

type options struct {
	ledger   Ledger
	renderer Renderer
	from     string
	metrics  *Metrics
	audit    audit.Sink
	logger   *slog.Logger
	now      func() time.Time
	trial    TrialPolicy
	renewal  RenewalPolicy
}

// Option configures a scheduler.
type Option func(*options)

// WithLedger sets the last-sent store. Sweep and on-demand callers must share
// one ledger for the gate to hold across them.
func WithLedger(l Ledger) Option {
	return func(o *options) {
		if l != nil {
			o.ledger = l
		}
	}
}

// WithRenderer replaces the built-in templ renderer.
func WithRenderer(r Renderer) Option {
	return func(o *options) {
		if r != nil {
			o.renderer = r
		}
	}
}

// WithFrom sets the From address; empty uses the transport default.
func WithFrom(addr string) Option {
	return func(o *options) { o.from = addr }
}

// WithMetrics enables sweep and send metrics; nil disables them.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithAudit records every send attempt to s.
func WithAudit(s audit.Sink) Option {
	return func(o *options) {
		if s != nil {
			o.audit = s
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTrialPolicy replaces DefaultTrialPolicy.
func WithTrialPolicy(p TrialPolicy) Option {
	return func(o *options) { o.trial = p }
}

// WithRenewalPolicy replaces DefaultRenewalPolicy.
func WithRenewalPolicy(p RenewalPolicy) Option {
	return func(o *options) { o.renewal = p }
}
