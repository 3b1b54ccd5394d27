package main

import (
	"time"

	"github.com/dmitrymomot/planwarden/pkg/email"
	"github.com/dmitrymomot/planwarden/pkg/httpserver"
	"github.com/dmitrymomot/planwarden/pkg/notify"
	"github.com/dmitrymomot/planwarden/pkg/pg"
	"github.com/dmitrymomot/planwarden/pkg/redis"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
)

// Ledger backends.
const (
	ledgerPostgres = "postgres"
	ledgerRedis    = "redis"
	ledgerMemory   = "memory"
)

// Audit storage backends.
const (
	auditSlog     = "slog"
	auditPostgres = "postgres"
)

type appConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"planwarden"`

	StaleAfterMonths int    `env:"STALE_AFTER_MONTHS" envDefault:"1"`
	PlanCatalogFile  string `env:"PLAN_CATALOG_FILE"`

	FromEmail      string        `env:"NOTIFY_FROM_EMAIL"`
	TrialSweep     string        `env:"TRIAL_SWEEP_SCHEDULE" envDefault:"1m"`
	RenewalSweep   string        `env:"RENEWAL_SWEEP_SCHEDULE" envDefault:"1h"`
	SweepLockTTL   time.Duration `env:"SWEEP_LOCK_TTL" envDefault:"10m"`
	LedgerBackend  string        `env:"LEDGER_BACKEND" envDefault:"postgres"`
	AuditBackend   string        `env:"AUDIT_BACKEND" envDefault:"slog"`
	InternalToken  string        `env:"INTERNAL_API_TOKEN,required"`
	TenantCacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"1m"`

	Trial      subscription.TrialConfig
	SuperAdmin tenant.SuperAdmin
	Renderer   notify.RendererConfig
	PG         pg.Config
	Redis      redis.Config
	Email      email.Config
	HTTP       httpserver.Config
	Paddle     subscription.PaddleConfig
	Stripe     subscription.StripeConfig
}
