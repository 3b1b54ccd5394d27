package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/planwarden/db"
	"github.com/dmitrymomot/planwarden/pkg/access"
	"github.com/dmitrymomot/planwarden/pkg/api"
	"github.com/dmitrymomot/planwarden/pkg/audit"
	"github.com/dmitrymomot/planwarden/pkg/config"
	"github.com/dmitrymomot/planwarden/pkg/email"
	"github.com/dmitrymomot/planwarden/pkg/httpserver"
	"github.com/dmitrymomot/planwarden/pkg/logger"
	"github.com/dmitrymomot/planwarden/pkg/notify"
	"github.com/dmitrymomot/planwarden/pkg/pg"
	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/redis"
	"github.com/dmitrymomot/planwarden/pkg/schedule"
	"github.com/dmitrymomot/planwarden/pkg/subscription"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
	"github.com/dmitrymomot/planwarden/pkg/usage"
)

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextExtractors(tenant.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("planwarden stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, db.Migrations, cfg.PG, log); err != nil {
		return err
	}

	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
	}

	auditSink, flushAudit, err := newAuditSink(cfg, pool, log)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := flushAudit(ctx); err != nil {
			log.Error("audit flush failed", logger.Error(err))
		}
	}()

	catalog, err := newCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}

	ledger, err := newLedger(cfg, pool, rdb)
	if err != nil {
		return err
	}

	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		return err
	}

	lifecycle := subscription.NewLifecycle(
		subscription.WithStaleAfterMonths(cfg.StaleAfterMonths),
		subscription.WithLifecycleLogger(log),
	)
	repo := subscription.NewRepository(subscription.NewPostgresStore(pool), cfg.Trial,
		subscription.WithLogger(log.With(logger.Component("subscription"))),
		subscription.WithAudit(auditSink),
	)
	tenants := tenant.NewCachedStore(tenant.NewPostgresStore(pool), cfg.TenantCacheTTL, 10_000)
	counter := usage.NewCounter(usage.NewPostgresRegistry(pool, usage.DefaultTables()),
		usage.WithLogger(log.With(logger.Component("usage"))),
		usage.WithAudit(auditSink),
	)

	evaluator := access.NewEvaluator(repo, catalog, counter, tenants,
		access.WithSuperAdmin(cfg.SuperAdmin),
		access.WithLifecycle(lifecycle),
		access.WithAudit(auditSink),
		access.WithLogger(log.With(logger.Component("access"))),
	)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notifyOpts := []notify.Option{
		notify.WithLedger(ledger),
		notify.WithRenderer(notify.NewRenderer(cfg.Renderer)),
		notify.WithFrom(cfg.FromEmail),
		notify.WithMetrics(notify.NewMetrics(promReg)),
		notify.WithAudit(auditSink),
		notify.WithLogger(log.With(logger.Component("notify"))),
	}
	trials := notify.NewTrialScheduler(repo, tenants, sender, notifyOpts...)
	renewals := notify.NewRenewalScheduler(repo, tenants, sender, notifyOpts...)

	sweepers := map[string]api.Sweeper{"trial": trials, "renewal": renewals}
	runner, err := newRunner(cfg, rdb, log, sweepers)
	if err != nil {
		return err
	}

	webhooks, err := newWebhooks(cfg, repo, log)
	if err != nil {
		return err
	}

	readiness := map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)}
	if rdb != nil {
		readiness["redis"] = redis.Healthcheck(rdb)
	}

	router := api.NewRouter(api.Config{
		Evaluator:     evaluator,
		Catalog:       catalog,
		Renewals:      repo,
		Sweepers:      sweepers,
		Jobs:          runner,
		Webhooks:      webhooks,
		Readiness:     readiness,
		Metrics:       promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		InternalToken: cfg.InternalToken,
		Logger:        log.With(logger.Component("api")),
	})

	server := httpserver.New(cfg.HTTP,
		httpserver.WithLogger(log.With(logger.Component("http"))),
		httpserver.WithShutdownFunc(flushAudit),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx, router) })
	g.Go(func() error {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// newAuditSink returns the sink and a flush func safe to call more than once.
func newAuditSink(cfg appConfig, pool *pgxpool.Pool, log *slog.Logger) (audit.Sink, func(context.Context) error, error) {
	opts := []audit.Option{audit.WithTenantIDExtractor(tenant.IDStringFromContext)}

	switch cfg.AuditBackend {
	case auditSlog, "":
		noop := func(context.Context) error { return nil }
		return audit.NewLogger(audit.NewSlogStorage(log.With(logger.Component("audit"))), opts...), noop, nil
	case auditPostgres:
		w := audit.NewAsyncWriter(audit.NewPostgresStorage(pool), audit.AsyncOptions{}, func(err error) {
			log.Error("audit batch write failed", logger.Error(err))
		})
		return audit.NewLogger(w, opts...), w.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown AUDIT_BACKEND %q", cfg.AuditBackend)
	}
}

func newCatalog(ctx context.Context, cfg appConfig, log *slog.Logger) (*plan.Catalog, error) {
	opts := []plan.CatalogOption{plan.WithLogger(log.With(logger.Component("plan")))}
	if cfg.PlanCatalogFile == "" {
		return plan.NewDefaultCatalog(opts...), nil
	}
	src, err := plan.NewYAMLFileSource(cfg.PlanCatalogFile)
	if err != nil {
		return nil, err
	}
	return plan.NewCatalog(ctx, src, opts...)
}

func newLedger(cfg appConfig, pool *pgxpool.Pool, rdb *goredis.Client) (notify.Ledger, error) {
	switch cfg.LedgerBackend {
	case ledgerPostgres, "":
		return notify.NewPostgresLedger(pool), nil
	case ledgerRedis:
		if rdb == nil {
			return nil, errors.Join(redis.ErrEmptyConnectionURL, errors.New("LEDGER_BACKEND=redis requires REDIS_URL"))
		}
		return notify.NewRedisLedger(rdb, notify.WithKeyPrefix(cfg.Redis.KeyPrefix+":notify")), nil
	case ledgerMemory:
		return notify.NewMemoryLedger(), nil
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
	}
}

func newRunner(cfg appConfig, rdb *goredis.Client, log *slog.Logger, sweepers map[string]api.Sweeper) (*schedule.Runner, error) {
	opts := []schedule.Option{schedule.WithLogger(log.With(logger.Component("scheduler")))}
	if rdb != nil {
		opts = append(opts, schedule.WithLocker(redis.NewLocker(rdb, cfg.Redis.KeyPrefix), cfg.SweepLockTTL))
	}
	runner := schedule.NewRunner(opts...)

	exprs := map[string]string{"trial": cfg.TrialSweep, "renewal": cfg.RenewalSweep}
	for name, expr := range exprs {
		s, err := schedule.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("%s sweep: %w", name, err)
		}
		sweeper := sweepers[name]
		if err := runner.Add(name, s, func(ctx context.Context) error {
			_, err := sweeper.ScanAndNotify(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}
	return runner, nil
}

func newWebhooks(cfg appConfig, repo *subscription.Repository, log *slog.Logger) (map[string]http.Handler, error) {
	hooks := make(map[string]http.Handler, 2)
	log = log.With(logger.Component("webhooks"))

	if cfg.Paddle.WebhookSecret != "" {
		p, err := subscription.NewPaddleProvider(cfg.Paddle, log)
		if err != nil {
			return nil, err
		}
		hooks["paddle"] = subscription.NewWebhookHandler(p, repo, subscription.PaddleSignatureHeader, log)
	}
	if cfg.Stripe.WebhookSecret != "" {
		p, err := subscription.NewStripeProvider(cfg.Stripe, log)
		if err != nil {
			return nil, err
		}
		hooks["stripe"] = subscription.NewWebhookHandler(p, repo, subscription.StripeSignatureHeader, log)
	}
	if len(hooks) == 0 {
		log.Warn("no payment processor webhook secret configured, subscription updates are disabled")
	}
	return hooks, nil
}
