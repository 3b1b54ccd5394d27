package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/planwarden/pkg/logger"
)

// Job is one unit of periodic work, e.g. a notification sweep.
type Job func(ctx context.Context) error

// Locker keeps a job to one instance across replicas.
// redis.Locker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type job struct {
	name     string
	schedule Schedule
	fn       Job
	running  sync.Mutex
}

// Runner executes registered jobs on their schedules until its context ends.
type Runner struct {
	mu      sync.RWMutex
	jobs    map[string]*job
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLocker guards every run with a named lock held for at most ttl.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(r *Runner) {
		r.locker = l
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now for computing the next run.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner returns a Runner with no jobs.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		jobs:    make(map[string]*job),
		lockTTL: 5 * time.Minute,
		logger:  logger.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers fn under name.
func (r *Runner) Add(name string, s Schedule, fn Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}
	r.jobs[name] = &job{name: name, schedule: s, fn: fn}
	r.logger.Info("registered periodic job",
		slog.String("job", name),
		slog.String("schedule", s.String()),
	)
	return nil
}

// Jobs returns registered job names, sorted.
func (r *Runner) Jobs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run blocks until ctx is cancelled, running each job on its own schedule.
// A failing job is logged and retried at its next tick.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.RLock()
	jobs := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.RUnlock()

	if len(jobs) == 0 {
		return ErrNoJobs
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			r.loop(ctx, j)
			return nil
		})
	}
	err := g.Wait()
	r.logger.Info("scheduler stopped")
	return err
}

// RunNow executes one job immediately, honouring the same locks as scheduled
// runs. It returns ErrJobLocked when the job is already running.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	return r.Do(ctx, name, nil)
}

// Do runs fn while holding the locks of the named job, so a manual trigger
// that needs the job's result never overlaps a scheduled run. A nil fn runs
// the job itself.
func (r *Runner) Do(ctx context.Context, name string, fn Job) error {
	r.mu.RLock()
	j, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if fn == nil {
		fn = j.fn
	}
	return r.execute(ctx, j, fn)
}

func (r *Runner) loop(ctx context.Context, j *job) {
	for {
		now := r.now()
		wait := j.schedule.Next(now).Sub(now)
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := r.execute(ctx, j, j.fn)
		switch {
		case err == nil:
		case errors.Is(err, ErrJobLocked):
			r.logger.DebugContext(ctx, "job skipped, held elsewhere", slog.String("job", j.name))
		case ctx.Err() != nil:
			return
		default:
			r.logger.ErrorContext(ctx, "job failed", slog.String("job", j.name), logger.Error(err))
		}
	}
}

func (r *Runner) execute(ctx context.Context, j *job, fn Job) error {
	if !j.running.TryLock() {
		return ErrJobLocked
	}
	defer j.running.Unlock()

	if r.locker != nil {
		release, ok, err := r.locker.TryLock(ctx, "job:"+j.name, r.lockTTL)
		switch {
		case err != nil:
			// Jobs are idempotent; an unavailable lock only risks duplicate work.
			r.logger.WarnContext(ctx, "job lock unavailable, running unlocked",
				slog.String("job", j.name),
				logger.Error(err),
			)
		case !ok:
			return ErrJobLocked
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					r.logger.WarnContext(ctx, "job lock release failed", slog.String("job", j.name), logger.Error(err))
				}
			}()
		}
	}

	start := r.now()
	err := fn(ctx)
	r.logger.InfoContext(ctx, "job finished",
		slog.String("job", j.name),
		logger.Duration(r.now().Sub(start)),
		slog.Bool("ok", err == nil),
	)
	return err
}
