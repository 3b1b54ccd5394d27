package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planwarden/pkg/audit"
	"github.com/dmitrymomot/planwarden/pkg/email"
	"github.com/dmitrymomot/planwarden/pkg/notify"
)

func TestTrialScheduler_ShortTrial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, true)
	id := f.trial(t) // ends at t0+1h
	s := notify.NewTrialScheduler(f.repo, f.tenants, f.outbox, notify.WithClock(f.clock.Now))

	f.clock.Set(t0.Add(50 * time.Minute))
	sent, err := s.CheckAndNotify(ctx, id)
	require.NoError(t, err)
	assert.False(t, sent, "10 minutes left is outside the final window")

	f.clock.Set(t0.Add(56 * time.Minute))
	sent, err = s.CheckAndNotify(ctx, id)
	require.NoError(t, err)
	assert.True(t, sent, "4 minutes left sends the final warning")

	f.clock.Set(t0.Add(57 * time.Minute))
	sent, err = s.CheckAndNotify(ctx, id)
	require.NoError(t, err)
	assert.False(t, sent, "one minute later is inside the re-fire guard")

	f.clock.Set(t0.Add(59 * time.Minute))
	sent, err = s.CheckAndNotify(ctx, id)
	require.NoError(t, err)
	assert.False(t, sent, "three minutes later the window already had its warning")

	f.clock.Set(t0.Add(61 * time.Minute))
	sent, err = s.CheckAndNotify(ctx, id)
	require.NoError(t, err)
	assert.False(t, sent, "nothing after the trial ended")

	msgs := f.outbox.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, string(notify.KindTrialFinal), msgs[0].Tag)
	assert.Contains(t, msgs[0].Subject, "4 minutes")
}

func TestTrialScheduler_LongTrial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, false)
	id := f.trial(t) // ends at t0+14d
	end := t0.Add(14 * 24 * time.Hour)
	s := notify.NewTrialScheduler(f.repo, f.tenants, f.outbox, notify.WithClock(f.clock.Now))

	check := func(at time.Time) bool {
		t.Helper()
		f.clock.Set(at)
		sent, err := s.CheckAndNotify(ctx, id)
		require.NoError(t, err)
		return sent
	}

	assert.False(t, check(end.Add(-48*time.Hour)))
	assert.True(t, check(end.Add(-20*time.Hour)), "early warning")
	assert.False(t, check(end.Add(-15*time.Hour)), "early warning re-fires only after 12h")
	assert.True(t, check(end.Add(-7*time.Hour)), "early warning after 13h")
	assert.True(t, check(end.Add(-50*time.Minute)), "final warning has its own record")
	assert.False(t, check(end.Add(-40*time.Minute)))
	assert.True(t, check(end.Add(-15*time.Minute)), "final warning after 35m")

	var kinds []string
	for _, m := range f.outbox.messages() {
		kinds = append(kinds, m.Tag)
	}
	assert.Equal(t, []string{"trial_early", "trial_early", "trial_final", "trial_final"}, kinds)
}

func TestTrialScheduler_Sweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, true)
	due := f.trial(t)
	_ = f.trial(t)
	f.clock.Set(t0.Add(57 * time.Minute))

	// Not due: created later so it has more time left.
	later := f.tenant(t)
	f.clock.Set(t0.Add(30 * time.Minute))
	_, err := f.repo.CreateTrial(ctx, later)
	require.NoError(t, err)
	f.clock.Set(t0.Add(57 * time.Minute))

	reg := prometheus.NewRegistry()
	metrics := notify.NewMetrics(reg)
	events := audit.NewMemoryStorage()
	s := notify.NewTrialScheduler(f.repo, f.tenants, f.outbox,
		notify.WithClock(f.clock.Now),
		notify.WithMetrics(metrics),
		notify.WithAudit(audit.NewLogger(events)),
	)

	res, err := s.ScanAndNotify(ctx)
	require.NoError(t, err)
	assert.Equal(t, notify.SweepResult{Checked: 3, Sent: 2, Skipped: 1}, res)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Sent.WithLabelValues("trial_final")))
	assert.Len(t, events.ByAction(audit.ActionNotifySent), 2)

	res, err = s.ScanAndNotify(ctx)
	require.NoError(t, err)
	assert.Equal(t, notify.SweepResult{Checked: 3, Skipped: 3}, res)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Skipped.WithLabelValues("trial_final")))

	sent, err := s.CheckAndNotify(ctx, due)
	require.NoError(t, err)
	assert.False(t, sent, "on-demand check shares the sweep's ledger")
}

func TestTrialScheduler_SendFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, true)
	id := f.trial(t)
	other := f.trial(t)
	f.dropEmail(other)
	f.clock.Set(t0.Add(56 * time.Minute))

	ledger := notify.NewMemoryLedger()
	events := audit.NewMemoryStorage()
	s := notify.NewTrialScheduler(f.repo, f.tenants, f.outbox,
		notify.WithClock(f.clock.Now),
		notify.WithLedger(ledger),
		notify.WithAudit(audit.NewLogger(events)),
	)

	f.outbox.fail(errTransport)
	res, err := s.ScanAndNotify(ctx)
	require.NoError(t, err)
	assert.Equal(t, notify.SweepResult{Checked: 2, Errors: 2}, res)
	assert.Len(t, events.ByAction(audit.ActionNotifySendFailed), 1)

	_, ok, err := ledger.LastNotifiedAt(ctx, id, notify.KindTrialFinal)
	require.NoError(t, err)
	assert.False(t, ok, "failed send gives its claim back")

	f.outbox.fail(nil)
	sent, err := s.CheckAndNotify(ctx, id)
	require.NoError(t, err)
	assert.True(t, sent)

	_, err = s.CheckAndNotify(ctx, other)
	assert.ErrorIs(t, err, notify.ErrNoRecipient)
}

func TestTrialScheduler_RecipientRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, true)
	id := f.trial(t)
	f.clock.Set(t0.Add(56 * time.Minute))

	events := audit.NewMemoryStorage()
	s := notify.NewTrialScheduler(f.repo, f.tenants, f.outbox,
		notify.WithClock(f.clock.Now),
		notify.WithAudit(audit.NewLogger(events)),
	)

	f.outbox.fail(errors.Join(email.ErrFailedToSendEmail, email.ErrRecipientRejected))
	sent, err := s.CheckAndNotify(ctx, id)
	assert.False(t, sent)
	assert.ErrorIs(t, err, notify.ErrNotificationSendFailed)
	assert.ErrorIs(t, err, email.ErrRecipientRejected)

	failed := events.ByAction(audit.ActionNotifySendFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, true, failed[0].Metadata["recipient_rejected"])
}

func TestTrialScheduler_ConcurrentChecksSendOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, true)
	id := f.trial(t)
	f.clock.Set(t0.Add(56 * time.Minute))

	ledger := notify.NewMemoryLedger()
	sweep := notify.NewTrialScheduler(f.repo, f.tenants, f.outbox, notify.WithClock(f.clock.Now), notify.WithLedger(ledger))
	dashboard := notify.NewTrialScheduler(f.repo, f.tenants, f.outbox, notify.WithClock(f.clock.Now), notify.WithLedger(ledger))

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = sweep.ScanAndNotify(ctx)
				return
			}
			_, _ = dashboard.CheckAndNotify(ctx, id)
		}()
	}
	wg.Wait()

	assert.Len(t, f.outbox.messages(), 1)
}

func TestTrialScheduler_UnknownTenant(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	s := notify.NewTrialScheduler(f.repo, f.tenants, f.outbox)

	sent, err := s.CheckAndNotify(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestTrialScheduler_InterruptedSweep(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.trial(t)
	f.clock.Set(t0.Add(56 * time.Minute))
	s := notify.NewTrialScheduler(f.repo, f.tenants, f.outbox, notify.WithClock(f.clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.ScanAndNotify(ctx)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Zero(t, res.Checked)
	assert.Empty(t, f.outbox.messages())
}
