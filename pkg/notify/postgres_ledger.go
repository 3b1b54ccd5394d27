package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/planwarden/pkg/pg"
)

// PostgresLedger stores records in the notification_log table.
// Timestamps are truncated to microseconds to match timestamptz.
type PostgresLedger struct {
	db pg.DB
}

// NewPostgresLedger stores last-sent times in notification_log.
func NewPostgresLedger(db pg.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) LastNotifiedAt(ctx context.Context, tenantID uuid.UUID, kind Kind) (time.Time, bool, error) {
	var at time.Time
	err := l.db.QueryRow(ctx,
		`SELECT last_sent_at FROM notification_log WHERE tenant_id = $1 AND kind = $2`,
		tenantID, string(kind),
	).Scan(&at)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, errors.Join(ErrLedgerUnavailable, err)
	}
	return at, true, nil
}

const claimQuery = `
WITH prev AS (
	SELECT last_sent_at FROM notification_log WHERE tenant_id = $1 AND kind = $2
)
INSERT INTO notification_log (tenant_id, kind, last_sent_at)
VALUES ($1, $2, $3)
ON CONFLICT (tenant_id, kind) DO UPDATE
	SET last_sent_at = EXCLUDED.last_sent_at
	WHERE notification_log.last_sent_at < $4
RETURNING (SELECT last_sent_at FROM prev)`

func (l *PostgresLedger) Claim(ctx context.Context, tenantID uuid.UUID, kind Kind, at, cutoff time.Time) (Claim, error) {
	at = at.Truncate(time.Microsecond)
	c := Claim{TenantID: tenantID, Kind: kind, At: at}

	var prev *time.Time
	err := l.db.QueryRow(ctx, claimQuery, tenantID, string(kind), at, cutoff).Scan(&prev)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// The conflicting row was not updated: a recent send exists.
		return c, nil
	case err != nil:
		return c, errors.Join(ErrLedgerUnavailable, err)
	}

	if prev != nil {
		c.Previous = *prev
	}
	c.Granted = true
	return c, nil
}

func (l *PostgresLedger) Release(ctx context.Context, c Claim) error {
	if !c.Granted {
		return nil
	}

	var err error
	if c.Previous.IsZero() {
		_, err = l.db.Exec(ctx,
			`DELETE FROM notification_log WHERE tenant_id = $1 AND kind = $2 AND last_sent_at = $3`,
			c.TenantID, string(c.Kind), c.At,
		)
	} else {
		_, err = l.db.Exec(ctx,
			`UPDATE notification_log SET last_sent_at = $4 WHERE tenant_id = $1 AND kind = $2 AND last_sent_at = $3`,
			c.TenantID, string(c.Kind), c.At, c.Previous,
		)
	}
	if err != nil {
		return errors.Join(ErrLedgerUnavailable, err)
	}
	return nil
}
