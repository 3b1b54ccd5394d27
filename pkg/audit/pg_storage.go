package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// PostgresStorage writes events to the audit_events table.
type PostgresStorage struct {
	db pgConn
}

// NewPostgresStorage writes events to audit_events.
func NewPostgresStorage(db pgConn) *PostgresStorage {
	return &PostgresStorage{db: db}
}

var auditColumns = []string{"id", "tenant_id", "action", "resource", "resource_id", "result", "error", "metadata", "created_at"}

func (s *PostgresStorage) Store(ctx context.Context, e Event) error {
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO audit_events (id, tenant_id, action, resource, resource_id, result, error, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.TenantID, e.Action, e.Resource, e.ResourceID, string(e.Result), e.Error, meta, e.CreatedAt,
	)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

// StoreBatch uses COPY, so a batch is written in one round trip.
func (s *PostgresStorage) StoreBatch(ctx context.Context, events []Event) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		meta, err := marshalMetadata(e.Metadata)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return errors.Join(ErrEventValidation, err)
		}
		rows = append(rows, []any{
			id, e.TenantID, e.Action, e.Resource, e.ResourceID, string(e.Result), e.Error, meta, e.CreatedAt,
		})
	}

	if _, err := s.db.CopyFrom(ctx, pgx.Identifier{"audit_events"}, auditColumns, pgx.CopyFromRows(rows)); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Join(ErrEventValidation, err)
	}
	return b, nil
}
