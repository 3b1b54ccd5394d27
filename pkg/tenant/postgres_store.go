package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/planwarden/pkg/pg"
)

// PostgresStore reads profiles from the tenants table.
type PostgresStore struct {
	db pg.DB
}

// NewPostgresStore reads tenant profiles from the tenants table.
func NewPostgresStore(db pg.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	err := s.db.QueryRow(ctx,
		`SELECT id, email, name, role, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.Name, &p.Role, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
