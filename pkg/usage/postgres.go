package usage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/planwarden/pkg/pg"
	"github.com/dmitrymomot/planwarden/pkg/plan"
)

// Table names a resource table and its owner column.
type Table struct {
	Name        string
	OwnerColumn string
}

// DefaultTables maps every resource kind to the table the product stores it in.
func DefaultTables() map[plan.Resource]Table {
	return map[plan.Resource]Table{
		plan.ResourceCustomers: {Name: "customers", OwnerColumn: "admin_id"},
		plan.ResourceWorkers:   {Name: "workers", OwnerColumn: "admin_id"},
		plan.ResourceProducts:  {Name: "products", OwnerColumn: "admin_id"},
		plan.ResourceLocations: {Name: "locations", OwnerColumn: "admin_id"},
	}
}

// CountByOwner returns a CounterFunc issuing one count-by-owner query.
func CountByOwner(db pg.DB, t Table) CounterFunc {
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = $1",
		pgx.Identifier{t.Name}.Sanitize(),
		pgx.Identifier{t.OwnerColumn}.Sanitize(),
	)
	return func(ctx context.Context, tenantID uuid.UUID) (int64, error) {
		var n int64
		if err := db.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
			return 0, err
		}
		return n, nil
	}
}

// NewPostgresRegistry registers a count-by-owner counter for each table.
func NewPostgresRegistry(db pg.DB, tables map[plan.Resource]Table) Registry {
	reg := NewRegistry()
	for res, t := range tables {
		reg.Register(res, CountByOwner(db, t))
	}
	return reg
}
