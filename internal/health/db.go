package health

import (
	"context"
	"database/sql"
	"fmt"
)

// RequiredTables are the tables the API cannot serve without.
var RequiredTables = []string{"civilians", "allocations", "audit_logs", "authority_requests"}

// DBChecker implements health checking for the Postgres store.
type DBChecker struct {
	db     *sql.DB
	tables []string
}

// NewDBChecker creates a new database health checker that also requires
// RequiredTables to exist.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{
		db:     db,
		tables: RequiredTables,
	}
}

// HealthCheck pings the database and checks that migrations have been applied.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	for _, table := range d.tables {
		var exists bool
		if err := d.db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&exists); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("table %s is missing, run migrations", table)
		}
	}
	return nil
}
