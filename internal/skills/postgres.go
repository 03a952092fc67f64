package skills

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/onnwee/civitas/internal/tracing"
)

// PostgresRegistry implements Registry on the skills table. The table has a
// unique index on lower(name).
type PostgresRegistry struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRegistry creates a PostgresRegistry.
func NewPostgresRegistry(db *sql.DB, logger *slog.Logger) *PostgresRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRegistry{db: db, logger: logger}
}

// Seed inserts the canonical names that are missing. Existing rows are untouched.
func (r *PostgresRegistry) Seed(ctx context.Context, canonical []string) error {
	names := make([]string, 0, len(canonical))
	for _, c := range canonical {
		n, err := seedName(c)
		if err != nil {
			return err
		}
		names = append(names, n)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO skills (name, canonical)
		SELECT n, TRUE FROM unnest($1::text[]) AS n
		ON CONFLICT (lower(name)) DO NOTHING`, pq.Array(names))
	if err != nil {
		return fmt.Errorf("seed skills: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.logger.InfoContext(ctx, "seeded canonical skills", "inserted", n)
	}
	return nil
}

// Suggest implements Registry.
func (r *PostgresRegistry) Suggest(ctx context.Context, q string, limit int) (_ []Skill, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "skills", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	limit = ClampLimit(limit)
	term := strings.ToLower(strings.TrimSpace(q))

	var rows *sql.Rows
	if term == "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, name, canonical FROM skills
			WHERE canonical
			ORDER BY name
			LIMIT $1`, limit)
	} else {
		pattern := escapeLike(term)
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, name, canonical FROM skills
			WHERE lower(name) LIKE '%' || $1 || '%' ESCAPE '\'
			ORDER BY (lower(name) LIKE $1 || '%' ESCAPE '\') DESC, name
			LIMIT $2`, pattern, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("suggest skills: %w", err)
	}
	defer rows.Close()

	out := []Skill{}
	for rows.Next() {
		var s Skill
		if err := rows.Scan(&s.ID, &s.Name, &s.Canonical); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Ensure implements Registry. Concurrent callers registering the same name
// converge on one row.
func (r *PostgresRegistry) Ensure(ctx context.Context, name string) (_ Skill, _ bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "skills", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	n, err := Normalize(name)
	if err != nil {
		return Skill{}, false, err
	}

	var s Skill
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO skills (name, canonical) VALUES ($1, FALSE)
		ON CONFLICT (lower(name)) DO NOTHING
		RETURNING id, name, canonical`, n).Scan(&s.ID, &s.Name, &s.Canonical)
	if err == nil {
		r.logger.DebugContext(ctx, "registered non-canonical skill", "name", s.Name)
		return s, true, nil
	}
	if err != sql.ErrNoRows {
		return Skill{}, false, fmt.Errorf("ensure skill: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT id, name, canonical FROM skills WHERE lower(name) = lower($1)`, n,
	).Scan(&s.ID, &s.Name, &s.Canonical)
	if err != nil {
		return Skill{}, false, fmt.Errorf("load skill: %w", err)
	}
	return s, false, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
