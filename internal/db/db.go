// Package db provides database connection handling and schema migrations
// for the Civitas PostgreSQL store.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns pool settings sized for a single API instance.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open connects to PostgreSQL and verifies the connection with a ping.
func Open(ctx context.Context, databaseURL string, pool PoolConfig) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is empty")
	}

	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(pool.MaxOpenConns)
	conn.SetMaxIdleConns(pool.MaxIdleConns)
	conn.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// migrationLockKey serialises concurrent Migrate calls across instances.
const migrationLockKey = 7216400101

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// LoadMigrations reads NNNNNN_name.up.sql and NNNNNN_name.down.sql pairs
// from fsys, sorted by version.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := map[int]*Migration{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}

		base := strings.TrimSuffix(name, ".sql")
		var direction string
		switch {
		case strings.HasSuffix(base, ".up"):
			direction = "up"
		case strings.HasSuffix(base, ".down"):
			direction = "down"
		default:
			return nil, fmt.Errorf("migration %s: missing .up or .down suffix", name)
		}
		base = strings.TrimSuffix(base, "."+direction)

		prefix, label, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: expected NNNNNN_name", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: invalid version: %w", name, err)
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: label}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %06d_%s has no up file", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrate applies every pending up migration in its own transaction and
// records it in schema_migrations. It returns the versions applied.
func Migrate(ctx context.Context, conn *sql.DB, fsys fs.FS, logger *slog.Logger) ([]int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}

	c, err := conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer c.Close()

	if _, err := c.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = c.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
	}()

	if _, err := c.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := currentVersion(ctx, c)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, c, m); err != nil {
			return applied, err
		}
		logger.Info("migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// Rollback reverts the most recent steps migrations.
func Rollback(ctx context.Context, conn *sql.DB, fsys fs.FS, steps int) error {
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}

	for ; steps > 0; steps-- {
		var version int
		err := conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version == 0 {
			return nil
		}

		idx := sort.Search(len(migrations), func(i int) bool { return migrations[i].Version >= version })
		if idx == len(migrations) || migrations[idx].Version != version {
			return fmt.Errorf("schema version %d has no migration file", version)
		}
		m := migrations[idx]
		if m.Down == "" {
			return fmt.Errorf("migration %06d_%s has no down file", m.Version, m.Name)
		}

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin rollback %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, m.Down); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("rollback %06d_%s: %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("unrecord migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit rollback %d: %w", version, err)
		}
	}
	return nil
}

func currentVersion(ctx context.Context, c *sql.Conn) (int, error) {
	var version int
	err := c.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func apply(ctx context.Context, c *sql.Conn, m Migration) error {
	tx, err := c.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return fmt.Errorf("apply %06d_%s: %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}
