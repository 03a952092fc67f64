package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/civitas/internal/tracing"
)

// chainLockKey serialises appends so each entry sees its true predecessor.
const chainLockKey = 7041991

// PostgresRepository implements Repository on the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const entryColumns = `id, actor_id, actor_role, entity_type, entity_id, action, outcome,
	created_at, request_id, ip_address, user_agent, previous_hash`

// Append stores a new entry inside a transaction holding the chain lock.
func (r *PostgresRepository) Append(ctx context.Context, entry LogEntry) (_ *Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_logs", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockKey); err != nil {
		return nil, fmt.Errorf("lock audit chain: %w", err)
	}

	prev, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM audit_logs ORDER BY seq DESC LIMIT 1`))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read last audit entry: %w", err)
	}

	// Postgres stores microseconds; truncate so the hash survives a round trip.
	e := &Entry{
		ID:         uuid.New().String(),
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Outcome:    entry.Outcome,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		RequestID:  entry.RequestID,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
	}
	if prev != nil {
		e.PreviousHash = prev.Hash()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_logs (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.ActorID, e.ActorRole, e.EntityType, e.EntityID, e.Action, e.Outcome,
		e.CreatedAt, e.RequestID, e.IPAddress, e.UserAgent, e.PreviousHash)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit audit entry: %w", err)
	}
	return e, nil
}

// QueryByEntity returns entries for an entity, newest first.
func (r *PostgresRepository) QueryByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error) {
	return r.query(ctx, `WHERE entity_type = $1 AND entity_id = $2`, limit, entityType, entityID)
}

// QueryByActor returns entries for an actor, newest first.
func (r *PostgresRepository) QueryByActor(ctx context.Context, actorID string, limit int) ([]*Entry, error) {
	return r.query(ctx, `WHERE actor_id = $1`, limit, actorID)
}

func (r *PostgresRepository) query(ctx context.Context, where string, limit int, args ...any) (_ []*Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_logs", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	q := `SELECT ` + entryColumns + ` FROM audit_logs ` + where + ` ORDER BY seq DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetLastHash returns the hash of the newest entry.
func (r *PostgresRepository) GetLastHash(ctx context.Context) (string, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM audit_logs ORDER BY seq DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read last audit entry: %w", err)
	}
	return e.Hash(), nil
}

// VerifyHashChain walks the trail oldest first.
func (r *PostgresRepository) VerifyHashChain(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM audit_logs ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("read audit chain: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scan audit log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return verifyChain(entries)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	if err := row.Scan(&e.ID, &e.ActorID, &e.ActorRole, &e.EntityType, &e.EntityID,
		&e.Action, &e.Outcome, &e.CreatedAt, &e.RequestID, &e.IPAddress, &e.UserAgent,
		&e.PreviousHash); err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
