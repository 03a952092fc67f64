package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/civitas/internal/tracing"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresRepository implements Repository on the idempotency_keys table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the record for key.
func (r *PostgresRepository) Get(ctx context.Context, key string) (*Record, error) {
	var (
		rec  Record
		hash sql.NullString
		body sql.NullString
		code sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT key, scope, subject, created_at, status, response_hash, response_body, response_status_code
		FROM idempotency_keys WHERE key = $1`, key,
	).Scan(&rec.Key, &rec.Scope, &rec.Subject, &rec.CreatedAt, &rec.Status, &hash, &body, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	rec.ResponseHash = hash.String
	rec.ResponseBody = body.String
	rec.ResponseStatusCode = int(code.Int64)
	return &rec, nil
}

// Reserve inserts a processing record. A unique violation maps to ErrKeyExists.
func (r *PostgresRepository) Reserve(ctx context.Context, key, scope, subject string) (err error) {
	if err := ValidateKey(key); err != nil {
		return err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "idempotency_keys", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, scope, subject, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())`, key, scope, subject, StatusProcessing)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrKeyExists
		}
		return fmt.Errorf("reserve idempotency key: %w", err)
	}
	return nil
}

// Complete stores the response for a reserved key.
func (r *PostgresRepository) Complete(ctx context.Context, key string, statusCode int, body string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "idempotency_keys", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET status = $2, response_status_code = $3, response_body = $4, response_hash = $5
		WHERE key = $1`, key, StatusCompleted, statusCode, body, ComputeResponseHash(body))
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Release deletes a key that is still processing.
func (r *PostgresRepository) Release(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE key = $1 AND status = $2`, key, StatusProcessing)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// DeleteOlderThan removes records created before NOW() - age.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (n int64, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "idempotency_keys", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE created_at < NOW() - make_interval(secs => $1)`, age.Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	return res.RowsAffected()
}
