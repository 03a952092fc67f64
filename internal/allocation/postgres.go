package allocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/tracing"
)

// PostgresStore implements Store on the allocations and civilians tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Allocate implements Store. The conditional status update and the insert
// share one transaction; the row lock taken by the update serialises
// concurrent attempts on the same civilian.
func (s *PostgresStore) Allocate(ctx context.Context, a *Allocation) (out *Allocation, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin allocation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := civilian.TransitionStatusTx(ctx, tx, a.UserID, civilian.StatusAvailable, civilian.StatusAllocated); err != nil {
		return nil, err
	}

	ictx, endSpan := tracing.StartDBSpan(ctx, "allocations", tracing.DBOperationInsert)
	out = &Allocation{}
	err = tx.QueryRowContext(ictx, `
		INSERT INTO allocations (id, user_id, mission_code, allocated_by, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+allocationColumns,
		a.ID, a.UserID, a.MissionCode, a.AllocatedBy, a.Status, a.CreatedAt,
	).Scan(&out.ID, &out.UserID, &out.MissionCode, &out.AllocatedBy, &out.Status, &out.CreatedAt)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("insert allocation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}
	return out, nil
}

const allocationColumns = `id, user_id, mission_code, allocated_by, status, created_at`

// ListActive implements Store.
func (s *PostgresStore) ListActive(ctx context.Context, limit int) (out []*Allocation, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "allocations", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + allocationColumns + ` FROM allocations
		WHERE status = $1 ORDER BY created_at DESC, id`
	args := []any{StatusActive}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	out = []*Allocation{}
	for rows.Next() {
		a := &Allocation{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.MissionCode, &a.AllocatedBy, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const requestColumns = `id, authority_id, type, user_id, message, status, created_at, updated_at`

// CreateRequest implements Store. The insert only happens when the civilian
// exists, so an unknown user_id returns no row.
func (s *PostgresStore) CreateRequest(ctx context.Context, r *AuthorityRequest) (out *AuthorityRequest, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "authority_requests", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO authority_requests (`+requestColumns+`)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (SELECT 1 FROM civilians WHERE user_id = $4)
		RETURNING `+requestColumns,
		r.ID, r.AuthorityID, r.Type, r.UserID, r.Message, r.Status, r.CreatedAt, r.UpdatedAt)
	out, err = scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.ErrNotFound, "civilian %s not found", r.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert authority request: %w", err)
	}
	return out, nil
}

// ListRequests implements Store.
func (s *PostgresStore) ListRequests(ctx context.Context, authorityID string, limit int) (out []*AuthorityRequest, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "authority_requests", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + requestColumns + ` FROM authority_requests
		WHERE authority_id = $1 ORDER BY created_at DESC, id`
	args := []any{authorityID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list authority requests: %w", err)
	}
	defer rows.Close()

	out = []*AuthorityRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan authority request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*AuthorityRequest, error) {
	r := &AuthorityRequest{}
	if err := row.Scan(&r.ID, &r.AuthorityID, &r.Type, &r.UserID, &r.Message,
		&r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}
