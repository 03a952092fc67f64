package civilian

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/geo"
	"github.com/onnwee/civitas/internal/tracing"
)

// PostgresRepository implements Repository on the civilians table.
// skills and tags are text[]; skill_levels and resources are jsonb.
type PostgresRepository struct {
	db     *sql.DB
	scorer *capability.Scorer
}

// NewPostgresRepository creates a PostgresRepository deriving with scorer.
func NewPostgresRepository(db *sql.DB, scorer *capability.Scorer) *PostgresRepository {
	return &PostgresRepository{db: db, scorer: scorer}
}

const profileColumns = `user_id, full_name, address, dob, lat, lon, education, industry,
	free_text, skills, skill_levels, tags, resources, availability, capability_score,
	status, created_at, last_updated`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Snapshot reads every profile inside one repeatable-read, read-only
// transaction so concurrent writes are never observed half-applied.
func (r *PostgresRepository) Snapshot(ctx context.Context) (profiles []*Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "civilians", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT `+profileColumns+` FROM civilians ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query civilians: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan civilian: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate civilians: %w", err)
	}
	return profiles, tx.Commit()
}

// Get returns one profile.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (p *Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "civilians", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()
	return getProfile(ctx, r.db, userID)
}

func getProfile(ctx context.Context, q querier, userID string) (*Profile, error) {
	p, err := scanProfile(q.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM civilians WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.ErrNotFound, "civilian %s not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get civilian: %w", err)
	}
	return p, nil
}

// Upsert inserts or updates the owner-editable columns. status and
// created_at are only written on insert.
func (r *PostgresRepository) Upsert(ctx context.Context, in *Profile) (out *Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "civilians", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	p := in.Clone()
	p.Derive(r.scorer)

	levels, err := json.Marshal(nonNilLevels(p.SkillLevels))
	if err != nil {
		return nil, fmt.Errorf("encode skill levels: %w", err)
	}
	resources, err := json.Marshal(nonNilResources(p.Resources))
	if err != nil {
		return nil, fmt.Errorf("encode resources: %w", err)
	}

	var lat, lon sql.NullFloat64
	if p.Location != nil {
		lat = sql.NullFloat64{Float64: p.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: p.Location.Lon, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO civilians (user_id, full_name, address, dob, lat, lon, education, industry,
			free_text, skills, skill_levels, tags, resources, availability, capability_score,
			status, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			address = EXCLUDED.address,
			dob = EXCLUDED.dob,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			education = EXCLUDED.education,
			industry = EXCLUDED.industry,
			free_text = EXCLUDED.free_text,
			skills = EXCLUDED.skills,
			skill_levels = EXCLUDED.skill_levels,
			tags = EXCLUDED.tags,
			resources = EXCLUDED.resources,
			availability = EXCLUDED.availability,
			capability_score = EXCLUDED.capability_score,
			last_updated = NOW()
		RETURNING `+profileColumns,
		p.UserID, p.PII.FullName, p.PII.Address, p.PII.DOB, lat, lon, string(p.Education), p.Industry,
		p.FreeText, pq.Array(p.Skills), levels, pq.Array(p.Tags), resources, string(p.Availability),
		p.CapabilityScore, string(StatusAvailable))

	out, err = scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("upsert civilian: %w", err)
	}
	return out, nil
}

// TransitionStatus updates the status only if it still equals from.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, userID string, from, to Status) (p *Profile, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err = TransitionStatusTx(ctx, tx, userID, from, to)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status transition: %w", err)
	}
	return p, nil
}

// TransitionStatusTx is TransitionStatus inside a caller-owned transaction,
// so a status change can commit together with dependent rows.
func TransitionStatusTx(ctx context.Context, tx *sql.Tx, userID string, from, to Status) (p *Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "civilians", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	row := tx.QueryRowContext(ctx, `
		UPDATE civilians SET status = $3, last_updated = NOW()
		WHERE user_id = $1 AND status = $2
		RETURNING `+profileColumns, userID, string(from), string(to))
	p, err = scanProfile(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update civilian status: %w", err)
	}

	// No row changed: either the civilian is unknown or the status moved on.
	current, err := getProfile(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return nil, apperr.Newf(apperr.ErrConflict, "civilian %s is %s, not %s", userID, current.Status, from)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p                       Profile
		dob                     sql.NullTime
		lat, lon                sql.NullFloat64
		education, availability string
		status                  string
		levels, resources       []byte
		skills, tags            pq.StringArray
	)
	err := row.Scan(&p.UserID, &p.PII.FullName, &p.PII.Address, &dob, &lat, &lon, &education,
		&p.Industry, &p.FreeText, &skills, &levels, &tags, &resources, &availability,
		&p.CapabilityScore, &status, &p.CreatedAt, &p.LastUpdated)
	if err != nil {
		return nil, err
	}

	if dob.Valid {
		d := dob.Time
		p.PII.DOB = &d
	}
	if lat.Valid && lon.Valid {
		p.Location = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	p.Education = capability.Education(education)
	p.Availability = Availability(availability)
	p.Status = Status(status)
	p.Skills = []string(skills)
	p.Tags = []string(tags)

	// Undecodable jsonb is surfaced as a corrupt record, not a failed read.
	if len(levels) > 0 {
		if err := json.Unmarshal(levels, &p.SkillLevels); err != nil {
			p.SkillLevels = nil
			p.MarkCorrupt(fmt.Errorf("decode skill_levels: %w", err))
		}
	}
	if len(resources) > 0 {
		if err := json.Unmarshal(resources, &p.Resources); err != nil {
			p.Resources = nil
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.LastUpdated = p.LastUpdated.UTC()
	return &p, nil
}

func nonNilLevels(l capability.Levels) capability.Levels {
	if l == nil {
		return capability.Levels{}
	}
	return l
}

func nonNilResources(r []Resource) []Resource {
	if r == nil {
		return []Resource{}
	}
	return r
}
