package practitioners

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores practitioners in the relational database.
type Repository struct {
	db DB
}

// NewRepository initializes a repo backed by pgx.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("practitioners: db required")
	}
	return &Repository{db: db}
}

// GetByID fetches a single practitioner.
func (r *Repository) GetByID(ctx context.Context, id string) (*Practitioner, error) {
	query := `
		SELECT id, name, email, description, hourly_rate_minor, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`
	var p Practitioner
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Description,
		&p.HourlyRateMinor,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("practitioners: select failed: %w", err)
	}
	return &p, nil
}

// List returns all practitioners ordered by name.
func (r *Repository) List(ctx context.Context) ([]Practitioner, error) {
	query := `
		SELECT id, name, email, description, hourly_rate_minor, created_at, updated_at
		FROM practitioners
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("practitioners: list failed: %w", err)
	}
	defer rows.Close()

	var out []Practitioner
	for rows.Next() {
		var p Practitioner
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Email,
			&p.Description,
			&p.HourlyRateMinor,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("practitioners: scan failed: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListIDs returns every practitioner id; used to validate the event-type
// registry at startup.
func (r *Repository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM practitioners`)
	if err != nil {
		return nil, fmt.Errorf("practitioners: list ids failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("practitioners: scan id failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateHourlyRate changes a practitioner's rate. Bookings copy the rate at
// creation time, so existing rows are unaffected.
func (r *Repository) UpdateHourlyRate(ctx context.Context, id string, rateMinor int64) error {
	if rateMinor < 0 {
		return fmt.Errorf("practitioners: hourly rate must be non-negative")
	}
	query := `
		UPDATE practitioners
		SET hourly_rate_minor = $2, updated_at = now()
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, id, rateMinor)
	if err != nil {
		return fmt.Errorf("practitioners: update rate failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
