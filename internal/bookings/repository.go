package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index on (practitioner_id, start_time) over non-cancelled rows.
const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists bookings and their lifecycle transitions.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by pgx.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("bookings: db required")
	}
	return &Repository{db: db}
}

const bookingColumns = `id, practitioner_id, client_name, client_email, client_phone,
	start_time, status, checkout_session_ref, payment_ref, calendar_event_ref,
	amount_minor, created_at, updated_at`

// Create inserts a pending booking. A unique-index violation on the slot maps
// to ErrSlotTaken; the index, not the pre-check, decides races.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*Booking, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO bookings (id, practitioner_id, client_name, client_email, client_phone, start_time, status, amount_minor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		params.PractitionerID,
		params.ClientName,
		params.ClientEmail,
		params.ClientPhone,
		params.StartTime.UTC(),
		StatusPending,
		params.AmountMinor,
	).Scan(&createdAt, &updatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("bookings: insert failed: %w", err)
	}

	return &Booking{
		ID:             id,
		PractitionerID: params.PractitionerID,
		ClientName:     params.ClientName,
		ClientEmail:    params.ClientEmail,
		ClientPhone:    params.ClientPhone,
		StartTime:      params.StartTime.UTC(),
		Status:         StatusPending,
		AmountMinor:    params.AmountMinor,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// GetByID fetches a booking.
func (r *Repository) GetByID(ctx context.Context, id string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByCheckoutRef fetches a booking by its checkout session reference. This
// is the sole lookup key on the webhook path and is backed by an index.
func (r *Repository) GetByCheckoutRef(ctx context.Context, ref string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE checkout_session_ref = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, ref))
}

// FindConflicting returns any non-cancelled booking for the practitioner at
// exactly the given instant, or ErrNotFound.
func (r *Repository) FindConflicting(ctx context.Context, practitionerID string, start time.Time) (*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE practitioner_id = $1 AND start_time = $2 AND status <> $3
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, practitionerID, start.UTC(), StatusCancelled))
}

// UpdateStatus sets the booking status. Setting the same status twice is a
// no-op at the row level; updated_at is bumped either way.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	query := `
		UPDATE bookings
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("bookings: update status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachPaymentRefs stores the checkout session and payment confirmation
// references. Empty arguments leave the existing value in place.
func (r *Repository) AttachPaymentRefs(ctx context.Context, id, checkoutRef, paymentRef string) error {
	query := `
		UPDATE bookings
		SET checkout_session_ref = COALESCE(NULLIF($2, ''), checkout_session_ref),
		    payment_ref = COALESCE(NULLIF($3, ''), payment_ref),
		    updated_at = now()
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, id, checkoutRef, paymentRef)
	if err != nil {
		return fmt.Errorf("bookings: attach payment refs failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachCalendarEventRef stores the provider calendar event id once the
// calendar side effect succeeds.
func (r *Repository) AttachCalendarEventRef(ctx context.Context, id, eventRef string) error {
	query := `
		UPDATE bookings
		SET calendar_event_ref = $2, updated_at = now()
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, id, eventRef)
	if err != nil {
		return fmt.Errorf("bookings: attach calendar ref failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (*Booking, error) {
	var (
		b           Booking
		checkoutRef pgtype.Text
		paymentRef  pgtype.Text
		calendarRef pgtype.Text
	)
	if err := row.Scan(
		&b.ID,
		&b.PractitionerID,
		&b.ClientName,
		&b.ClientEmail,
		&b.ClientPhone,
		&b.StartTime,
		&b.Status,
		&checkoutRef,
		&paymentRef,
		&calendarRef,
		&b.AmountMinor,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bookings: select failed: %w", err)
	}
	b.CheckoutSessionRef = checkoutRef.String
	b.PaymentRef = paymentRef.String
	b.CalendarEventRef = calendarRef.String
	return &b, nil
}
