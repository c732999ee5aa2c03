package bookings

import "errors"

var (
	// ErrNotFound is returned when a booking id or checkout reference has no row.
	ErrNotFound = errors.New("booking not found")

	// ErrSlotTaken is returned when a non-cancelled booking already holds the
	// (practitioner, start time) pair. The storage-level unique index is the
	// authoritative source of this error; the pre-insert check only provides a
	// friendlier fast path.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrValidation is returned for malformed input: missing fields, bad email,
	// a start time that is not in the future.
	ErrValidation = errors.New("invalid booking request")

	// ErrNotCancellable is returned when cancelling a booking that is no longer
	// pending. Cancellation of a paid booking is a refund workflow, not a state
	// transition on this API.
	ErrNotCancellable = errors.New("booking is not cancellable")
)
