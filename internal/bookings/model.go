package bookings

import "time"

// Status is the booking lifecycle state. pending moves to confirmed or
// cancelled; both of those are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is a persisted appointment request. AmountMinor is copied from the
// practitioner's rate at creation time so later rate edits never reprice it.
type Booking struct {
	ID                 string    `json:"id"`
	PractitionerID     string    `json:"practitioner_id"`
	ClientName         string    `json:"client_name"`
	ClientEmail        string    `json:"client_email"`
	ClientPhone        string    `json:"client_phone"`
	StartTime          time.Time `json:"start_time"`
	Status             Status    `json:"status"`
	CheckoutSessionRef string    `json:"checkout_session_ref,omitempty"`
	PaymentRef         string    `json:"payment_ref,omitempty"`
	CalendarEventRef   string    `json:"calendar_event_ref,omitempty"`
	AmountMinor        int64     `json:"amount_minor"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CreateParams is the draft used to insert a pending booking.
type CreateParams struct {
	PractitionerID string
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	StartTime      time.Time
	AmountMinor    int64
}
