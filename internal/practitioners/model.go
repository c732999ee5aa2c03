package practitioners

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a practitioner id has no row.
var ErrNotFound = errors.New("practitioner not found")

// Practitioner is a bookable person. Identifiers are opaque UUIDs so nothing
// downstream can depend on provider-side numbering.
type Practitioner struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Description     string    `json:"description"`
	HourlyRateMinor int64     `json:"hourly_rate_minor"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
