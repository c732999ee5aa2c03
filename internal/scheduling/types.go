package scheduling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrProviderUnavailable wraps any scheduling provider failure: timeout,
// non-2xx status, malformed response.
var ErrProviderUnavailable = errors.New("scheduling provider unavailable")

// Slot source tags let callers distinguish real provider data from the local
// fallback grid.
const (
	SourceProvider = "provider"
	SourceFallback = "fallback"
)

// TimeSlot is a candidate appointment window. Never persisted.
type TimeSlot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// BusyInterval is a half-open [Start, End) interval during which the
// practitioner's calendar is occupied.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Availability is the result of a slot query. Degraded is true when the
// provider could not be reached and Slots is the locally generated grid.
type Availability struct {
	Slots    []TimeSlot `json:"slots"`
	Source   string     `json:"source"`
	Degraded bool       `json:"degraded"`
}

// CreateEventRequest describes the calendar event created after payment
// confirmation.
type CreateEventRequest struct {
	PractitionerID string
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	Start          time.Time
	End            time.Time
	Title          string
}

// EventTypeRegistry maps internal practitioner ids to the provider's event
// type ids. It is loaded once from configuration; a missing entry is a
// configuration error, never guessed around at runtime.
type EventTypeRegistry struct {
	entries map[string]string
}

// NewEventTypeRegistry parses the JSON mapping from configuration.
func NewEventTypeRegistry(rawJSON string) (*EventTypeRegistry, error) {
	entries := map[string]string{}
	raw := strings.TrimSpace(rawJSON)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return nil, fmt.Errorf("scheduling: parse event type map: %w", err)
		}
	}
	for id, eventType := range entries {
		if strings.TrimSpace(id) == "" || strings.TrimSpace(eventType) == "" {
			return nil, fmt.Errorf("scheduling: event type map has empty key or value")
		}
	}
	return &EventTypeRegistry{entries: entries}, nil
}

// Lookup resolves a practitioner id to the provider event type id.
func (r *EventTypeRegistry) Lookup(practitionerID string) (string, error) {
	eventType, ok := r.entries[practitionerID]
	if !ok {
		return "", fmt.Errorf("scheduling: no event type mapped for practitioner %s", practitionerID)
	}
	return eventType, nil
}

// Validate fails fast when any known practitioner lacks a mapping. Called at
// startup with the ids from the practitioner table.
func (r *EventTypeRegistry) Validate(practitionerIDs []string) error {
	var missing []string
	for _, id := range practitionerIDs {
		if _, ok := r.entries[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("scheduling: practitioners without event type mapping: %s", strings.Join(missing, ", "))
	}
	return nil
}
