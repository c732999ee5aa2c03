package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/clearslot/clearslot/pkg/logging"
)

// Business-hours candidate grid: one-hour slots, first start 09:00, last
// start 16:00, Monday through Friday.
const (
	firstSlotHour = 9
	lastSlotHour  = 16
	slotDuration  = time.Hour

	defaultWindowDays = 14
)

// Provider is what the adapter needs from the external scheduling API.
// *Client satisfies it; tests substitute stubs.
type Provider interface {
	BusyIntervals(ctx context.Context, eventTypeID string, from, to time.Time) ([]BusyInterval, error)
	CreateEvent(ctx context.Context, eventTypeID string, req CreateEventRequest, timezone string) (string, error)
	CancelEvent(ctx context.Context, eventID string) error
}

// Adapter converts provider responses into internal time slots and routes
// practitioner ids through the event type registry.
type Adapter struct {
	provider   Provider
	registry   *EventTypeRegistry
	cache      *BusyCache
	timezone   *time.Location
	windowDays int
	logger     *logging.Logger
	now        func() time.Time
}

// NewAdapter wires the adapter. cache may be nil (cache-aside is optional).
func NewAdapter(provider Provider, registry *EventTypeRegistry, cache *BusyCache, timezone string, windowDays int, logger *logging.Logger) (*Adapter, error) {
	if provider == nil {
		return nil, fmt.Errorf("scheduling: provider required")
	}
	if registry == nil {
		return nil, fmt.Errorf("scheduling: event type registry required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduling: bad timezone %q: %w", timezone, err)
	}
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	return &Adapter{
		provider:   provider,
		registry:   registry,
		cache:      cache,
		timezone:   loc,
		windowDays: windowDays,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// WithClock overrides the adapter's clock (for testing).
func (a *Adapter) WithClock(now func() time.Time) *Adapter {
	if now != nil {
		a.now = now
	}
	return a
}

// ListAvailability returns the candidate grid for the next window, with slots
// overlapping a provider busy interval marked unavailable. When the provider
// cannot be reached the grid is returned untouched and flagged Degraded so
// callers can warn that the data may be stale.
func (a *Adapter) ListAvailability(ctx context.Context, practitionerID string) (*Availability, error) {
	eventTypeID, err := a.registry.Lookup(practitionerID)
	if err != nil {
		return nil, err
	}

	now := a.now().In(a.timezone)
	windowStart := startOfDay(now.AddDate(0, 0, 1))
	windowEnd := windowStart.AddDate(0, 0, a.windowDays)

	slots := a.candidateGrid(now, windowStart, windowEnd)

	busy, err := a.busyIntervals(ctx, eventTypeID, windowStart, windowEnd)
	if err != nil {
		a.logger.Warn("availability lookup degraded to local grid",
			"practitioner_id", practitionerID, "error", err)
		return &Availability{Slots: slots, Source: SourceFallback, Degraded: true}, nil
	}

	for i := range slots {
		for _, b := range busy {
			if overlaps(slots[i].Start, slots[i].End, b.Start, b.End) {
				slots[i].Available = false
				break
			}
		}
	}
	return &Availability{Slots: slots, Source: SourceProvider}, nil
}

// CreateEvent books the confirmed appointment on the provider calendar. No
// fallback here: failures are reported to the caller, who treats the calendar
// as advisory relative to the payment.
func (a *Adapter) CreateEvent(ctx context.Context, req CreateEventRequest) (string, error) {
	eventTypeID, err := a.registry.Lookup(req.PractitionerID)
	if err != nil {
		return "", err
	}
	if req.End.IsZero() {
		req.End = req.Start.Add(slotDuration)
	}
	return a.provider.CreateEvent(ctx, eventTypeID, req, a.timezone.String())
}

// CancelEvent deletes a provider calendar event, best effort.
func (a *Adapter) CancelEvent(ctx context.Context, eventID string) error {
	return a.provider.CancelEvent(ctx, eventID)
}

func (a *Adapter) busyIntervals(ctx context.Context, eventTypeID string, from, to time.Time) ([]BusyInterval, error) {
	if a.cache != nil {
		if busy, ok := a.cache.Get(ctx, eventTypeID, from, to); ok {
			return busy, nil
		}
	}
	busy, err := a.provider.BusyIntervals(ctx, eventTypeID, from, to)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.Set(ctx, eventTypeID, from, to, busy)
	}
	return busy, nil
}

// candidateGrid generates weekday business-hour slots, all initially
// available, every start strictly after now.
func (a *Adapter) candidateGrid(now, windowStart, windowEnd time.Time) []TimeSlot {
	var slots []TimeSlot
	for day := windowStart; day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		for hour := firstSlotHour; hour <= lastSlotHour; hour++ {
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, a.timezone)
			if !start.After(now) {
				continue
			}
			slots = append(slots, TimeSlot{
				Start:     start,
				End:       start.Add(slotDuration),
				Available: true,
			})
		}
	}
	return slots
}

// overlaps implements the half-open interval rule: [s1,e1) and [s2,e2)
// overlap iff s1 < e2 && s2 < e1. Touching endpoints do not overlap.
func overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
