package scheduling

import (
	"context"
	"testing"
	"time"
)

type stubProvider struct {
	busy      []BusyInterval
	busyErr   error
	busyCalls int

	eventID     string
	createErr   error
	lastCreate  CreateEventRequest
	lastTZ      string
	cancelledID string
}

func (s *stubProvider) BusyIntervals(_ context.Context, _ string, _, _ time.Time) ([]BusyInterval, error) {
	s.busyCalls++
	if s.busyErr != nil {
		return nil, s.busyErr
	}
	return s.busy, nil
}

func (s *stubProvider) CreateEvent(_ context.Context, _ string, req CreateEventRequest, timezone string) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.lastCreate = req
	s.lastTZ = timezone
	if s.eventID == "" {
		return "evt-1", nil
	}
	return s.eventID, nil
}

func (s *stubProvider) CancelEvent(_ context.Context, eventID string) error {
	s.cancelledID = eventID
	return nil
}

func newTestAdapter(t *testing.T, provider *stubProvider) *Adapter {
	t.Helper()
	registry, err := NewEventTypeRegistry(`{"prac-1": "evtype-101"}`)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	adapter, err := NewAdapter(provider, registry, nil, "UTC", 14, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	// Wednesday 10:30 UTC; the window starts Thursday.
	return adapter.WithClock(func() time.Time {
		return time.Date(2026, 9, 2, 10, 30, 0, 0, time.UTC)
	})
}

func TestListAvailabilityGridShape(t *testing.T) {
	adapter := newTestAdapter(t, &stubProvider{})

	availability, err := adapter.ListAvailability(context.Background(), "prac-1")
	if err != nil {
		t.Fatalf("ListAvailability: %v", err)
	}
	if availability.Source != SourceProvider || availability.Degraded {
		t.Errorf("source = %s degraded = %v", availability.Source, availability.Degraded)
	}

	now := time.Date(2026, 9, 2, 10, 30, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 9, 17, 0, 0, 0, 0, time.UTC)
	for _, slot := range availability.Slots {
		if !slot.Start.After(now) {
			t.Errorf("slot %v not in the future", slot.Start)
		}
		if !slot.Start.Before(windowEnd) {
			t.Errorf("slot %v outside the window", slot.Start)
		}
		switch slot.Start.Weekday() {
		case time.Saturday, time.Sunday:
			t.Errorf("weekend slot %v", slot.Start)
		}
		if h := slot.Start.Hour(); h < 9 || h > 16 {
			t.Errorf("slot hour %d outside business hours", h)
		}
		if slot.End.Sub(slot.Start) != time.Hour {
			t.Errorf("slot duration %v", slot.End.Sub(slot.Start))
		}
		if !slot.Available {
			t.Errorf("slot %v should be available with no busy intervals", slot.Start)
		}
	}

	// 14-day window starting Thursday 2026-09-03 covers 10 weekdays of 8 slots.
	if len(availability.Slots) != 80 {
		t.Errorf("expected 80 slots, got %d", len(availability.Slots))
	}
}

func TestListAvailabilityMarksBusyOverlaps(t *testing.T) {
	// Busy 10:30-11:30 on the first window day knocks out the 10:00 and
	// 11:00 slots; the 09:00 slot touching nothing stays open.
	provider := &stubProvider{busy: []BusyInterval{{
		Start: time.Date(2026, 9, 3, 10, 30, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 3, 11, 30, 0, 0, time.UTC),
	}}}
	adapter := newTestAdapter(t, provider)

	availability, err := adapter.ListAvailability(context.Background(), "prac-1")
	if err != nil {
		t.Fatalf("ListAvailability: %v", err)
	}

	status := map[int]bool{}
	for _, slot := range availability.Slots {
		if slot.Start.Day() == 3 && slot.Start.Month() == time.September {
			status[slot.Start.Hour()] = slot.Available
		}
	}
	if status[9] != true {
		t.Error("09:00 slot should be open")
	}
	if status[10] != false || status[11] != false {
		t.Errorf("10:00/11:00 slots should be busy: %v", status)
	}
	if status[12] != true {
		t.Error("12:00 slot should be open")
	}
}

func TestListAvailabilityTouchingEndpointsDoNotOverlap(t *testing.T) {
	// Busy exactly 09:00-10:00: only the 09:00 slot is taken, the 10:00
	// slot starting at the busy end stays open.
	provider := &stubProvider{busy: []BusyInterval{{
		Start: time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC),
	}}}
	adapter := newTestAdapter(t, provider)

	availability, err := adapter.ListAvailability(context.Background(), "prac-1")
	if err != nil {
		t.Fatalf("ListAvailability: %v", err)
	}
	for _, slot := range availability.Slots {
		if slot.Start.Equal(time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC)) && slot.Available {
			t.Error("09:00 slot should be busy")
		}
		if slot.Start.Equal(time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)) && !slot.Available {
			t.Error("10:00 slot should be open, intervals are half-open")
		}
	}
}

func TestListAvailabilityFallsBackOnProviderError(t *testing.T) {
	provider := &stubProvider{busyErr: ErrProviderUnavailable}
	adapter := newTestAdapter(t, provider)

	availability, err := adapter.ListAvailability(context.Background(), "prac-1")
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if !availability.Degraded || availability.Source != SourceFallback {
		t.Errorf("expected degraded fallback, got source=%s degraded=%v", availability.Source, availability.Degraded)
	}
	if len(availability.Slots) == 0 {
		t.Error("fallback grid must not be empty")
	}
	for _, slot := range availability.Slots {
		if !slot.Available {
			t.Errorf("fallback slot %v should be available", slot.Start)
		}
	}
}

func TestListAvailabilityUnmappedPractitioner(t *testing.T) {
	adapter := newTestAdapter(t, &stubProvider{})

	if _, err := adapter.ListAvailability(context.Background(), "prac-unmapped"); err == nil {
		t.Fatal("expected error for unmapped practitioner")
	}
}

func TestCreateEventDefaultsEnd(t *testing.T) {
	provider := &stubProvider{}
	adapter := newTestAdapter(t, provider)
	start := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)

	id, err := adapter.CreateEvent(context.Background(), CreateEventRequest{
		PractitionerID: "prac-1",
		ClientName:     "Ada Lovelace",
		Start:          start,
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if id != "evt-1" {
		t.Errorf("event id = %q", id)
	}
	if !provider.lastCreate.End.Equal(start.Add(time.Hour)) {
		t.Errorf("end defaulted to %v", provider.lastCreate.End)
	}
	if provider.lastTZ != "UTC" {
		t.Errorf("timezone = %q", provider.lastTZ)
	}
}

func TestOverlapsRule(t *testing.T) {
	base := time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name           string
		s2, e2         time.Time
		expectsOverlap bool
	}{
		{"identical", base, base.Add(time.Hour), true},
		{"contained", base.Add(15 * time.Minute), base.Add(30 * time.Minute), true},
		{"straddles start", base.Add(-30 * time.Minute), base.Add(30 * time.Minute), true},
		{"straddles end", base.Add(30 * time.Minute), base.Add(90 * time.Minute), true},
		{"touches end", base.Add(time.Hour), base.Add(2 * time.Hour), false},
		{"touches start", base.Add(-time.Hour), base, false},
		{"disjoint", base.Add(3 * time.Hour), base.Add(4 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := overlaps(base, base.Add(time.Hour), tc.s2, tc.e2); got != tc.expectsOverlap {
				t.Errorf("overlaps = %v, want %v", got, tc.expectsOverlap)
			}
		})
	}
}

func TestNewAdapterRejectsBadTimezone(t *testing.T) {
	registry, _ := NewEventTypeRegistry(`{}`)
	if _, err := NewAdapter(&stubProvider{}, registry, nil, "Mars/Olympus", 14, nil); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
