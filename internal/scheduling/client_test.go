package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBusyIntervalsQueryAndParse(t *testing.T) {
	var gotQuery map[string][]string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/availability/busy" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"busy":[
			{"start":"2026-09-03T10:00:00Z","end":"2026-09-03T11:00:00Z"},
			{"start":"2026-09-04T14:00:00Z","end":"2026-09-04T15:30:00Z"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "acct-1", nil)
	from := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 14)

	busy, err := client.BusyIntervals(context.Background(), "evtype-101", from, to)
	if err != nil {
		t.Fatalf("BusyIntervals: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(busy))
	}
	if !busy[0].Start.Equal(time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("first start = %v", busy[0].Start)
	}

	if gotAuth != "Bearer key-1" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if got := gotQuery["eventTypeId"]; len(got) != 1 || got[0] != "evtype-101" {
		t.Errorf("eventTypeId = %v", got)
	}
	if got := gotQuery["account"]; len(got) != 1 || got[0] != "acct-1" {
		t.Errorf("account = %v", got)
	}
	if got := gotQuery["dateFrom"]; len(got) != 1 || got[0] != "2026-09-03T00:00:00Z" {
		t.Errorf("dateFrom = %v", got)
	}
}

func TestBusyIntervalsBadTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"busy":[{"start":"yesterday","end":"tomorrow"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "acct-1", nil)
	_, err := client.BusyIntervals(context.Background(), "evtype-101", time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestBusyIntervalsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "acct-1", nil)
	_, err := client.BusyIntervals(context.Background(), "evtype-101", time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCreateEventPostsAttendee(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/events" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"evt-77"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "acct-1", nil)
	start := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	id, err := client.CreateEvent(context.Background(), "evtype-101", CreateEventRequest{
		ClientName:  "Ada Lovelace",
		ClientEmail: "ada@example.com",
		Start:       start,
		End:         start.Add(time.Hour),
		Title:       "Appointment: Ada Lovelace",
	}, "Europe/London")
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if id != "evt-77" {
		t.Errorf("event id = %q", id)
	}
	if gotBody["timezone"] != "Europe/London" {
		t.Errorf("timezone = %v", gotBody["timezone"])
	}
	attendee, ok := gotBody["attendee"].(map[string]any)
	if !ok || attendee["email"] != "ada@example.com" {
		t.Errorf("attendee = %v", gotBody["attendee"])
	}
}

func TestCreateEventEmptyID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "acct-1", nil)
	_, err := client.CreateEvent(context.Background(), "evtype-101", CreateEventRequest{}, "UTC")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCancelEventEscapesID(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "acct-1", nil)
	if err := client.CancelEvent(context.Background(), "evt/77"); err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}
	if gotPath != "/v1/events/evt%2F77" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestClientMissingAPIKey(t *testing.T) {
	client := NewClient("http://localhost:0", "", "acct-1", nil)
	_, err := client.BusyIntervals(context.Background(), "evtype-101", time.Now(), time.Now())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
