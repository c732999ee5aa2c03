package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clearslot/clearslot/internal/events"
	"github.com/clearslot/clearslot/internal/observability/metrics"
	"github.com/clearslot/clearslot/internal/scheduling"
	"github.com/clearslot/clearslot/pkg/logging"
)

// CalendarSyncHandler replays failed calendar-event creations from the
// outbox. Jobs for bookings that are no longer confirmed, or that already
// carry an event reference, are delivered as no-ops.
type CalendarSyncHandler struct {
	store    BookingStore
	calendar Calendar
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

func NewCalendarSyncHandler(store BookingStore, calendar Calendar, m *metrics.BookingMetrics, logger *logging.Logger) *CalendarSyncHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarSyncHandler{
		store:    store,
		calendar: calendar,
		metrics:  m,
		logger:   logger,
	}
}

// Handle processes one queued calendar-sync job. Returning nil marks the job
// delivered; a provider error keeps it queued for the next tick.
func (h *CalendarSyncHandler) Handle(ctx context.Context, entry events.OutboxEntry) error {
	if entry.Type != calendarSyncJobType {
		h.logger.Warn("unexpected outbox job type", "type", entry.Type, "job_id", entry.ID)
		return nil
	}

	var job calendarSyncJob
	if err := json.Unmarshal(entry.Payload, &job); err != nil {
		// A malformed payload will never succeed; drop it rather than loop.
		h.logger.Error("malformed calendar sync payload", "job_id", entry.ID, "error", err)
		return nil
	}

	booking, err := h.store.GetByID(ctx, job.BookingID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.logger.Warn("calendar sync job for missing booking", "booking_id", job.BookingID)
			return nil
		}
		return fmt.Errorf("bookings: calendar sync lookup: %w", err)
	}

	if booking.Status != StatusConfirmed || booking.CalendarEventRef != "" {
		return nil
	}

	eventID, err := h.calendar.CreateEvent(ctx, scheduling.CreateEventRequest{
		PractitionerID: booking.PractitionerID,
		ClientName:     booking.ClientName,
		ClientEmail:    booking.ClientEmail,
		ClientPhone:    booking.ClientPhone,
		Start:          booking.StartTime,
		End:            booking.StartTime.Add(time.Hour),
		Title:          fmt.Sprintf("Appointment: %s", booking.ClientName),
	})
	if err != nil {
		h.metrics.ObserveCalendarSync("retry_failed")
		return fmt.Errorf("bookings: calendar sync create event: %w", err)
	}

	if err := h.store.AttachCalendarEventRef(ctx, booking.ID, eventID); err != nil {
		return fmt.Errorf("bookings: calendar sync attach ref: %w", err)
	}

	h.metrics.ObserveCalendarSync("recovered")
	h.logger.Info("calendar event created on retry", "booking_id", booking.ID, "event_ref", eventID)
	return nil
}
