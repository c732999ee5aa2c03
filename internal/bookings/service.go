package bookings

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clearslot/clearslot/internal/observability/metrics"
	"github.com/clearslot/clearslot/internal/payments"
	"github.com/clearslot/clearslot/internal/practitioners"
	"github.com/clearslot/clearslot/internal/scheduling"
	"github.com/clearslot/clearslot/pkg/logging"
)

var bookingsTracer = otel.Tracer("clearslot.internal.bookings")

// calendarSyncJobType is the outbox job type queued when calendar-event
// creation fails on the webhook path.
const calendarSyncJobType = "calendar.create_event.v1"

// calendarSyncJob is the outbox payload for a deferred calendar event.
type calendarSyncJob struct {
	BookingID string `json:"booking_id"`
}

// PractitionerStore is the practitioner lookup the orchestrator needs.
type PractitionerStore interface {
	GetByID(ctx context.Context, id string) (*practitioners.Practitioner, error)
}

// BookingStore is the persistence surface of the orchestrator.
type BookingStore interface {
	Create(ctx context.Context, params CreateParams) (*Booking, error)
	GetByID(ctx context.Context, id string) (*Booking, error)
	GetByCheckoutRef(ctx context.Context, ref string) (*Booking, error)
	FindConflicting(ctx context.Context, practitionerID string, start time.Time) (*Booking, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	AttachPaymentRefs(ctx context.Context, id, checkoutRef, paymentRef string) error
	AttachCalendarEventRef(ctx context.Context, id, eventRef string) error
}

// CheckoutClient opens hosted checkout sessions.
type CheckoutClient interface {
	CreateSession(ctx context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error)
}

// Calendar is the scheduling adapter surface the orchestrator needs.
type Calendar interface {
	ListAvailability(ctx context.Context, practitionerID string) (*scheduling.Availability, error)
	CreateEvent(ctx context.Context, req scheduling.CreateEventRequest) (string, error)
	CancelEvent(ctx context.Context, eventID string) error
}

// OutboxWriter queues retryable side-effect jobs.
type OutboxWriter interface {
	Insert(ctx context.Context, jobType string, payload any) (uuid.UUID, error)
}

// Service is the booking orchestrator: it owns the pending -> confirmed /
// cancelled state machine and coordinates the persistence, scheduling and
// payment adapters.
type Service struct {
	practitioners PractitionerStore
	store         BookingStore
	checkout      CheckoutClient
	calendar      Calendar
	outbox        OutboxWriter
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
}

// NewService wires the orchestrator. outbox and metrics may be nil.
func NewService(
	practitionerStore PractitionerStore,
	store BookingStore,
	checkout CheckoutClient,
	calendar Calendar,
	outbox OutboxWriter,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *Service {
	if practitionerStore == nil || store == nil || checkout == nil || calendar == nil {
		panic("bookings: practitioner store, booking store, checkout and calendar are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		practitioners: practitionerStore,
		store:         store,
		checkout:      checkout,
		calendar:      calendar,
		outbox:        outbox,
		metrics:       m,
		logger:        logger,
	}
}

// AvailabilityResult pairs the practitioner with their open slots. Degraded
// is true when the provider was unreachable and the slots are the local grid.
type AvailabilityResult struct {
	Practitioner *practitioners.Practitioner `json:"practitioner"`
	Slots        []scheduling.TimeSlot       `json:"slots"`
	Degraded     bool                        `json:"degraded"`
}

// Availability loads the practitioner and returns available-only slots.
func (s *Service) Availability(ctx context.Context, practitionerID string) (*AvailabilityResult, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.availability")
	defer span.End()
	span.SetAttributes(attribute.String("clearslot.practitioner_id", practitionerID))

	practitioner, err := s.practitioners.GetByID(ctx, practitionerID)
	if err != nil {
		return nil, err
	}

	availability, err := s.calendar.ListAvailability(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveAvailability(availability.Source)

	open := make([]scheduling.TimeSlot, 0, len(availability.Slots))
	for _, slot := range availability.Slots {
		if slot.Available {
			open = append(open, slot)
		}
	}

	return &AvailabilityResult{
		Practitioner: practitioner,
		Slots:        open,
		Degraded:     availability.Degraded,
	}, nil
}

// CreateRequest is the orchestrator-level booking draft.
type CreateRequest struct {
	PractitionerID string
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	StartTime      time.Time
}

// CreateResult is returned to the client so it can redirect to checkout.
type CreateResult struct {
	BookingID   string `json:"booking_id"`
	CheckoutURL string `json:"checkout_url"`
	AmountMinor int64  `json:"amount_minor"`
}

// Create inserts a pending booking and opens a checkout session. The amount
// is copied from the practitioner's current rate; later rate changes never
// reprice the booking. If checkout creation fails the pending row is kept for
// audit and retry, and the error surfaces to the caller.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()
	span.SetAttributes(attribute.String("clearslot.practitioner_id", req.PractitionerID))

	if err := validateCreate(req); err != nil {
		s.metrics.ObserveBookingCreated("invalid")
		return nil, err
	}

	practitioner, err := s.practitioners.GetByID(ctx, req.PractitionerID)
	if err != nil {
		return nil, err
	}

	start := req.StartTime.UTC()

	// Fast-path check for a friendlier error; the unique index decides races.
	if _, err := s.store.FindConflicting(ctx, req.PractitionerID, start); err == nil {
		s.metrics.ObserveBookingCreated("conflict")
		return nil, ErrSlotTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	booking, err := s.store.Create(ctx, CreateParams{
		PractitionerID: req.PractitionerID,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		StartTime:      start,
		AmountMinor:    practitioner.HourlyRateMinor,
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			s.metrics.ObserveBookingCreated("conflict")
		} else {
			s.metrics.ObserveBookingCreated("error")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("clearslot.booking_id", booking.ID))

	session, err := s.checkout.CreateSession(ctx, payments.CheckoutParams{
		BookingID:   booking.ID,
		AmountMinor: booking.AmountMinor,
		ClientEmail: booking.ClientEmail,
		ClientName:  booking.ClientName,
		Description: fmt.Sprintf("Appointment with %s", practitioner.Name),
	})
	if err != nil {
		// The pending row is deliberately left in place: deleting it would
		// lose the audit trail, and the slot frees up once it is cancelled.
		s.logger.Error("checkout session creation failed; booking left pending without checkout reference",
			"booking_id", booking.ID, "error", err)
		s.metrics.ObserveBookingCreated("checkout_failed")
		return nil, err
	}

	if err := s.store.AttachPaymentRefs(ctx, booking.ID, session.ID, ""); err != nil {
		return nil, err
	}

	s.metrics.ObserveBookingCreated("pending")
	s.logger.Info("booking created",
		"booking_id", booking.ID,
		"practitioner_id", req.PractitionerID,
		"start_time", start,
		"amount_minor", booking.AmountMinor,
	)

	return &CreateResult{
		BookingID:   booking.ID,
		CheckoutURL: session.URL,
		AmountMinor: booking.AmountMinor,
	}, nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.store.GetByID(ctx, id)
}

// GetByCheckoutSession returns a booking by its checkout session reference.
func (s *Service) GetByCheckoutSession(ctx context.Context, sessionID string) (*Booking, error) {
	return s.store.GetByCheckoutRef(ctx, sessionID)
}

// ConfirmFromCheckout applies a verified payment confirmation. Re-confirming
// a confirmed booking is a no-op, not an error: the provider delivers
// at-least-once and out of order. Calendar-event creation is best effort; a
// failure is queued for retry and never affects the confirmation.
func (s *Service) ConfirmFromCheckout(ctx context.Context, conf payments.Confirmation) (payments.ConfirmOutcome, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("clearslot.checkout_session", conf.CheckoutSessionID))

	booking, err := s.lookupForConfirmation(ctx, conf)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return payments.OutcomeUnknownBooking, nil
		}
		return "", err
	}

	switch booking.Status {
	case StatusConfirmed:
		return payments.OutcomeAlreadyConfirmed, nil
	case StatusCancelled:
		// Payment landed after cancellation. Keep the reference for manual
		// reconciliation and refund, but never resurrect the booking.
		s.logger.Warn("payment confirmation for cancelled booking",
			"booking_id", booking.ID, "payment_ref", conf.PaymentRef)
		if err := s.store.AttachPaymentRefs(ctx, booking.ID, conf.CheckoutSessionID, conf.PaymentRef); err != nil {
			return "", err
		}
		return payments.OutcomeIgnored, nil
	}

	if err := s.store.AttachPaymentRefs(ctx, booking.ID, conf.CheckoutSessionID, conf.PaymentRef); err != nil {
		return "", err
	}
	if err := s.store.UpdateStatus(ctx, booking.ID, StatusConfirmed); err != nil {
		return "", err
	}
	s.logger.Info("booking confirmed",
		"booking_id", booking.ID,
		"payment_ref", conf.PaymentRef,
	)

	s.createCalendarEvent(ctx, booking)

	return payments.OutcomeConfirmed, nil
}

// Cancel transitions a pending booking to cancelled. Cancelling an already
// cancelled booking is a no-op; a confirmed booking is not cancellable here
// (that is a refund workflow).
func (s *Service) Cancel(ctx context.Context, id string) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("clearslot.booking_id", id))

	booking, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case StatusCancelled:
		return booking, nil
	case StatusConfirmed:
		return nil, ErrNotCancellable
	}

	if err := s.store.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return nil, err
	}
	booking.Status = StatusCancelled

	if booking.CalendarEventRef != "" {
		if err := s.calendar.CancelEvent(ctx, booking.CalendarEventRef); err != nil {
			s.logger.Warn("calendar event cancellation failed",
				"booking_id", id, "event_ref", booking.CalendarEventRef, "error", err)
		}
	}

	s.logger.Info("booking cancelled", "booking_id", id)
	return booking, nil
}

func (s *Service) lookupForConfirmation(ctx context.Context, conf payments.Confirmation) (*Booking, error) {
	booking, err := s.store.GetByCheckoutRef(ctx, conf.CheckoutSessionID)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	// The checkout reference may never have been attached (crash between
	// session creation and the update); the metadata carries the booking id.
	if conf.BookingID == "" {
		return nil, ErrNotFound
	}
	return s.store.GetByID(ctx, conf.BookingID)
}

// createCalendarEvent makes one direct attempt and falls back to the outbox
// retry queue. It never returns an error: calendar creation is advisory,
// payment is authoritative.
func (s *Service) createCalendarEvent(ctx context.Context, booking *Booking) {
	eventID, err := s.calendar.CreateEvent(ctx, scheduling.CreateEventRequest{
		PractitionerID: booking.PractitionerID,
		ClientName:     booking.ClientName,
		ClientEmail:    booking.ClientEmail,
		ClientPhone:    booking.ClientPhone,
		Start:          booking.StartTime,
		End:            booking.StartTime.Add(time.Hour),
		Title:          fmt.Sprintf("Appointment: %s", booking.ClientName),
	})
	if err != nil {
		s.metrics.ObserveCalendarSync("deferred")
		s.logger.Error("calendar event creation failed; queued for retry",
			"booking_id", booking.ID, "error", err)
		if s.outbox != nil {
			if _, qErr := s.outbox.Insert(ctx, calendarSyncJobType, calendarSyncJob{BookingID: booking.ID}); qErr != nil {
				s.logger.Error("failed to queue calendar sync job", "booking_id", booking.ID, "error", qErr)
			}
		}
		return
	}

	if err := s.store.AttachCalendarEventRef(ctx, booking.ID, eventID); err != nil {
		s.logger.Error("failed to attach calendar event ref", "booking_id", booking.ID, "error", err)
	}
	s.metrics.ObserveCalendarSync("created")
}

func validateCreate(req CreateRequest) error {
	var problems []string
	if strings.TrimSpace(req.PractitionerID) == "" {
		problems = append(problems, "practitioner id is required")
	}
	if strings.TrimSpace(req.ClientName) == "" {
		problems = append(problems, "client name is required")
	}
	if _, err := mail.ParseAddress(req.ClientEmail); err != nil {
		problems = append(problems, "client email is invalid")
	}
	if req.StartTime.IsZero() || !req.StartTime.After(time.Now()) {
		problems = append(problems, "start time must be in the future")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}
