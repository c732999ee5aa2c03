package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clearslot/clearslot/internal/payments"
	"github.com/clearslot/clearslot/internal/practitioners"
	"github.com/clearslot/clearslot/internal/scheduling"
	"github.com/clearslot/clearslot/pkg/logging"
)

// Refunder issues refunds on the admin surface.
type Refunder interface {
	Refund(ctx context.Context, paymentRef string, amountMinor int64, reason string) (*payments.RefundResult, error)
}

// Handler exposes the booking flow over HTTP.
type Handler struct {
	service  *Service
	refunder Refunder
	validate *validator.Validate
	logger   *logging.Logger
}

func NewHandler(service *Service, refunder Refunder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		refunder: refunder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

type createBookingRequest struct {
	PractitionerID string `json:"practitioner_id" validate:"required,uuid4"`
	ClientName     string `json:"client_name" validate:"required,max=200"`
	ClientEmail    string `json:"client_email" validate:"required,email"`
	ClientPhone    string `json:"client_phone" validate:"omitempty,e164"`
	StartTime      string `json:"start_time" validate:"required"`
}

type refundRequest struct {
	AmountMinor int64  `json:"amount_minor" validate:"omitempty,gte=0"`
	Reason      string `json:"reason" validate:"omitempty,max=500"`
}

// Availability handles GET /practitioners/{id}/availability.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	practitionerID := chi.URLParam(r, "id")

	result, err := h.service.Availability(r.Context(), practitionerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Create handles POST /bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "start_time must be RFC 3339")
		return
	}

	result, err := h.service.Create(r.Context(), CreateRequest{
		PractitionerID: req.PractitionerID,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		StartTime:      startTime,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Get handles GET /bookings/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	booking, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// GetByCheckoutSession handles GET /bookings/by-checkout-session/{sessionID}.
// The success page uses it to show the booking after redirect.
func (h *Handler) GetByCheckoutSession(w http.ResponseWriter, r *http.Request) {
	booking, err := h.service.GetByCheckoutSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// Cancel handles POST /bookings/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	booking, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// Refund handles POST /admin/payments/{bookingID}/refund. The router guards
// it with admin authentication.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	if h.refunder == nil {
		writeJSONError(w, http.StatusNotImplemented, "refunds are not enabled")
		return
	}

	var req refundRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			writeJSONError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
	}

	booking, err := h.service.Get(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if booking.Status != StatusConfirmed || booking.PaymentRef == "" {
		writeJSONError(w, http.StatusConflict, "booking has no refundable payment")
		return
	}
	if req.AmountMinor > booking.AmountMinor {
		writeJSONError(w, http.StatusBadRequest, "refund exceeds the amount paid")
		return
	}

	result, err := h.refunder.Refund(r.Context(), booking.PaymentRef, req.AmountMinor, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"booking_id": booking.ID,
		"refund_id":  result.RefundID,
		"status":     result.Status,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, practitioners.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrSlotTaken):
		writeJSONError(w, http.StatusConflict, "slot is already booked")
	case errors.Is(err, ErrNotCancellable):
		writeJSONError(w, http.StatusConflict, "confirmed bookings cannot be cancelled")
	case errors.Is(err, ErrValidation):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scheduling.ErrProviderUnavailable), errors.Is(err, payments.ErrProviderUnavailable):
		writeJSONError(w, http.StatusBadGateway, "upstream provider unavailable")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return "invalid field: " + first.Field()
	}
	return "invalid request"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
