package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clearslot/clearslot/internal/observability/metrics"
	"github.com/clearslot/clearslot/pkg/logging"
)

// ErrSignatureInvalid is returned when a webhook payload fails verification.
// Unverified payloads are never processed.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// signatureTolerance bounds how stale a signed timestamp may be.
const signatureTolerance = 5 * time.Minute

// checkoutCompletedEvent is the only event type that confirms a booking.
const checkoutCompletedEvent = "checkout.session.completed"

// Event is the provider's webhook envelope.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object sessionObject `json:"object"`
	} `json:"data"`
}

// sessionObject is the checkout session carried by the webhook.
type sessionObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
	Status        string            `json:"status"`
}

// Confirmation is the tuple extracted from a completed checkout event.
type Confirmation struct {
	BookingID         string
	CheckoutSessionID string
	PaymentRef        string
	AmountMinor       int64
}

// ConfirmOutcome tells the webhook handler how the orchestrator resolved a
// confirmation, so the HTTP status can be chosen without importing it.
type ConfirmOutcome string

const (
	OutcomeConfirmed        ConfirmOutcome = "confirmed"
	OutcomeAlreadyConfirmed ConfirmOutcome = "already_confirmed"
	OutcomeUnknownBooking   ConfirmOutcome = "unknown_booking"
	// OutcomeIgnored covers confirmations that arrive for a booking in a
	// terminal state other than confirmed (e.g. cancelled before payment).
	OutcomeIgnored ConfirmOutcome = "ignored"
)

// BookingConfirmer applies a payment confirmation to the booking state machine.
type BookingConfirmer interface {
	ConfirmFromCheckout(ctx context.Context, conf Confirmation) (ConfirmOutcome, error)
}

// ProcessedTracker deduplicates provider event ids (at-least-once delivery).
type ProcessedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// VerifyNotification checks the signature against the untouched raw body and
// parses the event. Any re-serialization upstream invalidates the signature,
// so callers must pass the exact bytes received.
func VerifyNotification(payload []byte, signatureHeader, secret string) (*Event, error) {
	if !verifySignature(secret, payload, signatureHeader) {
		return nil, ErrSignatureInvalid
	}
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("payments: decode event: %w", err)
	}
	if evt.ID == "" {
		return nil, fmt.Errorf("payments: event missing id")
	}
	return &evt, nil
}

// ExtractConfirmation returns a confirmation tuple only for completed-checkout
// events; everything else is ignored, not an error.
func ExtractConfirmation(evt *Event) (*Confirmation, bool) {
	if evt == nil || evt.Type != checkoutCompletedEvent {
		return nil, false
	}
	session := evt.Data.Object
	paymentRef := session.PaymentIntent
	if paymentRef == "" {
		paymentRef = session.ID
	}
	return &Confirmation{
		BookingID:         session.Metadata["booking_id"],
		CheckoutSessionID: session.ID,
		PaymentRef:        paymentRef,
		AmountMinor:       session.AmountTotal,
	}, true
}

// WebhookHandler receives the provider's asynchronous payment notifications.
type WebhookHandler struct {
	secret    string
	confirmer BookingConfirmer
	processed ProcessedTracker
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// NewWebhookHandler creates the webhook entry point.
func NewWebhookHandler(secret string, confirmer BookingConfirmer, processed ProcessedTracker, m *metrics.BookingMetrics, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		secret:    secret,
		confirmer: confirmer,
		processed: processed,
		metrics:   m,
		logger:    logger,
	}
}

// Handle processes one webhook delivery. Signature failures reject with 403
// and no processing; irrelevant or duplicate events are acknowledged with 200.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	evt, err := VerifyNotification(payload, r.Header.Get("Webhook-Signature"), h.secret)
	if err != nil {
		if errors.Is(err, ErrSignatureInvalid) {
			h.metrics.ObserveWebhook("unknown", "signature_invalid")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.logger.Error("failed to decode webhook event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	conf, relevant := ExtractConfirmation(evt)
	if !relevant {
		h.metrics.ObserveWebhook(evt.Type, "ignored")
		h.ack(w)
		return
	}

	if h.processed != nil {
		if seen, err := h.processed.AlreadyProcessed(r.Context(), "stripe", evt.ID); err != nil {
			h.logger.Error("processed lookup failed", "error", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		} else if seen {
			h.metrics.ObserveWebhook(evt.Type, "duplicate")
			h.ack(w)
			return
		}
	}

	outcome, err := h.confirmer.ConfirmFromCheckout(r.Context(), *conf)
	if err != nil {
		h.logger.Error("booking confirmation failed", "error", err,
			"event_id", evt.ID, "checkout_session", conf.CheckoutSessionID)
		h.metrics.ObserveWebhook(evt.Type, "error")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	switch outcome {
	case OutcomeUnknownBooking:
		// Acknowledge so the provider stops retrying; reconciliation is manual.
		h.logger.Warn("webhook references unknown booking",
			"event_id", evt.ID, "checkout_session", conf.CheckoutSessionID)
		h.metrics.ObserveWebhook(evt.Type, "unknown_booking")
	case OutcomeAlreadyConfirmed:
		h.metrics.ObserveWebhook(evt.Type, "duplicate")
	case OutcomeIgnored:
		h.metrics.ObserveWebhook(evt.Type, "ignored")
	default:
		h.metrics.ObserveWebhook(evt.Type, "confirmed")
	}

	if h.processed != nil {
		if _, err := h.processed.MarkProcessed(r.Context(), "stripe", evt.ID); err != nil {
			h.logger.Error("failed to record processed event", "error", err, "event_id", evt.ID)
		}
	}

	h.metrics.ObserveWebhookLatency(evt.Type, time.Since(started).Seconds())
	h.ack(w)
}

func (h *WebhookHandler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

// verifySignature checks the provider's HMAC-SHA256 signature header, format
// t=<timestamp>,v1=<signature>[,v1=<rotated>]. An empty secret bypasses
// verification for local development only.
func verifySignature(secret string, payload []byte, header string) bool {
	if secret == "" {
		return true
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > int64(signatureTolerance.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
