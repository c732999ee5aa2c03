package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clearslot/clearslot/pkg/logging"
)

var paymentsTracer = otel.Tracer("clearslot.internal.payments")

// ErrProviderUnavailable wraps payment provider failures. Checkout creation
// failures are never swallowed: a booking without a way to pay is useless.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// CheckoutService opens hosted checkout sessions with the payment provider.
type CheckoutService struct {
	secretKey  string
	successURL string
	cancelURL  string
	baseURL    string
	apiVersion string
	currency   string
	expiry     time.Duration
	httpClient *http.Client
	logger     *logging.Logger
	dryRun     bool
}

// CheckoutParams describes one booking deposit to collect.
type CheckoutParams struct {
	BookingID   string
	AmountMinor int64
	ClientEmail string
	ClientName  string
	Description string
}

// CheckoutSession is the provider-hosted payment flow reference.
type CheckoutSession struct {
	ID  string
	URL string
}

// NewCheckoutService creates a checkout client. Expiry bounds how long an
// abandoned session can keep a booking pending-but-payable.
func NewCheckoutService(secretKey, successURL, cancelURL, currency string, expiry time.Duration, logger *logging.Logger) *CheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	if currency == "" {
		currency = "gbp"
	}
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &CheckoutService{
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		currency:   currency,
		expiry:     expiry,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the provider API base URL (for testing).
func (s *CheckoutService) WithBaseURL(baseURL string) *CheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun enables dry-run mode (returns fake URLs without calling the provider).
func (s *CheckoutService) WithDryRun(enabled bool) *CheckoutService {
	s.dryRun = enabled
	return s
}

// CreateSession opens a hosted checkout page for the exact integer amount and
// attaches the booking id as metadata so the webhook can correlate back
// without a side lookup table.
func (s *CheckoutService) CreateSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("clearslot.booking_id", params.BookingID),
		attribute.Int64("clearslot.amount_minor", params.AmountMinor),
	)

	if s.dryRun {
		fakeID := "cs_dryrun_" + uuid.New().String()[:8]
		s.logger.Info("payment dry run: skipping checkout session creation",
			"booking_id", params.BookingID, "amount_minor", params.AmountMinor)
		return &CheckoutSession{
			ID:  fakeID,
			URL: fmt.Sprintf("https://checkout.stripe.com/dry-run/%s", fakeID),
		}, nil
	}

	description := params.Description
	if strings.TrimSpace(description) == "" {
		description = "Appointment"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", s.currency)
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", params.AmountMinor))
	form.Set("line_items[0][price_data][product_data][name]", description)
	form.Set("line_items[0][quantity]", "1")
	form.Set("expires_at", fmt.Sprintf("%d", time.Now().Add(s.expiry).Unix()))

	if params.ClientEmail != "" {
		form.Set("customer_email", params.ClientEmail)
	}
	if s.successURL != "" {
		form.Set("success_url", s.successURL)
	}
	if s.cancelURL != "" {
		form.Set("cancel_url", s.cancelURL)
	}

	// Metadata for webhook correlation, mirrored onto the payment intent so it
	// is reachable from payment objects too.
	form.Set("metadata[booking_id]", params.BookingID)
	form.Set("payment_intent_data[metadata][booking_id]", params.BookingID)

	apiURL := s.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var parsed checkoutSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrProviderUnavailable, err)
	}
	if parsed.URL == "" {
		return nil, fmt.Errorf("%w: response missing checkout url", ErrProviderUnavailable)
	}

	return &CheckoutSession{ID: parsed.ID, URL: parsed.URL}, nil
}

// checkoutSessionResponse is the subset of the provider's session we need.
type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
