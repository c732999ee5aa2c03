package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/clearslot/clearslot/pkg/logging"
)

// RefundService issues refunds against confirmed payments. Out of the
// critical booking path; exposed on the admin surface only.
type RefundService struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// RefundResult is the outcome of a refund attempt.
type RefundResult struct {
	RefundID  string
	Status    string
	CreatedAt time.Time
}

// NewRefundService creates a refund client against the payment provider.
func NewRefundService(secretKey string, logger *logging.Logger) *RefundService {
	if logger == nil {
		logger = logging.Default()
	}
	return &RefundService{
		secretKey:  secretKey,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the provider API base URL (for testing).
func (s *RefundService) WithBaseURL(baseURL string) *RefundService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// Refund reverses a captured payment. amountMinor of 0 refunds in full.
func (s *RefundService) Refund(ctx context.Context, paymentRef string, amountMinor int64, reason string) (*RefundResult, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.refund")
	defer span.End()
	span.SetAttributes(
		attribute.String("clearslot.payment_ref", paymentRef),
		attribute.Int64("clearslot.amount_minor", amountMinor),
	)

	if strings.TrimSpace(paymentRef) == "" {
		return nil, fmt.Errorf("payments: refund requires a payment reference")
	}

	form := url.Values{}
	form.Set("payment_intent", paymentRef)
	if amountMinor > 0 {
		form.Set("amount", fmt.Sprintf("%d", amountMinor))
	}
	if reason != "" {
		form.Set("metadata[reason]", reason)
	}

	apiURL := s.baseURL + "/v1/refunds"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: refund request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		s.logger.Error("refund failed",
			"status", resp.StatusCode,
			"payment_ref", paymentRef,
			"body", string(respBody),
		)
		return nil, fmt.Errorf("%w: refund status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var parsed struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Created int64  `json:"created"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: refund decode: %v", ErrProviderUnavailable, err)
	}

	s.logger.Info("refund processed",
		"refund_id", parsed.ID,
		"payment_ref", paymentRef,
		"status", parsed.Status,
		"amount_minor", amountMinor,
	)

	return &RefundResult{
		RefundID:  parsed.ID,
		Status:    parsed.Status,
		CreatedAt: time.Unix(parsed.Created, 0),
	}, nil
}
