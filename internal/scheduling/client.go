package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clearslot/clearslot/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// Client talks to the external scheduling provider's REST API. One account
// is shared across all practitioners; per-practitioner routing happens via
// event type ids.
type Client struct {
	baseURL    string
	apiKey     string
	accountID  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a provider client. baseURL and apiKey come from
// configuration, never from ad-hoc environment lookups.
func NewClient(baseURL, apiKey, accountID string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		accountID:  accountID,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// WithBaseURL overrides the provider base URL (for testing).
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// BusyIntervals returns occupied intervals for the event type over [from, to).
func (c *Client) BusyIntervals(ctx context.Context, eventTypeID string, from, to time.Time) ([]BusyInterval, error) {
	query := url.Values{}
	query.Set("account", c.accountID)
	query.Set("eventTypeId", eventTypeID)
	query.Set("dateFrom", from.UTC().Format(time.RFC3339))
	query.Set("dateTo", to.UTC().Format(time.RFC3339))

	var parsed struct {
		Busy []struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"busy"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/availability/busy?"+query.Encode(), nil, &parsed); err != nil {
		return nil, err
	}

	intervals := make([]BusyInterval, 0, len(parsed.Busy))
	for _, b := range parsed.Busy {
		start, err := time.Parse(time.RFC3339, b.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: bad interval start %q", ErrProviderUnavailable, b.Start)
		}
		end, err := time.Parse(time.RFC3339, b.End)
		if err != nil {
			return nil, fmt.Errorf("%w: bad interval end %q", ErrProviderUnavailable, b.End)
		}
		intervals = append(intervals, BusyInterval{Start: start, End: end})
	}
	return intervals, nil
}

// CreateEvent books a calendar event with the provider and returns its id.
func (c *Client) CreateEvent(ctx context.Context, eventTypeID string, req CreateEventRequest, timezone string) (string, error) {
	body := map[string]any{
		"account":     c.accountID,
		"eventTypeId": eventTypeID,
		"start":       req.Start.UTC().Format(time.RFC3339),
		"end":         req.End.UTC().Format(time.RFC3339),
		"title":       req.Title,
		"timezone":    timezone,
		"attendee": map[string]string{
			"name":  req.ClientName,
			"email": req.ClientEmail,
			"phone": req.ClientPhone,
		},
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/events", body, &parsed); err != nil {
		return "", err
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("%w: create event returned empty id", ErrProviderUnavailable)
	}
	return parsed.ID, nil
}

// CancelEvent deletes a calendar event. Callers treat failures as advisory.
func (c *Client) CancelEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/events/"+url.PathEscape(eventID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return fmt.Errorf("%w: missing api key", ErrProviderUnavailable)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("scheduling: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("scheduling: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: unmarshal response: %v", ErrProviderUnavailable, err)
		}
	}
	return nil
}
