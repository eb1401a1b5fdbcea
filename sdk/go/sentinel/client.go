// Package sentinel is a thin Go client for the Sentinel security event API.
// It keeps its own wire types so consumers do not depend on service internals.
package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Event mirrors the service's security event wire shape.
type Event struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	Severity       string                 `json:"severity"`
	Source         string                 `json:"source"`
	Description    string                 `json:"description"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Resolved       bool                   `json:"resolved"`
	UserID         string                 `json:"user_id,omitempty"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty"`
}

// EventInput is the payload for reporting a new event.
type EventInput struct {
	Type        string                 `json:"type"`
	Severity    string                 `json:"severity"`
	Source      string                 `json:"source"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
}

// ListFilter narrows an event listing. Zero values are omitted.
type ListFilter struct {
	Type           string
	Severity       string
	UserID         string
	OrganizationID string
	Resolved       *bool
	Start          time.Time
	End            time.Time
	Limit          int
}

// APIError is a non-2xx response decoded from the service's error shape.
type APIError struct {
	StatusCode  int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sentinel: %s (%d): %s", e.Code, e.StatusCode, e.Description)
}

// RateLimitError reports a 429 with the server's suggested retry delay.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("sentinel: rate limited, retry after %s", e.RetryAfter)
}

// ErrNotFound is returned when the target resource does not exist.
var ErrNotFound = errors.New("sentinel: not found")

// Client calls the Sentinel HTTP API with an API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the given base URL, for example
// "https://sentinel.example.com".
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LogEvent reports a security event and returns the stored record.
func (c *Client) LogEvent(ctx context.Context, input EventInput) (*Event, error) {
	var out Event
	if err := c.do(ctx, http.MethodPost, "/api/v1/security/events", nil, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEvents returns events matching the filter, newest first.
func (c *Client) ListEvents(ctx context.Context, filter ListFilter) ([]Event, error) {
	q := url.Values{}
	if filter.Type != "" {
		q.Set("type", filter.Type)
	}
	if filter.Severity != "" {
		q.Set("severity", filter.Severity)
	}
	if filter.UserID != "" {
		q.Set("user_id", filter.UserID)
	}
	if filter.OrganizationID != "" {
		q.Set("organization_id", filter.OrganizationID)
	}
	if filter.Resolved != nil {
		q.Set("resolved", strconv.FormatBool(*filter.Resolved))
	}
	if !filter.Start.IsZero() {
		q.Set("start", filter.Start.Format(time.RFC3339))
	}
	if !filter.End.IsZero() {
		q.Set("end", filter.End.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	var out struct {
		Events []Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/security/events", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// ResolveEvent marks an event resolved. Returns ErrNotFound for unknown ids.
func (c *Client) ResolveEvent(ctx context.Context, eventID string) error {
	path := "/api/v1/security/events/" + url.PathEscape(eventID) + "/resolve"
	err := c.do(ctx, http.MethodPost, path, nil, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Code = "unknown_error"
			apiErr.Description = resp.Status
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
