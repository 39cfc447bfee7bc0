// Package client provides the Go SDK for the veriledger service: appending
// compliance events, verifying tenant chains, and exporting event history.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Event mirrors the ledger event wire format.
type Event struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	EventType     string          `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	UserID        string          `json:"user_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ContentHash   string          `json:"content_hash"`
	PreviousHash  string          `json:"previous_hash"`
	ChainHash     string          `json:"chain_hash"`
}

// VerifyResult is the outcome of a chain verification.
type VerifyResult struct {
	Valid       bool   `json:"valid"`
	TotalEvents int    `json:"total_events"`
	Error       string `json:"error,omitempty"`
}

// Summary is a tenant's chain overview.
type Summary struct {
	TenantID    string `json:"tenant_id"`
	TotalEvents int    `json:"total_events"`
	Tip         string `json:"tip,omitempty"`
}

// AppendEventRequest is the payload for AppendEvent.
type AppendEventRequest struct {
	EventType     string          `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	UserID        string          `json:"user_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// ListOptions are optional filters for ListEvents.
type ListOptions struct {
	EventType string
	Since     time.Time
	Limit     int
}

// Client is the veriledger SDK entry point.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a pre-obtained token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithTimeout overrides the default 10s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client connected to base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// AppendEvent appends an event to a tenant's chain and returns the
// committed event including its three hashes.
func (c *Client) AppendEvent(ctx context.Context, tenantID string, req AppendEventRequest) (*Event, error) {
	var event Event
	path := fmt.Sprintf("/api/v1/ledger/%s/events", url.PathEscape(tenantID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Verify runs a full chain verification for a tenant.
func (c *Client) Verify(ctx context.Context, tenantID string) (*VerifyResult, error) {
	var res VerifyResult
	path := fmt.Sprintf("/api/v1/ledger/%s/verify", url.PathEscape(tenantID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Summary returns a tenant's event count and current tip.
func (c *Client) Summary(ctx context.Context, tenantID string) (*Summary, error) {
	var sum Summary
	path := fmt.Sprintf("/api/v1/ledger/%s", url.PathEscape(tenantID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// ListEvents returns a tenant's events in chronological order.
func (c *Client) ListEvents(ctx context.Context, tenantID string, opts ListOptions) ([]Event, error) {
	q := url.Values{}
	if opts.EventType != "" {
		q.Set("event_type", opts.EventType)
	}
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	path := fmt.Sprintf("/api/v1/ledger/%s/events", url.PathEscape(tenantID))
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Events []Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Export streams a tenant's full chain as NDJSON into w.
func (c *Client) Export(ctx context.Context, tenantID string, w io.Writer) error {
	path := fmt.Sprintf("/api/v1/ledger/%s/export", url.PathEscape(tenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build export request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("export request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("stream export: %w", err)
	}
	return nil
}

// doJSON performs a JSON request/response round trip against the service.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
}

// apiError extracts the service's {"error": "..."} body from a non-2xx response.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
