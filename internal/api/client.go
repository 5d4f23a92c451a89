// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/ragchat/internal/logging"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeStatus
	ErrTypeInvalidResponse
)

// Error represents a failed request. Status is set for non-2xx responses, in
// which case Message is the response body text.
type Error struct {
	Type    ErrorType
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// maxErrorBody caps how much of an error response is kept as the message.
const maxErrorBody = 4096

// statusError reads a non-2xx response into an *Error.
func statusError(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return &Error{Type: ErrTypeStatus, Status: resp.StatusCode, Message: msg}
}

// transportError wraps a failure to reach the service.
func transportError(method, path string, err error) *Error {
	typ := ErrTypeConnection
	if errors.Is(err, context.DeadlineExceeded) {
		typ = ErrTypeTimeout
	}
	return &Error{Type: typ, Message: method + " " + path, Cause: err}
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the chat service client.
type ClientConfig struct {
	// BaseURL includes the API prefix (default: http://127.0.0.1:8000/api/v1)
	BaseURL string

	// Timeout bounds non-streaming requests (default: 30s)
	Timeout time.Duration

	// StreamIdleTimeout fails a stream that delivers no bytes for this long (default: 60s)
	StreamIdleTimeout time.Duration

	// RequestsPerSecond limits outgoing requests; 0 disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter bucket size (default: 5)
	Burst int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://127.0.0.1:8000/api/v1",
		Timeout:           30 * time.Second,
		StreamIdleTimeout: 60 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat service. It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client, filling zero values with defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.StreamIdleTimeout == 0 {
		cfg.StreamIdleTimeout = defaults.StreamIdleTimeout
	}
	if cfg.Burst == 0 {
		cfg.Burst = defaults.Burst
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	// No client-wide timeout: streams are bounded by the idle timer and
	// other requests by a per-request context deadline.
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		config:     &cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		log:        logging.For("api"),
	}
}

// BaseURL returns the prefixed service URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// newRequest builds a request with a fresh request id.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, &Error{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// send waits for the rate limiter, then performs the request and logs it.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, transportError(req.Method, req.URL.Path, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	event := c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Dur("duration", time.Since(start))
	if err != nil {
		event.Err(err).Msg("request failed")
		return nil, transportError(req.Method, req.URL.Path, err)
	}
	event.Int("status", resp.StatusCode).Msg("request completed")
	return resp, nil
}

// doJSON sends an optional JSON body and decodes a JSON response into out.
// A nil out discards the body.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &Error{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return c.roundTrip(req, out)
}

// roundTrip sends req and decodes its JSON response.
func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Type: ErrTypeInvalidResponse, Message: fmt.Sprintf("failed to decode %s response", req.URL.Path), Cause: err}
	}
	return nil
}
