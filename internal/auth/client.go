// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the gateway client.
const (
	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt
	// for transport errors and 5xx responses.
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the base delay for exponential backoff.
	DefaultRetryDelay = 500 * time.Millisecond

	// retryMaxDelay caps a single backoff step.
	retryMaxDelay = 8 * time.Second

	// MaxResponseSize limits how much of a response body is read.
	MaxResponseSize = 1 << 20
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the auth gateway over HTTP. It implements Gateway.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base backoff delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithRateLimit throttles credential submissions (login and register) to
// perSec with the given burst. Zero disables throttling.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a gateway client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		limiter:    rate.NewLimiter(rate.Limit(2), 3),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the gateway root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// GATEWAY OPERATIONS
// =============================================================================

// Register creates an account. Local validation runs first so mismatched or
// short passwords never leave the machine.
func (c *Client) Register(ctx context.Context, reg Registration) (Grant, error) {
	if err := ValidateRegistration(reg); err != nil {
		return Grant{}, err
	}
	if err := c.throttle(ctx); err != nil {
		return Grant{}, err
	}
	var grant Grant
	err := c.do(ctx, http.MethodPost, "/api/auth/register", "", reg, &grant, CodeInvalidCredentials)
	return grant, err
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (Grant, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return Grant{}, ErrInvalidCredentials
	}
	if err := c.throttle(ctx); err != nil {
		return Grant{}, err
	}
	var grant Grant
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", creds, &grant, CodeInvalidCredentials)
	return grant, err
}

// WhoAmI resolves the identity behind token.
func (c *Client) WhoAmI(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	var me MeResponse
	err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &me, CodeInvalidToken)
	return me.User, err
}

// EnrollTOTP turns on a second factor for the account behind token.
func (c *Client) EnrollTOTP(ctx context.Context, token string) (TOTPEnrollment, error) {
	var out TOTPEnrollment
	err := c.do(ctx, http.MethodPost, "/api/auth/totp/enroll", token, nil, &out, CodeInvalidToken)
	return out, err
}

func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("credential submission throttled: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do performs a JSON request with retry and backoff. unauthorized is the code
// assumed for a bare 401/403 without an error body.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any, unauthorized Code) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		err := c.roundTrip(ctx, method, path, token, payload, out, unauthorized)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path, token string, payload []byte, out any, unauthorized Code) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		c.logger.Debug("auth request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUnreachable, err)
	}
	c.logger.Debug("auth request", "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeError(resp.StatusCode, data, unauthorized)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", ErrUnexpected, err)
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// DecodeError converts an error response into an *Error. When the body has
// no recognizable code the status decides; a bare 401/403 maps to
// unauthorized.
func DecodeError(status int, body []byte, unauthorized Code) error {
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Code != "" {
		return NewError(eb.Error.Code, status, eb.Error.Message)
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(unauthorized, status, msg)
	case status == http.StatusLocked:
		return NewError(CodeAccountLocked, status, msg)
	case status == http.StatusTooManyRequests:
		return NewError(CodeRateLimited, status, msg)
	case status >= 500:
		return NewError(CodeInternal, status, msg)
	default:
		return NewError(CodeBadRequest, status, msg)
	}
}

// IsUnauthorizedStatus reports whether status signals a rejected token.
func IsUnauthorizedStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Status
	}
	return 0
}
