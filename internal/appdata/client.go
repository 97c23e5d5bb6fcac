// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package appdata reads and writes the signed-in user's trading data:
// portfolio, trades, connected platforms and market quotes.
//
// Every call borrows the session token at call time, so a locked session
// cannot fetch data. A 401/403 from the backend fires the OnUnauthorized
// hook, which the application wires to the session controller.
package appdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neontrader/neon-tui/internal/auth"
)

// TokenSource yields the current bearer token. session.Controller
// satisfies it.
type TokenSource interface {
	Token() (string, bool)
}

// Client is the app data HTTP client.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func()
	logger         *slog.Logger
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

// OnUnauthorized sets the hook fired when the backend rejects the token.
func OnUnauthorized(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for baseURL using tokens for authentication.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: auth.DefaultTimeout},
		tokens:  tokens,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Portfolio fetches the user's holdings.
func (c *Client) Portfolio(ctx context.Context) (Portfolio, error) {
	var p Portfolio
	err := c.do(ctx, http.MethodGet, "/api/portfolio", nil, &p)
	return p, err
}

// Trades lists the user's trades, newest first.
func (c *Client) Trades(ctx context.Context) ([]Trade, error) {
	var out []Trade
	err := c.do(ctx, http.MethodGet, "/api/trades", nil, &out)
	return out, err
}

// PlaceTrade submits a simulated order.
func (c *Client) PlaceTrade(ctx context.Context, req TradeRequest) (Trade, error) {
	req, err := req.Normalize()
	if err != nil {
		return Trade{}, err
	}
	var t Trade
	err = c.do(ctx, http.MethodPost, "/api/trades", req, &t)
	return t, err
}

// CloseTrade exits a trade at the current price. The returned trade
// carries the exit price and PnL.
func (c *Client) CloseTrade(ctx context.Context, id string) (Trade, error) {
	var t Trade
	err := c.do(ctx, http.MethodPut, "/api/trades/"+url.PathEscape(id)+"/close", nil, &t)
	return t, err
}

// Platforms lists registered exchanges.
func (c *Client) Platforms(ctx context.Context) ([]Platform, error) {
	var out []Platform
	err := c.do(ctx, http.MethodGet, "/api/platforms", nil, &out)
	return out, err
}

// AddPlatform registers an exchange API key. Only a hint of the key comes
// back.
func (c *Client) AddPlatform(ctx context.Context, req PlatformRequest) (Platform, error) {
	if err := req.Check(); err != nil {
		return Platform{}, err
	}
	var p Platform
	err := c.do(ctx, http.MethodPost, "/api/platforms", req, &p)
	return p, err
}

// TestPlatform runs a connection test and returns the updated platform.
func (c *Client) TestPlatform(ctx context.Context, id string) (Platform, error) {
	var p Platform
	err := c.do(ctx, http.MethodPut, "/api/platforms/"+url.PathEscape(id)+"/test", nil, &p)
	return p, err
}

// Quotes fetches several prices in one request, in the order given. Like
// Quote it falls back to mock prices when the backend cannot be asked.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	syms := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			syms = append(syms, s)
		}
	}
	if len(syms) == 0 {
		return nil, nil
	}

	var out []Quote
	q := url.Values{"symbols": {strings.Join(syms, ",")}}
	err := c.do(ctx, http.MethodGet, "/api/market/prices/multiple?"+q.Encode(), nil, &out)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, auth.ErrUnreachable) && !errors.Is(err, ErrNoToken) {
		return nil, err
	}
	c.logger.Debug("using mock quotes", "symbols", len(syms), "error", err)
	out = make([]Quote, 0, len(syms))
	for _, sym := range syms {
		mock, ok := MockQuote(sym)
		if !ok {
			return nil, err
		}
		out = append(out, mock)
	}
	return out, nil
}

// Quote fetches the price of symbol. When the backend is unreachable, or
// there is no session to ask with, the static mock price is returned
// instead.
func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var q Quote
	err := c.do(ctx, http.MethodGet, "/api/market/"+url.PathEscape(symbol), nil, &q)
	if err == nil {
		return q, nil
	}
	if errors.Is(err, auth.ErrUnreachable) || errors.Is(err, ErrNoToken) {
		if mock, ok := MockQuote(symbol); ok {
			c.logger.Debug("using mock quote", "symbol", symbol, "error", err)
			return mock, nil
		}
	}
	return Quote{}, err
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token, ok := c.tokens.Token()
	if !ok {
		return ErrNoToken
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("appdata request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", auth.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, auth.MaxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", auth.ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if auth.IsUnauthorizedStatus(resp.StatusCode) && c.onUnauthorized != nil {
			c.logger.Info("backend rejected session token", "path", path, "status", resp.StatusCode)
			c.onUnauthorized()
		}
		return auth.DecodeError(resp.StatusCode, data, auth.CodeInvalidToken)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", auth.ErrUnexpected, err)
	}
	return nil
}
