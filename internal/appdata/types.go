// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package appdata

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade statuses.
const (
	StatusFilled = "filled"
	StatusClosed = "closed"
)

// Quote sources.
const (
	SourceMock = "mock"
	SourceLive = "live"
)

var (
	// ErrNoToken is returned when there is no usable session token, either
	// because nobody is signed in or because the session is locked.
	ErrNoToken = errors.New("no active session token")

	// ErrInvalidTrade is returned for malformed trade requests.
	ErrInvalidTrade = errors.New("invalid trade")

	// ErrInvalidPlatform is returned for malformed platform requests.
	ErrInvalidPlatform = errors.New("invalid platform")
)

// Holding is one position in a portfolio.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
	Value    float64 `json:"value"`
}

// Portfolio is the user's cash and positions.
type Portfolio struct {
	TotalValue float64   `json:"total_value"`
	Cash       float64   `json:"cash"`
	Holdings   []Holding `json:"holdings"`
}

// TradeRequest asks for a simulated order. A zero price fills at the
// current quote.
type TradeRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
}

// Trade is an executed (simulated) order.
type Trade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Total      float64   `json:"total"`
	Status     string    `json:"status"`
	ExecutedAt time.Time `json:"executed_at"`

	// Set once the trade is closed.
	ExitPrice float64   `json:"exit_price,omitempty"`
	PnL       float64   `json:"pnl,omitempty"`
	ClosedAt  time.Time `json:"closed_at,omitzero"`
}

// Platform is an exchange account. It starts disconnected until a
// connection test succeeds.
type Platform struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Connected  bool   `json:"connected"`
	APIKeyHint string `json:"api_key_hint"`
}

// PlatformRequest registers an exchange API key.
type PlatformRequest struct {
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// Quote is a market price.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Source    string  `json:"source"`
}

// Normalize upper-cases the symbol and lower-cases the side, then checks
// the request.
func (r TradeRequest) Normalize() (TradeRequest, error) {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	r.Side = strings.ToLower(strings.TrimSpace(r.Side))
	switch {
	case r.Symbol == "":
		return r, fmt.Errorf("%w: symbol is required", ErrInvalidTrade)
	case r.Side != SideBuy && r.Side != SideSell:
		return r, fmt.Errorf("%w: side must be buy or sell, got %q", ErrInvalidTrade, r.Side)
	case r.Quantity <= 0:
		return r, fmt.Errorf("%w: quantity must be positive", ErrInvalidTrade)
	case r.Price < 0:
		return r, fmt.Errorf("%w: price must not be negative", ErrInvalidTrade)
	}
	return r, nil
}

// Check validates a platform request.
func (r PlatformRequest) Check() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlatform)
	}
	if len(strings.TrimSpace(r.APIKey)) < 8 {
		return fmt.Errorf("%w: api key looks too short", ErrInvalidPlatform)
	}
	return nil
}

// KeyHint keeps the last four characters of an API key.
func KeyHint(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// =============================================================================
// MOCK MARKET
// =============================================================================

var mockPrices = map[string]float64{
	"BTC": 43250.00,
	"ETH": 2650.00,
	"SOL": 98.50,
	"ADA": 0.52,
	"DOT": 7.85,
}

// MockSymbols lists the symbols with a mock price.
var MockSymbols = []string{"BTC", "ETH", "SOL", "ADA", "DOT"}

// MockQuote returns the static price for symbol.
func MockQuote(symbol string) (Quote, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	price, ok := mockPrices[symbol]
	if !ok {
		return Quote{}, false
	}
	return Quote{Symbol: symbol, Price: price, Source: SourceMock}, true
}
