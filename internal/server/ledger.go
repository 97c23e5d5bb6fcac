// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neontrader/neon-tui/internal/appdata"
)

// StartingCash is the simulated balance of a new account.
const StartingCash = 10000.00

var (
	errUnknownSymbol     = errors.New("unknown symbol")
	errInsufficientFunds = errors.New("insufficient funds")
	errInsufficientUnits = errors.New("insufficient holdings")
	errUnknownTrade      = errors.New("unknown trade")
	errTradeClosed       = errors.New("trade already closed")
	errUnknownPlatform   = errors.New("unknown platform")
)

type position struct {
	quantity float64
	cost     float64
}

type account struct {
	cash      float64
	positions map[string]*position
	trades    []appdata.Trade
	platforms []appdata.Platform
}

// ledger holds every user's simulated trading data in memory.
type ledger struct {
	mu       sync.Mutex
	accounts map[string]*account
	now      func() time.Time
}

func newLedger(now func() time.Time) *ledger {
	return &ledger{accounts: make(map[string]*account), now: now}
}

func (l *ledger) accountLocked(userID string) *account {
	a, ok := l.accounts[userID]
	if !ok {
		a = &account{cash: StartingCash, positions: make(map[string]*position)}
		l.accounts[userID] = a
	}
	return a
}

func (l *ledger) portfolio(userID string) appdata.Portfolio {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accountLocked(userID)

	p := appdata.Portfolio{Cash: round2(a.cash), Holdings: []appdata.Holding{}}
	total := a.cash
	for sym, pos := range a.positions {
		price := pos.cost / pos.quantity
		if q, ok := appdata.MockQuote(sym); ok {
			price = q.Price
		}
		value := pos.quantity * price
		total += value
		p.Holdings = append(p.Holdings, appdata.Holding{
			Symbol:   sym,
			Quantity: pos.quantity,
			AvgPrice: round2(pos.cost / pos.quantity),
			Value:    round2(value),
		})
	}
	sort.Slice(p.Holdings, func(i, j int) bool { return p.Holdings[i].Symbol < p.Holdings[j].Symbol })
	p.TotalValue = round2(total)
	return p
}

// execute fills req immediately at its price, or at the mock quote when
// the price is zero.
func (l *ledger) execute(userID string, req appdata.TradeRequest) (appdata.Trade, error) {
	req, err := req.Normalize()
	if err != nil {
		return appdata.Trade{}, err
	}
	if req.Price == 0 {
		q, ok := appdata.MockQuote(req.Symbol)
		if !ok {
			return appdata.Trade{}, fmt.Errorf("%w: %s", errUnknownSymbol, req.Symbol)
		}
		req.Price = q.Price
	}
	total := req.Quantity * req.Price

	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accountLocked(userID)
	if err := a.applyLocked(req.Side, req.Symbol, req.Quantity, req.Price); err != nil {
		return appdata.Trade{}, err
	}

	t := appdata.Trade{
		ID:         uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Total:      round2(total),
		Status:     appdata.StatusFilled,
		ExecutedAt: l.now().UTC(),
	}
	a.trades = append(a.trades, t)
	return t, nil
}

// applyLocked moves cash and units for one fill. The ledger lock must be
// held.
func (a *account) applyLocked(side, symbol string, quantity, price float64) error {
	total := quantity * price
	switch side {
	case appdata.SideBuy:
		if total > a.cash {
			return fmt.Errorf("%w: need %.2f, have %.2f", errInsufficientFunds, total, a.cash)
		}
		a.cash -= total
		pos := a.positions[symbol]
		if pos == nil {
			pos = &position{}
			a.positions[symbol] = pos
		}
		pos.quantity += quantity
		pos.cost += total
	case appdata.SideSell:
		pos := a.positions[symbol]
		if pos == nil || pos.quantity < quantity {
			return fmt.Errorf("%w: %s", errInsufficientUnits, symbol)
		}
		avg := pos.cost / pos.quantity
		pos.quantity -= quantity
		pos.cost -= avg * quantity
		if pos.quantity <= 1e-12 {
			delete(a.positions, symbol)
		}
		a.cash += total
	}
	return nil
}

// close exits a filled trade at the current quote with the opposite
// order and records its profit or loss on the trade.
func (l *ledger) close(userID, tradeID string) (appdata.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accountLocked(userID)

	idx := -1
	for i := range a.trades {
		if a.trades[i].ID == tradeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return appdata.Trade{}, fmt.Errorf("%w: %s", errUnknownTrade, tradeID)
	}
	t := a.trades[idx]
	if t.Status == appdata.StatusClosed {
		return appdata.Trade{}, fmt.Errorf("%w: %s", errTradeClosed, tradeID)
	}
	q, ok := appdata.MockQuote(t.Symbol)
	if !ok {
		return appdata.Trade{}, fmt.Errorf("%w: %s", errUnknownSymbol, t.Symbol)
	}

	exitSide, pnl := appdata.SideSell, (q.Price-t.Price)*t.Quantity
	if t.Side == appdata.SideSell {
		exitSide, pnl = appdata.SideBuy, (t.Price-q.Price)*t.Quantity
	}
	if err := a.applyLocked(exitSide, t.Symbol, t.Quantity, q.Price); err != nil {
		return appdata.Trade{}, err
	}

	t.Status = appdata.StatusClosed
	t.ExitPrice = q.Price
	t.PnL = round2(pnl)
	t.ClosedAt = l.now().UTC()
	a.trades[idx] = t
	return t, nil
}

// trades returns the user's trades, newest first.
func (l *ledger) trades(userID string) []appdata.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accountLocked(userID)
	out := make([]appdata.Trade, len(a.trades))
	for i, t := range a.trades {
		out[len(a.trades)-1-i] = t
	}
	return out
}

func (l *ledger) addPlatform(userID string, req appdata.PlatformRequest) (appdata.Platform, error) {
	if err := req.Check(); err != nil {
		return appdata.Platform{}, err
	}
	p := appdata.Platform{
		ID:         uuid.NewString(),
		Name:       req.Name,
		APIKeyHint: appdata.KeyHint(req.APIKey),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accountLocked(userID)
	a.platforms = append(a.platforms, p)
	return p, nil
}

// testPlatform checks a platform's connection and stores the result. The
// exchanges are simulated, so the check always succeeds.
func (l *ledger) testPlatform(userID, platformID string) (appdata.Platform, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accountLocked(userID)
	for i := range a.platforms {
		if a.platforms[i].ID == platformID {
			a.platforms[i].Connected = true
			return a.platforms[i], nil
		}
	}
	return appdata.Platform{}, fmt.Errorf("%w: %s", errUnknownPlatform, platformID)
}

func (l *ledger) platforms(userID string) []appdata.Platform {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accountLocked(userID)
	return append([]appdata.Platform{}, a.platforms...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
