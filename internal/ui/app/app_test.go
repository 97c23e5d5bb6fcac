// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neontrader/neon-tui/internal/appdata"
	"github.com/neontrader/neon-tui/internal/auth"
	"github.com/neontrader/neon-tui/internal/session"
	"github.com/neontrader/neon-tui/internal/ui/components"
	"github.com/neontrader/neon-tui/internal/ui/styles"
)

var base = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

const (
	aliceEmail    = "alice@example.com"
	alicePassword = "correct horse"
)

var alice = auth.Identity{UserID: "u-alice", Email: aliceEmail, Username: "alice"}

// =============================================================================
// FAKES
// =============================================================================

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeGateway struct {
	mu          sync.Mutex
	requireTOTP bool
	whoAmIErr   error
	logins      int
}

func (g *fakeGateway) Login(_ context.Context, c auth.Credentials) (auth.Grant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logins++
	switch {
	case c.Password != alicePassword:
		return auth.Grant{}, auth.NewError(auth.CodeInvalidCredentials, 401, "")
	case g.requireTOTP && c.TOTPCode == "":
		return auth.Grant{}, auth.NewError(auth.CodeTOTPRequired, 401, "")
	case g.requireTOTP && c.TOTPCode != "123456":
		return auth.Grant{}, auth.NewError(auth.CodeInvalidTOTP, 401, "")
	}
	return auth.Grant{Token: fmt.Sprintf("tok-%d", g.logins), Identity: alice}, nil
}

func (g *fakeGateway) Register(_ context.Context, r auth.Registration) (auth.Grant, error) {
	return auth.Grant{Token: "tok-new", Identity: auth.Identity{UserID: "u-" + r.Username, Email: r.Email, Username: r.Username}}, nil
}

func (g *fakeGateway) WhoAmI(_ context.Context, _ string) (auth.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.whoAmIErr != nil {
		return auth.Identity{}, g.whoAmIErr
	}
	return alice, nil
}

type fakeData struct {
	mu        sync.Mutex
	err       error
	trades    []appdata.Trade
	platforms []appdata.Platform
}

func (d *fakeData) Portfolio(context.Context) (appdata.Portfolio, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return appdata.Portfolio{}, d.err
	}
	return appdata.Portfolio{TotalValue: 10000, Cash: 10000}, nil
}

func (d *fakeData) Trades(context.Context) ([]appdata.Trade, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]appdata.Trade(nil), d.trades...), nil
}

func (d *fakeData) Platforms(context.Context) ([]appdata.Platform, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]appdata.Platform(nil), d.platforms...), nil
}

func (d *fakeData) Quotes(_ context.Context, symbols []string) ([]appdata.Quote, error) {
	var out []appdata.Quote
	for _, sym := range symbols {
		q, ok := appdata.MockQuote(sym)
		if !ok {
			return nil, errors.New("unknown symbol")
		}
		out = append(out, q)
	}
	return out, nil
}

func (d *fakeData) CloseTrade(_ context.Context, id string) (appdata.Trade, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, tr := range d.trades {
		if tr.ID != id {
			continue
		}
		q, _ := appdata.MockQuote(tr.Symbol)
		tr.Status = appdata.StatusClosed
		tr.ExitPrice = q.Price
		tr.PnL = (q.Price - tr.Price) * tr.Quantity
		d.trades[i] = tr
		return tr, nil
	}
	return appdata.Trade{}, auth.NewError("not_found", 404, "unknown trade")
}

func (d *fakeData) TestPlatform(_ context.Context, id string) (appdata.Platform, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.platforms {
		if d.platforms[i].ID == id {
			d.platforms[i].Connected = true
			return d.platforms[i], nil
		}
	}
	return appdata.Platform{}, auth.NewError("not_found", 404, "unknown platform")
}

func (d *fakeData) PlaceTrade(_ context.Context, req appdata.TradeRequest) (appdata.Trade, error) {
	q, _ := appdata.MockQuote(req.Symbol)
	tr := appdata.Trade{ID: "t-1", Symbol: req.Symbol, Side: req.Side, Quantity: req.Quantity, Price: q.Price, Total: q.Price * req.Quantity}
	d.mu.Lock()
	d.trades = append(d.trades, tr)
	d.mu.Unlock()
	return tr, nil
}

// =============================================================================
// FIXTURE
// =============================================================================

type fixture struct {
	m      *Model
	ctrl   *session.Controller
	clock  *testClock
	gw     *fakeGateway
	data   *fakeData
	failed []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: &testClock{now: base}, gw: &fakeGateway{}, data: &fakeData{}}
	ctrl, err := session.NewController(session.DefaultConfig(), f.gw, session.WithClock(f.clock))
	require.NoError(t, err)
	f.ctrl = ctrl

	m, err := New(Options{
		Controller: ctrl,
		Data:       f.data,
		Clock:      f.clock,
		Theme:      styles.NewTheme(styles.ThemePlain),
		OnLoginFailure: func(email string, err error) {
			f.failed = append(f.failed, email+": "+string(auth.CodeOf(err)))
		},
	})
	require.NoError(t, err)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	t.Cleanup(m.Close)
	f.m = m
	return f
}

// drain applies every queued controller event to the model.
func (f *fixture) drain() {
	for {
		select {
		case ev := <-f.m.bridge.ch:
			f.m.Update(EventMsg{Event: ev})
		default:
			return
		}
	}
}

func (f *fixture) send(msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = f.m.Update(msg)
	}
	return cmd
}

// follow runs cmd and feeds its message back until nothing is left,
// returning the messages seen.
func (f *fixture) follow(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	var seen []tea.Msg
	for i := 0; cmd != nil && i < 5; i++ {
		msg := cmd()
		seen = append(seen, msg)
		_, cmd = f.m.Update(msg)
	}
	f.drain()
	return seen
}

func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	_, err := f.ctrl.Login(context.Background(), auth.Credentials{Email: aliceEmail, Password: alicePassword})
	require.NoError(t, err)
	f.drain()
	f.loadData()
}

func (f *fixture) loadData() {
	if cmd := f.m.refresh(); cmd != nil {
		f.m.Update(cmd())
	}
}

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

// =============================================================================
// SIGN IN
// =============================================================================

func TestNewRequiresController(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoController)
}

func TestLoginThroughForm(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.m.View(), "Sign in to Neon Trader")

	cmd := f.send(typeText(aliceEmail), press(tea.KeyEnter), typeText(alicePassword), press(tea.KeyEnter))
	seen := f.follow(t, cmd)
	require.Len(t, seen, 2)
	assert.IsType(t, components.LoginSubmitMsg{}, seen[0])
	assert.Equal(t, authResultMsg{Email: aliceEmail}, seen[1])

	assert.Equal(t, session.StateUnlocked, f.ctrl.State())
	f.loadData()

	view := f.m.View()
	assert.Contains(t, view, "NEON TRADER")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "$10,000.00")
	assert.Contains(t, view, "locks in")
}

func TestLoginFailureIsReported(t *testing.T) {
	f := newFixture(t)

	cmd := f.send(typeText(aliceEmail), press(tea.KeyTab), typeText("wrong password"), press(tea.KeyEnter))
	f.follow(t, cmd)

	assert.Equal(t, session.StateNoSession, f.ctrl.State())
	assert.Equal(t, "Incorrect email or password", f.m.form.Err())
	assert.Equal(t, []string{aliceEmail + ": invalid_credentials"}, f.failed)
}

func TestLoginAsksForTOTP(t *testing.T) {
	f := newFixture(t)
	f.gw.requireTOTP = true

	cmd := f.send(typeText(aliceEmail), press(tea.KeyTab), typeText(alicePassword), press(tea.KeyEnter))
	f.follow(t, cmd)

	require.Equal(t, session.StateNoSession, f.ctrl.State())
	assert.Empty(t, f.failed, "a second-factor prompt is not a failure")
	assert.Equal(t, "Enter your two-factor code", f.m.form.Notice())
	assert.Contains(t, f.m.View(), "Two-factor code")

	cmd = f.send(typeText("123456"), press(tea.KeyEnter))
	f.follow(t, cmd)
	assert.Equal(t, session.StateUnlocked, f.ctrl.State())
	assert.Empty(t, f.m.form.Notice())
}

func TestRegisterThroughForm(t *testing.T) {
	f := newFixture(t)

	cmd := f.send(
		press(tea.KeyCtrlR),
		typeText("bob@example.com"), press(tea.KeyEnter),
		typeText("bob"), press(tea.KeyEnter),
		typeText("battery staple"), press(tea.KeyEnter),
		typeText("battery staple"), press(tea.KeyEnter),
	)
	f.follow(t, cmd)

	user, ok := f.ctrl.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "bob", user.DisplayName)
}

// =============================================================================
// WARNING AND LOCK
// =============================================================================

func TestWarningKeyExtendsSession(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	f.clock.Advance(4*time.Minute + 30*time.Second)
	require.Equal(t, session.StateWarning, f.ctrl.Evaluate(f.clock.Now()))
	f.drain()

	require.True(t, f.m.overlay.IsVisible())
	view := f.m.View()
	assert.Contains(t, view, "Still there?")
	assert.Contains(t, view, "0:30")

	// The key is consumed by the overlay, not the dashboard.
	cmd := f.send(typeText("t"))
	assert.Equal(t, session.StateUnlocked, f.ctrl.State())
	assert.False(t, f.m.dash.Entering())

	seen := f.follow(t, cmd)
	require.Len(t, seen, 1)
	assert.IsType(t, components.ExtendSessionMsg{}, seen[0])
	assert.False(t, f.m.overlay.IsVisible())
	assert.Equal(t, 5*time.Minute, f.ctrl.Snapshot(f.clock.Now()).UntilLock)
}

func TestStaleWarningTickIgnored(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	f.send(EventMsg{Event: session.Event{Kind: session.EventWarningTick, RemainingSeconds: 10}})
	assert.False(t, f.m.overlay.IsVisible())
}

func TestLockHidesDashboardAndReauthUnlocks(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	require.Contains(t, f.m.View(), "$10,000.00")

	f.send(press(tea.KeyCtrlL))
	require.Equal(t, session.StateLocked, f.ctrl.State())
	f.drain()

	view := f.m.View()
	assert.Contains(t, view, "Session locked")
	assert.Contains(t, view, "alice")
	assert.NotContains(t, view, "$10,000.00")

	// Typing on the lock screen is not presence.
	f.clock.Advance(time.Minute)
	f.follow(t, f.send(typeText("nope"), press(tea.KeyEnter)))
	assert.Equal(t, session.StateLocked, f.ctrl.State())
	assert.Equal(t, "Incorrect email or password", f.m.lock.Err())

	f.follow(t, f.send(typeText(alicePassword), press(tea.KeyEnter)))
	assert.Equal(t, session.StateUnlocked, f.ctrl.State())
	assert.Equal(t, "Welcome back", f.m.status.Notice())
}

func TestQuickUnlock(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.send(press(tea.KeyCtrlL))
	f.drain()

	f.follow(t, f.send(press(tea.KeyCtrlO)))
	assert.Equal(t, session.StateUnlocked, f.ctrl.State())
}

func TestTokenCheckRevokedEndsSession(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.send(press(tea.KeyCtrlL))
	f.drain()

	f.gw.whoAmIErr = auth.NewError(auth.CodeExpiredToken, 401, "")
	f.follow(t, f.send(press(tea.KeyEnter)))

	assert.Equal(t, session.StateNoSession, f.ctrl.State())
	assert.Equal(t, noticeRevoked, f.m.form.Notice())
	assert.Equal(t, aliceEmail, f.m.form.Value("Email"))
	assert.Contains(t, f.m.View(), noticeRevoked)
}

// =============================================================================
// SESSION END
// =============================================================================

func TestLogoutClearsDashboard(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	f.send(press(tea.KeyCtrlX))
	f.drain()

	assert.Equal(t, session.StateNoSession, f.ctrl.State())
	assert.Equal(t, noticeSignedOut, f.m.form.Notice())
	assert.Equal(t, aliceEmail, f.m.form.Value("Email"))
	_, ok := f.m.dash.Portfolio()
	assert.False(t, ok)
}

func TestIdleExpiryNotice(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	f.clock.Advance(15 * time.Minute)
	require.Equal(t, session.StateNoSession, f.ctrl.Evaluate(f.clock.Now()))
	f.drain()

	assert.Equal(t, noticeIdle, f.m.form.Notice())
	assert.Contains(t, f.m.View(), noticeIdle)
}

func TestLateDataAfterLogoutDropped(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	cmd := f.m.refresh()
	f.ctrl.Logout()
	f.drain()

	f.send(cmd())
	_, ok := f.m.dash.Portfolio()
	assert.False(t, ok)
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestPlaceTrade(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	f.send(typeText("t"))
	require.True(t, f.m.dash.Entering())

	seen := f.follow(t, f.send(typeText("buy btc 0.1"), press(tea.KeyEnter)))
	require.GreaterOrEqual(t, len(seen), 2)
	assert.Equal(t, components.TradeSubmitMsg{Request: appdata.TradeRequest{Symbol: "BTC", Side: "buy", Quantity: 0.1}}, seen[0])
	assert.Equal(t, "Bought 0.1 BTC at $43,250.00", f.m.status.Notice())
	assert.Len(t, f.data.trades, 1)
}

func TestCloseSelectedTrade(t *testing.T) {
	f := newFixture(t)
	f.data.trades = []appdata.Trade{{ID: "t-1", Symbol: "BTC", Side: "buy", Quantity: 0.1, Price: 40000, Status: appdata.StatusFilled}}
	f.signIn(t)

	assert.Nil(t, f.send(typeText("c")), "close only acts on the Trades page")

	f.send(press(tea.KeyTab))
	seen := f.follow(t, f.send(typeText("c")))
	require.GreaterOrEqual(t, len(seen), 2)
	assert.IsType(t, closeResultMsg{}, seen[0])
	assert.Equal(t, "Closed 0.1 BTC at $43,250.00, P&L +325.00", f.m.status.Notice())
	assert.Equal(t, appdata.StatusClosed, f.data.trades[0].Status)
	assert.Contains(t, f.m.View(), "+325.00")

	assert.Nil(t, f.send(typeText("c")))
	assert.Equal(t, "Trade is already closed", f.m.status.Notice())
}

func TestConnectionTestOnSelectedPlatform(t *testing.T) {
	f := newFixture(t)
	f.data.platforms = []appdata.Platform{
		{ID: "p-1", Name: "Binance", APIKeyHint: "****abcd"},
		{ID: "p-2", Name: "Kraken", APIKeyHint: "****wxyz"},
	}
	f.signIn(t)

	f.send(press(tea.KeyTab), press(tea.KeyTab), typeText("j"))
	assert.Equal(t, components.TabPlatforms, f.m.dash.Tab())
	f.follow(t, f.send(typeText("p")))

	assert.Equal(t, "Kraken connected", f.m.status.Notice())
	assert.False(t, f.data.platforms[0].Connected)
	assert.True(t, f.data.platforms[1].Connected)
}

func TestDataErrors(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	f.send(dataMsg{Err: fmt.Errorf("load trades: %w", appdata.ErrNoToken)})
	assert.Empty(t, f.m.dash.Err(), "a locked session is not an error")

	f.data.err = fmt.Errorf("%w: connection refused", auth.ErrUnreachable)
	f.loadData()
	assert.Equal(t, "Cannot reach the server, try again", f.m.dash.Err())
}

func TestTabsAndQuit(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	f.send(press(tea.KeyTab))
	assert.Equal(t, components.TabTrades, f.m.dash.Tab())
	f.send(press(tea.KeyShiftTab), press(tea.KeyShiftTab))
	assert.Equal(t, components.TabMarket, f.m.dash.Tab())

	cmd := f.send(typeText("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

// =============================================================================
// ERROR MESSAGES
// =============================================================================

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid credentials", auth.NewError(auth.CodeInvalidCredentials, 401, ""), "Incorrect email or password"},
		{"duplicate email", auth.ErrDuplicateEmail, "An account with that email already exists"},
		{"weak password", auth.ErrWeakPassword, "Password must be at least 8 characters"},
		{"password too long", auth.ErrPasswordTooLong, "Password must be at most 72 bytes"},
		{"account locked", auth.NewError(auth.CodeAccountLocked, 423, ""), "Too many failed attempts, try again later"},
		{"revoked", fmt.Errorf("%w: %w", session.ErrSessionRevoked, auth.ErrExpiredToken), noticeRevoked},
		{"token", auth.ErrInvalidToken, noticeUnauthorized},
		{"no token", appdata.ErrNoToken, "Session ended"},
		{"unreachable", fmt.Errorf("%w: dial tcp", auth.ErrUnreachable), "Cannot reach the server, try again"},
		{"timeout", context.DeadlineExceeded, "Request timed out, try again"},
		{"bad request", auth.NewError(auth.CodeBadRequest, 400, "insufficient funds"), "Insufficient funds"},
		{"invalid trade", fmt.Errorf("%w: quantity must be positive", appdata.ErrInvalidTrade), "Invalid trade: quantity must be positive"},
		{"other", errors.New("boom"), "Something went wrong"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, userMessage(tc.err))
		})
	}
}

// =============================================================================
// BRIDGE
// =============================================================================

func TestBridgeDropsTicksAndReleasesOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl, err := session.NewController(session.DefaultConfig(), &fakeGateway{})
	require.NoError(t, err)
	b := NewBridge(ctrl, 1)

	b.deliver(session.Event{Kind: session.EventWarningTick, RemainingSeconds: 30})
	b.deliver(session.Event{Kind: session.EventWarningTick, RemainingSeconds: 29})
	assert.Len(t, b.ch, 1, "second tick should be dropped")

	blocked := make(chan struct{})
	go func() {
		defer close(blocked)
		b.deliver(session.Event{Kind: session.EventLocked})
	}()

	select {
	case <-blocked:
		t.Fatal("non-tick event should wait for room")
	case <-time.After(50 * time.Millisecond):
	}

	b.Close()
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("Close should release a blocked listener")
	}

	<-b.ch
	assert.Nil(t, b.Next()())
}

func TestBridgeNextDeliversEvents(t *testing.T) {
	ctrl, err := session.NewController(session.DefaultConfig(), &fakeGateway{})
	require.NoError(t, err)
	b := NewBridge(ctrl, 0)
	defer b.Close()

	_, err = ctrl.Login(context.Background(), auth.Credentials{Email: aliceEmail, Password: alicePassword})
	require.NoError(t, err)

	msg, ok := b.Next()().(EventMsg)
	require.True(t, ok)
	assert.Equal(t, session.EventSessionEstablished, msg.Event.Kind)
	assert.Equal(t, "alice", msg.Event.User.DisplayName)
}
