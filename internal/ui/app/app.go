// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the bubbletea program for the neon TUI.
//
// The model owns no session logic. It forwards key and mouse activity to
// the session controller through an ActivityFeed, performs user actions by
// calling the controller, and renders whatever state the controller reports.
// Controller events arrive through a Bridge as EventMsg values.
//
// Screens follow the controller state:
//
//	NO_SESSION  login / register form
//	UNLOCKED    dashboard
//	WARNING     countdown overlay; any key extends the session
//	LOCKED      lock screen; the dashboard is not rendered
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neontrader/neon-tui/internal/appdata"
	"github.com/neontrader/neon-tui/internal/auth"
	"github.com/neontrader/neon-tui/internal/session"
	"github.com/neontrader/neon-tui/internal/ui/components"
	"github.com/neontrader/neon-tui/internal/ui/styles"
	"github.com/neontrader/neon-tui/internal/util"
)

// Defaults for Options.
const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultRedrawInterval = time.Second
)

// ErrNoController is returned by New without a controller.
var ErrNoController = errors.New("app: session controller is required")

// DataSource is the slice of the app data client the dashboard needs.
// *appdata.Client satisfies it.
type DataSource interface {
	Portfolio(ctx context.Context) (appdata.Portfolio, error)
	Trades(ctx context.Context) ([]appdata.Trade, error)
	Platforms(ctx context.Context) ([]appdata.Platform, error)
	Quotes(ctx context.Context, symbols []string) ([]appdata.Quote, error)
	PlaceTrade(ctx context.Context, req appdata.TradeRequest) (appdata.Trade, error)
	CloseTrade(ctx context.Context, id string) (appdata.Trade, error)
	TestPlatform(ctx context.Context, id string) (appdata.Platform, error)
}

// Options configures the model.
type Options struct {
	Controller *session.Controller

	// Data may be nil, in which case the dashboard stays empty.
	Data DataSource

	// Feed receives key and mouse activity. When nil, activity is recorded
	// on the controller directly.
	Feed *session.ActivityFeed

	Clock  session.Clock
	Theme  *styles.Theme
	Logger *slog.Logger

	// Email prefills the login form.
	Email string

	RequestTimeout time.Duration
	RedrawInterval time.Duration
	BridgeBuffer   int

	// OnLoginFailure is called for every rejected sign-in or registration,
	// typically to write the audit trail.
	OnLoginFailure func(email string, err error)
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the root bubbletea model.
type Model struct {
	ctrl   *session.Controller
	data   DataSource
	feed   *session.ActivityFeed
	clock  session.Clock
	theme  *styles.Theme
	logger *slog.Logger
	bridge *Bridge
	keys   KeyMap

	timeout        time.Duration
	redrawEvery    time.Duration
	onLoginFailure func(email string, err error)

	form    components.LoginForm
	lock    components.LockScreen
	overlay components.WarningOverlay
	dash    components.Dashboard
	status  components.StatusBar

	width  int
	height int
}

// New builds the model and subscribes it to the controller. Call Close when
// the program has exited.
func New(opts Options) (*Model, error) {
	if opts.Controller == nil {
		return nil, ErrNoController
	}
	if opts.Clock == nil {
		opts.Clock = session.SystemClock{}
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ThemeNeon)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.RedrawInterval <= 0 {
		opts.RedrawInterval = DefaultRedrawInterval
	}

	m := &Model{
		ctrl:           opts.Controller,
		data:           opts.Data,
		feed:           opts.Feed,
		clock:          opts.Clock,
		theme:          opts.Theme,
		logger:         opts.Logger,
		bridge:         NewBridge(opts.Controller, opts.BridgeBuffer),
		keys:           DefaultKeyMap(),
		timeout:        opts.RequestTimeout,
		redrawEvery:    opts.RedrawInterval,
		onLoginFailure: opts.OnLoginFailure,
		form:           components.NewLoginForm(opts.Theme),
		lock:           components.NewLockScreen(opts.Theme),
		overlay:        components.NewWarningOverlay(opts.Theme),
		dash:           components.NewDashboard(opts.Theme),
		status:         components.NewStatusBar(opts.Theme),
	}
	if opts.Email != "" {
		m.form.Prefill(opts.Email)
		m.form.Reset()
	}
	if user, ok := m.ctrl.CurrentUser(); ok {
		m.lock.Reset(user.DisplayName)
	}
	return m, nil
}

// Close detaches the model from the controller.
func (m *Model) Close() {
	m.bridge.Close()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.Next(), m.redraw()}
	if st := m.ctrl.State(); st == session.StateUnlocked || st == session.StateWarning {
		cmds = append(cmds, m.refresh())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		// The state is read before activity is recorded so a key that
		// clears a warning is consumed by the overlay.
		state := m.ctrl.State()
		m.recordActivity()
		return m, m.handleKey(msg, state)

	case tea.MouseMsg:
		m.recordActivity()
		return m, nil

	case EventMsg:
		return m, tea.Batch(m.handleEvent(msg.Event), m.bridge.Next())

	case redrawMsg:
		return m, m.redraw()

	case components.LoginSubmitMsg:
		return m, m.login(msg.Credentials)

	case components.RegisterSubmitMsg:
		return m, m.register(msg.Registration)

	case components.UnlockMsg:
		return m, m.unlock(msg)

	case components.ExtendSessionMsg:
		m.ctrl.ExtendSession(m.clock.Now())
		return m, nil

	case components.TradeSubmitMsg:
		return m, m.placeTrade(msg.Request)

	case authResultMsg:
		return m, m.handleAuthResult(msg)

	case unlockResultMsg:
		return m, m.handleUnlockResult(msg)

	case dataMsg:
		m.handleData(msg)
		return m, nil

	case tradeResultMsg:
		return m, m.handleTradeResult(msg)

	case closeResultMsg:
		return m, m.handleCloseResult(msg)

	case platformTestMsg:
		return m, m.handlePlatformTest(msg)
	}

	return m, m.forward(msg)
}

func (m *Model) recordActivity() {
	now := m.clock.Now()
	if m.feed != nil {
		m.feed.Publish(now)
		return
	}
	m.ctrl.RecordActivity(now)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	body := height - 1
	m.form.SetSize(width, body)
	m.lock.SetSize(width, body)
	m.overlay.SetSize(width, body)
	m.dash.SetSize(width, body-1)
	m.status.SetWidth(width)
}

func (m *Model) redraw() tea.Cmd {
	return tea.Tick(m.redrawEvery, func(t time.Time) tea.Msg { return redrawMsg(t) })
}

// forward hands non-key messages (cursor blinks) to the focused screen.
func (m *Model) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.ctrl.State() {
	case session.StateNoSession:
		m.form, cmd = m.form.Update(msg)
	case session.StateLocked:
		m.lock, cmd = m.lock.Update(msg)
	case session.StateUnlocked:
		if m.dash.Entering() {
			m.dash, cmd = m.dash.Update(msg)
		}
	}
	return cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg, state session.State) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		return tea.Quit
	}
	if state != session.StateNoSession && key.Matches(msg, m.keys.Logout) {
		m.ctrl.Logout()
		return nil
	}

	var cmd tea.Cmd
	switch state {
	case session.StateNoSession:
		m.form, cmd = m.form.Update(msg)

	case session.StateLocked:
		m.lock, cmd = m.lock.Update(msg)

	case session.StateWarning:
		if key.Matches(msg, m.keys.Lock) {
			m.lockNow()
			return nil
		}
		if !m.overlay.IsVisible() {
			m.overlay.Show(session.RemainingSeconds(m.ctrl.Snapshot(m.clock.Now()).UntilLock))
		}
		m.overlay, cmd = m.overlay.Update(msg)

	default:
		cmd = m.handleDashboardKey(msg)
	}
	return cmd
}

func (m *Model) handleDashboardKey(msg tea.KeyMsg) tea.Cmd {
	if m.dash.Entering() {
		var cmd tea.Cmd
		m.dash, cmd = m.dash.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Lock):
		m.lockNow()
	case key.Matches(msg, m.keys.Extend):
		m.ctrl.ExtendSession(m.clock.Now())
		m.status.SetNotice("Session extended", false)
	case key.Matches(msg, m.keys.Refresh):
		return m.refresh()
	case key.Matches(msg, m.keys.NextTab):
		m.dash.NextTab()
	case key.Matches(msg, m.keys.PrevTab):
		m.dash.PrevTab()
	case key.Matches(msg, m.keys.Up):
		m.dash.MoveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.dash.MoveCursor(1)
	case key.Matches(msg, m.keys.CloseTrade):
		if tr, ok := m.dash.SelectedTrade(); ok {
			if tr.Status == appdata.StatusClosed {
				m.status.SetNotice("Trade is already closed", true)
				return nil
			}
			return m.closeTrade(tr.ID)
		}
	case key.Matches(msg, m.keys.TestPlatform):
		if p, ok := m.dash.SelectedPlatform(); ok {
			return m.testPlatform(p.ID)
		}
	case key.Matches(msg, m.keys.Trade):
		m.status.SetNotice("", false)
		return m.dash.StartTrade()
	case key.Matches(msg, m.keys.QuitAlt):
		return tea.Quit
	}
	return nil
}

func (m *Model) lockNow() {
	if err := m.ctrl.Lock(m.clock.Now()); err != nil {
		m.logger.Debug("lock ignored", "error", err)
	}
}

// =============================================================================
// SESSION EVENTS
// =============================================================================

func (m *Model) handleEvent(ev session.Event) tea.Cmd {
	m.logger.Debug("session event", "event", ev.String(), "user_id", ev.User.ID)

	switch ev.Kind {
	case session.EventSessionEstablished:
		m.form.SetNotice("")
		m.form.Prefill(ev.User.Email)
		m.form.Reset()
		m.lock.Reset(ev.User.DisplayName)
		m.dash.Clear()
		m.status.SetNotice("Signed in as "+ev.User.DisplayName, false)
		return m.refresh()

	case session.EventWarningRaised, session.EventWarningTick:
		// A tick queued before a lock or unlock is stale by now.
		if m.ctrl.State() == session.StateWarning {
			m.overlay.Show(ev.RemainingSeconds)
		}

	case session.EventWarningCleared:
		m.overlay.Hide()

	case session.EventLocked:
		m.overlay.Hide()
		m.dash.CancelTrade()
		m.status.SetNotice("", false)
		return m.lock.Reset(ev.User.DisplayName)

	case session.EventUnlocked:
		m.status.SetNotice("Welcome back", false)
		return m.refresh()

	case session.EventSessionExpired, session.EventLoggedOut:
		m.overlay.Hide()
		m.dash.Clear()
		m.lock.Reset("")
		m.status.SetNotice("", false)
		m.form.SetNotice(endNotice(ev))
		if ev.User.Email != "" {
			m.form.Prefill(ev.User.Email)
		}
		return m.form.Reset()
	}
	return nil
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) login(creds auth.Credentials) tea.Cmd {
	ctrl, timeout := m.ctrl, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, err := ctrl.Login(ctx, creds)
		return authResultMsg{Email: creds.Email, Err: err}
	}
}

func (m *Model) register(reg auth.Registration) tea.Cmd {
	ctrl, timeout := m.ctrl, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, err := ctrl.Register(ctx, reg)
		return authResultMsg{Email: reg.Email, Register: true, Err: err}
	}
}

func (m *Model) unlock(msg components.UnlockMsg) tea.Cmd {
	if msg.Quick {
		if err := m.ctrl.QuickUnlock(m.clock.Now()); err != nil {
			m.lock.SetError(userMessage(err))
		}
		return nil
	}
	ctrl, timeout := m.ctrl, m.timeout
	reauth := session.Reauth{Password: msg.Password, TOTPCode: msg.TOTPCode}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return unlockResultMsg{Err: ctrl.UnlockWithReauth(ctx, reauth)}
	}
}

// refresh loads every dashboard page in one command.
func (m *Model) refresh() tea.Cmd {
	if m.data == nil {
		return nil
	}
	m.dash.SetLoading(true)
	data, timeout, clock := m.data, m.timeout, m.clock
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		msg := fetchData(ctx, data)
		msg.At = clock.Now()
		return msg
	}
}

func fetchData(ctx context.Context, data DataSource) dataMsg {
	p, err := data.Portfolio(ctx)
	if err != nil {
		return dataMsg{Err: fmt.Errorf("load portfolio: %w", err)}
	}
	trades, err := data.Trades(ctx)
	if err != nil {
		return dataMsg{Err: fmt.Errorf("load trades: %w", err)}
	}
	platforms, err := data.Platforms(ctx)
	if err != nil {
		return dataMsg{Err: fmt.Errorf("load platforms: %w", err)}
	}
	// Quotes are best effort; the other pages still render without them.
	quotes, _ := data.Quotes(ctx, appdata.MockSymbols)
	return dataMsg{Portfolio: &p, Trades: trades, Platforms: platforms, Quotes: quotes}
}

func (m *Model) placeTrade(req appdata.TradeRequest) tea.Cmd {
	if m.data == nil {
		return nil
	}
	data, timeout := m.data, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		tr, err := data.PlaceTrade(ctx, req)
		return tradeResultMsg{Trade: tr, Err: err}
	}
}

func (m *Model) closeTrade(id string) tea.Cmd {
	if m.data == nil {
		return nil
	}
	data, timeout := m.data, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		tr, err := data.CloseTrade(ctx, id)
		return closeResultMsg{Trade: tr, Err: err}
	}
}

func (m *Model) testPlatform(id string) tea.Cmd {
	if m.data == nil {
		return nil
	}
	data, timeout := m.data, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		p, err := data.TestPlatform(ctx, id)
		return platformTestMsg{Platform: p, Err: err}
	}
}

// =============================================================================
// RESULTS
// =============================================================================

func (m *Model) handleAuthResult(msg authResultMsg) tea.Cmd {
	if msg.Err == nil {
		return nil
	}
	if errors.Is(msg.Err, auth.ErrTOTPRequired) {
		m.form.SetNotice(userMessage(msg.Err))
		return m.form.RequireTOTP()
	}

	m.logger.Info("sign-in rejected", "register", msg.Register, "code", string(auth.CodeOf(msg.Err)))
	if m.onLoginFailure != nil {
		m.onLoginFailure(msg.Email, msg.Err)
	}
	m.form.SetError(userMessage(msg.Err))
	return nil
}

func (m *Model) handleUnlockResult(msg unlockResultMsg) tea.Cmd {
	switch {
	case msg.Err == nil:
		return nil
	case errors.Is(msg.Err, auth.ErrTOTPRequired):
		return m.lock.RequireTOTP()
	case errors.Is(msg.Err, session.ErrSessionRevoked), errors.Is(msg.Err, session.ErrSessionGone):
		// The session is gone; the end event has already set the notice.
		return nil
	default:
		m.lock.SetError(userMessage(msg.Err))
		return nil
	}
}

func (m *Model) handleData(msg dataMsg) {
	if m.ctrl.State() == session.StateNoSession {
		return
	}
	if msg.Err != nil {
		if errors.Is(msg.Err, appdata.ErrNoToken) {
			m.dash.SetLoading(false)
			return
		}
		m.logger.Warn("dashboard refresh failed", "error", msg.Err)
		m.dash.SetError(userMessage(msg.Err))
		return
	}
	m.dash.SetData(msg.Portfolio, msg.Trades, msg.Platforms, msg.Quotes, msg.At)
}

func (m *Model) handleTradeResult(msg tradeResultMsg) tea.Cmd {
	if msg.Err != nil {
		m.status.SetNotice(userMessage(msg.Err), true)
		return nil
	}
	tr := msg.Trade
	verb := "Bought"
	if tr.Side == appdata.SideSell {
		verb = "Sold"
	}
	m.status.SetNotice(fmt.Sprintf("%s %s %s at %s", verb, util.FormatQuantity(tr.Quantity), tr.Symbol, util.FormatMoney(tr.Price)), false)
	return m.refresh()
}

func (m *Model) handleCloseResult(msg closeResultMsg) tea.Cmd {
	if msg.Err != nil {
		m.status.SetNotice(userMessage(msg.Err), true)
		return nil
	}
	tr := msg.Trade
	m.status.SetNotice(fmt.Sprintf("Closed %s %s at %s, P&L %+.2f", util.FormatQuantity(tr.Quantity), tr.Symbol,
		util.FormatMoney(tr.ExitPrice), tr.PnL), tr.PnL < 0)
	return m.refresh()
}

func (m *Model) handlePlatformTest(msg platformTestMsg) tea.Cmd {
	if msg.Err != nil {
		m.status.SetNotice(userMessage(msg.Err), true)
		return nil
	}
	if !msg.Platform.Connected {
		m.status.SetNotice(msg.Platform.Name+" did not connect", true)
		return m.refresh()
	}
	m.status.SetNotice(msg.Platform.Name+" connected", false)
	return m.refresh()
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	snap := m.ctrl.Snapshot(m.clock.Now())

	status := m.status
	status.SetSnapshot(snap)

	var body string
	switch snap.State {
	case session.StateNoSession:
		status.SetShortcuts(m.keys.SignedOutHelp())
		body = m.form.View()

	case session.StateLocked:
		status.SetShortcuts(m.keys.LockedHelp())
		body = m.lock.View()

	case session.StateWarning:
		status.SetShortcuts(nil)
		overlay := m.overlay
		if !overlay.IsVisible() {
			overlay.Show(session.RemainingSeconds(snap.UntilLock))
		}
		body = overlay.View()

	default:
		status.SetShortcuts(m.keys.DashboardHelp(m.dash.Tab()))
		body = lipgloss.JoinVertical(lipgloss.Left, m.header(snap.User), m.dash.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, status.View())
}

func (m *Model) header(user session.CurrentUser) string {
	t := m.theme
	width := m.width
	if width <= 0 {
		width = 80
	}
	who := util.Truncate(strings.TrimSpace(user.DisplayName+"  "+user.Email), width/2)
	title := t.HeaderTitle.Render("NEON TRADER")
	gap := width - lipgloss.Width(title) - lipgloss.Width(who) - 2
	if gap < 1 {
		gap = 1
	}
	return t.Header.Width(width).Render(title + strings.Repeat(" ", gap) + t.HeaderUser.Render(who))
}
