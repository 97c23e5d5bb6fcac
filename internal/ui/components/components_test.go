// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neontrader/neon-tui/internal/appdata"
	"github.com/neontrader/neon-tui/internal/session"
	"github.com/neontrader/neon-tui/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.ThemePlain)
}

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

// =============================================================================
// WARNING OVERLAY TESTS
// =============================================================================

func TestWarningOverlayHiddenByDefault(t *testing.T) {
	o := NewWarningOverlay(testTheme())
	if o.IsVisible() {
		t.Fatal("overlay should start hidden")
	}
	if o.View() != "" {
		t.Error("hidden overlay should render nothing")
	}
	_, cmd := o.Update(typeText("x"))
	if cmd != nil {
		t.Error("keys on a hidden overlay should not extend the session")
	}
}

func TestWarningOverlayCountdown(t *testing.T) {
	o := NewWarningOverlay(testTheme())
	o.SetSize(80, 24)
	o.Show(42)

	if !o.IsVisible() || o.Remaining() != 42 {
		t.Fatalf("Show(42): visible=%v remaining=%d", o.IsVisible(), o.Remaining())
	}
	if !strings.Contains(o.View(), "0:42") {
		t.Error("view should show the countdown as M:SS")
	}

	o.Show(7)
	if !strings.Contains(o.View(), "0:07") {
		t.Error("view should follow countdown updates")
	}
}

func TestWarningOverlayAnyKeyExtends(t *testing.T) {
	o := NewWarningOverlay(testTheme())
	o.Show(30)

	o, cmd := o.Update(typeText("e"))
	if o.IsVisible() {
		t.Error("key press should hide the overlay")
	}
	if cmd == nil {
		t.Fatal("key press should return a command")
	}
	if _, ok := cmd().(ExtendSessionMsg); !ok {
		t.Error("command should produce ExtendSessionMsg")
	}
}

// =============================================================================
// LOCK SCREEN TESTS
// =============================================================================

func TestLockScreenPasswordUnlock(t *testing.T) {
	l := NewLockScreen(testTheme())
	l.Reset("alice")

	l, _ = l.Update(typeText("hunter22"))
	if strings.Contains(l.View(), "hunter22") {
		t.Error("password must not be echoed")
	}

	l, cmd := l.Update(press(tea.KeyEnter))
	if !l.Busy() {
		t.Error("submitting should mark the screen busy")
	}
	msg, ok := cmd().(UnlockMsg)
	if !ok {
		t.Fatalf("expected UnlockMsg, got %T", cmd())
	}
	if msg.Password != "hunter22" || msg.Quick {
		t.Errorf("unexpected request: %+v", msg)
	}

	// Input is ignored while verifying.
	_, cmd = l.Update(press(tea.KeyEnter))
	if cmd != nil {
		t.Error("busy lock screen should ignore keys")
	}

	l.SetError("Incorrect password")
	if l.Busy() || l.Err() != "Incorrect password" {
		t.Errorf("SetError: busy=%v err=%q", l.Busy(), l.Err())
	}
	if !strings.Contains(l.View(), "Incorrect password") {
		t.Error("error should be rendered")
	}
}

func TestLockScreenEmptyPasswordChecksToken(t *testing.T) {
	l := NewLockScreen(testTheme())
	l.Reset("alice")

	_, cmd := l.Update(press(tea.KeyEnter))
	msg := cmd().(UnlockMsg)
	if msg.Password != "" || msg.Quick {
		t.Errorf("empty submit should ask for a token check, got %+v", msg)
	}
}

func TestLockScreenQuickUnlock(t *testing.T) {
	l := NewLockScreen(testTheme())
	l.Reset("alice")

	_, cmd := l.Update(press(tea.KeyCtrlO))
	msg := cmd().(UnlockMsg)
	if !msg.Quick {
		t.Error("ctrl+o should request a quick unlock")
	}
}

func TestLockScreenTOTP(t *testing.T) {
	l := NewLockScreen(testTheme())
	l.Reset("alice")
	l, _ = l.Update(typeText("pw123456"))
	l, _ = l.Update(press(tea.KeyEnter))

	l.RequireTOTP()
	if !strings.Contains(l.View(), "Two-factor code") {
		t.Error("TOTP field should appear")
	}
	l, _ = l.Update(typeText("123456"))
	_, cmd := l.Update(press(tea.KeyEnter))
	msg := cmd().(UnlockMsg)
	if msg.Password != "pw123456" || msg.TOTPCode != "123456" {
		t.Errorf("unexpected request: %+v", msg)
	}
}

func TestLockScreenResetClearsState(t *testing.T) {
	l := NewLockScreen(testTheme())
	l.Reset("alice")
	l, _ = l.Update(typeText("secret"))
	l.SetError("boom")
	l.RequireTOTP()

	l.Reset("bob")
	if l.Err() != "" || l.Busy() {
		t.Error("Reset should clear error and busy")
	}
	view := l.View()
	if strings.Contains(view, "Two-factor code") {
		t.Error("Reset should hide the TOTP field")
	}
	if !strings.Contains(view, "bob") {
		t.Error("Reset should show the new user")
	}
}

// =============================================================================
// LOGIN FORM TESTS
// =============================================================================

func TestLoginFormSubmit(t *testing.T) {
	f := NewLoginForm(testTheme())

	f, _ = f.Update(typeText(" alice@example.com "))
	f, _ = f.Update(press(tea.KeyEnter)) // moves to password
	if f.Busy() {
		t.Fatal("enter on a non-final field should not submit")
	}
	f, _ = f.Update(typeText("correct horse"))
	f, cmd := f.Update(press(tea.KeyEnter))

	if !f.Busy() {
		t.Error("form should be busy after submit")
	}
	msg, ok := cmd().(LoginSubmitMsg)
	if !ok {
		t.Fatalf("expected LoginSubmitMsg, got %T", cmd())
	}
	if msg.Credentials.Email != "alice@example.com" || msg.Credentials.Password != "correct horse" {
		t.Errorf("unexpected credentials: %+v", msg.Credentials)
	}
}

func TestLoginFormRequiresFields(t *testing.T) {
	f := NewLoginForm(testTheme())
	f, _ = f.Update(typeText("alice@example.com"))
	f, _ = f.Update(press(tea.KeyTab))
	f, _ = f.Update(press(tea.KeyEnter))

	if f.Busy() {
		t.Error("empty password should not submit")
	}
	if f.Err() != "Password is required" {
		t.Errorf("Err() = %q", f.Err())
	}
}

func TestLoginFormRegister(t *testing.T) {
	f := NewLoginForm(testTheme())
	f, _ = f.Update(press(tea.KeyCtrlR))
	if f.Mode() != ModeRegister {
		t.Fatalf("ctrl+r should switch to register, got %s", f.Mode())
	}

	for _, v := range []string{"bob@example.com", "bob", "battery staple", "battery staple"} {
		f, _ = f.Update(typeText(v))
		f, _ = f.Update(press(tea.KeyTab))
	}
	// Tab wrapped back to email; go to the last field and submit.
	f, _ = f.Update(press(tea.KeyShiftTab))
	_, cmd := f.Update(press(tea.KeyEnter))

	msg, ok := cmd().(RegisterSubmitMsg)
	if !ok {
		t.Fatalf("expected RegisterSubmitMsg, got %T", cmd())
	}
	reg := msg.Registration
	if reg.Email != "bob@example.com" || reg.Username != "bob" || reg.Password != "battery staple" || reg.ConfirmPassword != "battery staple" {
		t.Errorf("unexpected registration: %+v", reg)
	}
}

func TestLoginFormTOTPAndReset(t *testing.T) {
	f := NewLoginForm(testTheme())
	f.Prefill("alice@example.com")
	f.Reset() // focuses password since email is known
	f, _ = f.Update(typeText("correct horse"))
	f, _ = f.Update(press(tea.KeyEnter))

	f.RequireTOTP()
	if f.Busy() {
		t.Error("RequireTOTP should re-enable the form")
	}
	f, _ = f.Update(typeText("654321"))
	_, cmd := f.Update(press(tea.KeyEnter))
	msg := cmd().(LoginSubmitMsg)
	if msg.Credentials.TOTPCode != "654321" || msg.Credentials.Password != "correct horse" {
		t.Errorf("unexpected credentials: %+v", msg.Credentials)
	}

	f.Reset()
	if f.Value("Email") != "alice@example.com" {
		t.Error("Reset should keep the email")
	}
	if f.Value("Password") != "" || f.Value("Two-factor code") != "" {
		t.Error("Reset should clear secrets")
	}
}

func TestLoginFormNotice(t *testing.T) {
	f := NewLoginForm(testTheme())
	f.SetNotice("Session expired after inactivity")
	if !strings.Contains(f.View(), "Session expired after inactivity") {
		t.Error("notice should be rendered")
	}
}

// =============================================================================
// DASHBOARD TESTS
// =============================================================================

func TestParseTradeCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    appdata.TradeRequest
		wantErr bool
	}{
		{"buy btc 0.1", appdata.TradeRequest{Symbol: "BTC", Side: "buy", Quantity: 0.1}, false},
		{"SELL eth 2 @ 2700", appdata.TradeRequest{Symbol: "ETH", Side: "sell", Quantity: 2, Price: 2700}, false},
		{"sell eth 2 @2700", appdata.TradeRequest{Symbol: "ETH", Side: "sell", Quantity: 2, Price: 2700}, false},
		{"hold btc 1", appdata.TradeRequest{}, true},
		{"buy btc x", appdata.TradeRequest{}, true},
		{"buy btc -1", appdata.TradeRequest{}, true},
		{"buy btc 1 @ y", appdata.TradeRequest{}, true},
		{"buy", appdata.TradeRequest{}, true},
	}

	for _, tc := range tests {
		got, err := ParseTradeCommand(tc.input)
		if tc.wantErr {
			if !errors.Is(err, appdata.ErrInvalidTrade) {
				t.Errorf("ParseTradeCommand(%q) err = %v, want ErrInvalidTrade", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTradeCommand(%q) unexpected error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTradeCommand(%q) = %+v, want %+v", tc.input, got, tc.want)
		}
	}
}

func TestDashboardTabsWrap(t *testing.T) {
	d := NewDashboard(testTheme())
	d.PrevTab()
	if d.Tab() != TabMarket {
		t.Errorf("PrevTab from first should wrap to Market, got %s", d.Tab())
	}
	d.NextTab()
	if d.Tab() != TabPortfolio {
		t.Errorf("NextTab from last should wrap to Portfolio, got %s", d.Tab())
	}
}

func TestDashboardRendersData(t *testing.T) {
	d := NewDashboard(testTheme())
	d.SetSize(100, 30)
	d.SetLoading(true)
	if !strings.Contains(d.View(), "Loading") {
		t.Error("first load should show a loading line")
	}

	p := &appdata.Portfolio{TotalValue: 10050, Cash: 3075, Holdings: []appdata.Holding{
		{Symbol: "BTC", Quantity: 0.1, AvgPrice: 43250, Value: 4325},
	}}
	trades := []appdata.Trade{{Symbol: "BTC", Side: "buy", Quantity: 0.1, Price: 43250, Total: 4325, ExecutedAt: time.Now()}}
	platforms := []appdata.Platform{{Name: "Binance", Connected: true, APIKeyHint: "****abcd"}}
	quotes := []appdata.Quote{{Symbol: "ETH", Price: 2650, Change24h: -1.5, Source: "mock"}}
	d.SetData(p, trades, platforms, quotes, time.Now())

	if d.Loading() {
		t.Error("SetData should end loading")
	}
	checks := []struct {
		tab  Tab
		want []string
	}{
		{TabPortfolio, []string{"$10,050.00", "$3,075.00", "BTC", "0.1"}},
		{TabTrades, []string{"BUY", "$4,325.00"}},
		{TabPlatforms, []string{"Binance", "****abcd", "connected"}},
		{TabMarket, []string{"ETH", "$2,650.00", "-1.5%", "mock"}},
	}
	for _, c := range checks {
		for d.Tab() != c.tab {
			d.NextTab()
		}
		view := d.View()
		for _, w := range c.want {
			if !strings.Contains(view, w) {
				t.Errorf("%s view missing %q", c.tab, w)
			}
		}
	}
}

func TestDashboardSelection(t *testing.T) {
	d := NewDashboard(testTheme())
	d.SetSize(100, 30)
	trades := []appdata.Trade{
		{ID: "t-2", Symbol: "ETH", Side: "sell", Quantity: 1, Price: 2700, Status: appdata.StatusClosed, PnL: 50},
		{ID: "t-1", Symbol: "BTC", Side: "buy", Quantity: 0.1, Price: 43250, Status: appdata.StatusFilled},
	}
	platforms := []appdata.Platform{{ID: "p-1", Name: "Binance"}}
	d.SetData(&appdata.Portfolio{}, trades, platforms, nil, time.Now())

	if _, ok := d.SelectedTrade(); ok {
		t.Error("no trade is selectable off the Trades page")
	}

	d.NextTab()
	if tr, ok := d.SelectedTrade(); !ok || tr.ID != "t-2" {
		t.Errorf("SelectedTrade = %v, %v; want t-2", tr.ID, ok)
	}
	if !strings.Contains(d.View(), "+50.00") {
		t.Error("closed trade should show its PnL")
	}
	d.MoveCursor(5)
	if tr, _ := d.SelectedTrade(); tr.ID != "t-1" {
		t.Errorf("cursor should stop at the last row, got %s", tr.ID)
	}
	d.MoveCursor(-5)
	if d.Cursor() != 0 {
		t.Errorf("cursor should stop at the first row, got %d", d.Cursor())
	}
	d.MoveCursor(1)

	d.SetData(&appdata.Portfolio{}, trades[:1], platforms, nil, time.Now())
	if d.Cursor() != 0 {
		t.Errorf("cursor should follow a shrinking list, got %d", d.Cursor())
	}

	d.NextTab()
	if p, ok := d.SelectedPlatform(); !ok || p.ID != "p-1" {
		t.Errorf("SelectedPlatform = %v, %v; want p-1", p.ID, ok)
	}
	if !strings.Contains(d.View(), "untested") {
		t.Error("a platform that was never tested should say so")
	}
}

func TestDashboardTradePrompt(t *testing.T) {
	d := NewDashboard(testTheme())
	d.StartTrade()
	if !d.Entering() {
		t.Fatal("StartTrade should open the prompt")
	}

	d, _ = d.Update(typeText("buy sol"))
	d, cmd := d.Update(press(tea.KeyEnter))
	if cmd != nil || !d.Entering() || d.Err() == "" {
		t.Fatal("malformed order should keep the prompt open with an error")
	}

	d, _ = d.Update(typeText(" 2"))
	d, cmd = d.Update(press(tea.KeyEnter))
	if d.Entering() {
		t.Error("valid order should close the prompt")
	}
	msg, ok := cmd().(TradeSubmitMsg)
	if !ok {
		t.Fatalf("expected TradeSubmitMsg, got %T", cmd())
	}
	if msg.Request.Symbol != "SOL" || msg.Request.Quantity != 2 {
		t.Errorf("unexpected request: %+v", msg.Request)
	}

	d.StartTrade()
	d, _ = d.Update(press(tea.KeyEsc))
	if d.Entering() {
		t.Error("esc should close the prompt")
	}
}

func TestDashboardClear(t *testing.T) {
	d := NewDashboard(testTheme())
	d.SetData(&appdata.Portfolio{Cash: 1}, nil, nil, nil, time.Now())
	d.NextTab()
	d.Clear()

	if _, ok := d.Portfolio(); ok {
		t.Error("Clear should drop the portfolio")
	}
	if d.Tab() != TabPortfolio {
		t.Error("Clear should reset the tab")
	}
}

// =============================================================================
// STATUS BAR TESTS
// =============================================================================

func TestStatusBarStates(t *testing.T) {
	s := NewStatusBar(testTheme())
	s.SetWidth(100)
	s.SetShortcuts([]Shortcut{{Key: "^L", Desc: "lock"}})

	if !strings.Contains(s.View(), "signed out") {
		t.Error("no session should read signed out")
	}

	s.SetSnapshot(session.Snapshot{
		State:     session.StateUnlocked,
		User:      session.CurrentUser{DisplayName: "alice"},
		UntilLock: 4*time.Minute + 30*time.Second,
	})
	view := s.View()
	for _, want := range []string{"alice", "locks in", "4:30", "^L", "lock"} {
		if !strings.Contains(view, want) {
			t.Errorf("unlocked view missing %q", want)
		}
	}

	s.SetSnapshot(session.Snapshot{State: session.StateLocked})
	if !strings.Contains(s.View(), "locked") || strings.Contains(s.View(), "locks in") {
		t.Error("locked view should show the lock and no countdown")
	}
}

func TestStatusBarNarrowDropsHints(t *testing.T) {
	s := NewStatusBar(testTheme())
	s.SetWidth(20)
	s.SetShortcuts([]Shortcut{{Key: "^L", Desc: "lock now please"}})
	s.SetNotice("Trade filled", false)

	if strings.Contains(s.View(), "lock now please") {
		t.Error("hints should be dropped when there is no room")
	}
}
