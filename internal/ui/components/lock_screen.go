// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neontrader/neon-tui/internal/ui/styles"
	"github.com/neontrader/neon-tui/internal/util"
)

// =============================================================================
// LOCK SCREEN
// =============================================================================

// LockScreen hides the dashboard while the session is locked. Enter with a
// password re-authenticates; Enter on an empty field asks the backend to
// confirm the held token; ctrl+o unlocks without contacting the backend.
type LockScreen struct {
	theme *styles.Theme

	password textinput.Model
	totp     textinput.Model
	showTOTP bool
	focusOn  int // 0 password, 1 totp

	user string
	err  string
	busy bool

	width  int
	height int
}

// UnlockMsg is sent when the user submits the lock screen.
type UnlockMsg struct {
	Password string
	TOTPCode string

	// Quick skips the backend check entirely.
	Quick bool
}

// NewLockScreen creates the lock screen.
func NewLockScreen(theme *styles.Theme) LockScreen {
	return LockScreen{
		theme:    theme,
		password: newInput("password (empty to verify token)", true),
		totp:     newInput("6-digit code", false),
	}
}

// Reset clears the inputs and errors for user and focuses the password.
func (l *LockScreen) Reset(user string) tea.Cmd {
	l.user = user
	l.err = ""
	l.busy = false
	l.showTOTP = false
	l.password.Reset()
	l.totp.Reset()
	l.totp.Blur()
	l.focusOn = 0
	return l.password.Focus()
}

// SetSize sets the screen dimensions.
func (l *LockScreen) SetSize(width, height int) {
	l.width = width
	l.height = height
}

// SetError shows msg, clears the focused field and re-enables input.
func (l *LockScreen) SetError(msg string) {
	l.err = msg
	l.busy = false
	if l.focusOn == 1 {
		l.totp.Reset()
	} else {
		l.password.Reset()
	}
}

// RequireTOTP reveals the second-factor field and focuses it.
func (l *LockScreen) RequireTOTP() tea.Cmd {
	l.showTOTP = true
	l.busy = false
	l.focusOn = 1
	l.password.Blur()
	return l.totp.Focus()
}

// Busy reports whether an unlock is in flight.
func (l LockScreen) Busy() bool {
	return l.busy
}

// Err returns the error shown on screen.
func (l LockScreen) Err() string {
	return l.err
}

// Update handles messages for the lock screen.
func (l LockScreen) Update(msg tea.Msg) (LockScreen, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		l.SetSize(msg.Width, msg.Height)
		return l, nil

	case tea.KeyMsg:
		if l.busy {
			return l, nil
		}
		switch msg.String() {
		case "enter":
			l.busy = true
			l.err = ""
			req := UnlockMsg{Password: l.password.Value(), TOTPCode: strings.TrimSpace(l.totp.Value())}
			return l, func() tea.Msg { return req }

		case "ctrl+o":
			l.busy = true
			l.err = ""
			return l, func() tea.Msg { return UnlockMsg{Quick: true} }

		case "tab", "shift+tab", "up", "down":
			if l.showTOTP {
				return l, l.toggleFocus()
			}
			return l, nil
		}
	}

	var cmd tea.Cmd
	if l.focusOn == 1 {
		l.totp, cmd = l.totp.Update(msg)
	} else {
		l.password, cmd = l.password.Update(msg)
	}
	return l, cmd
}

func (l *LockScreen) toggleFocus() tea.Cmd {
	if l.focusOn == 0 {
		l.focusOn = 1
		l.password.Blur()
		return l.totp.Focus()
	}
	l.focusOn = 0
	l.totp.Blur()
	return l.password.Focus()
}

// View renders the lock screen.
func (l LockScreen) View() string {
	t := l.theme
	width, height := sizeOr(l.width, l.height)
	boxWidth := clamp(width-8, 44, 64)

	lines := []string{
		t.LockTitle.Render(styles.StatusIndicators.Locked + " Session locked"),
		"",
		t.Label.Render("Signed in as ") + t.Value.Render(util.Truncate(l.user, boxWidth-24)),
		"",
		fieldView(t, "Password", l.password, l.focusOn == 0),
	}
	if l.showTOTP {
		lines = append(lines, fieldView(t, "Two-factor code", l.totp, l.focusOn == 1))
	}

	status := ""
	switch {
	case l.busy:
		status = t.RenderInfo("Verifying...")
	case l.err != "":
		status = t.RenderError(l.err)
	}
	lines = append(lines, "", status, "",
		t.Hint.Render("enter unlock  ctrl+o quick unlock  ctrl+x sign out"))

	box := t.LockBox.Width(boxWidth).Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceBackground(t.Backdrop))
}

// =============================================================================
// INPUT HELPERS
// =============================================================================

// newInput builds a single-line text input; secret inputs echo bullets.
func newInput(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.CharLimit = 256
	ti.Width = 32
	// A static cursor keeps focus changes from scheduling blink ticks.
	ti.Cursor.SetMode(cursor.CursorStatic)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.TextPrimary)
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

// fieldView renders a labelled input with a focus border.
func fieldView(t *styles.Theme, label string, in textinput.Model, focused bool) string {
	box := t.Input
	if focused {
		box = t.InputFocused
	}
	return lipgloss.JoinVertical(lipgloss.Left, t.InputLabel.Render(label), box.Render(in.View()))
}
