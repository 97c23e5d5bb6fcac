// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/neontrader/neon-tui/internal/session"
	"github.com/neontrader/neon-tui/internal/ui/styles"
	"github.com/neontrader/neon-tui/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// Shortcut is a key hint shown on the right of the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line: session state, time to lock, a transient
// notice and key hints.
type StatusBar struct {
	theme *styles.Theme
	width int

	snap session.Snapshot

	notice    string
	noticeErr bool

	shortcuts []Shortcut
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) StatusBar {
	return StatusBar{theme: theme, width: 80}
}

// SetWidth updates the bar width.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetSnapshot updates the session view.
func (s *StatusBar) SetSnapshot(snap session.Snapshot) {
	s.snap = snap
}

// SetNotice shows a transient message; an empty msg clears it.
func (s *StatusBar) SetNotice(msg string, isErr bool) {
	s.notice = msg
	s.noticeErr = isErr
}

// Notice returns the current notice text.
func (s StatusBar) Notice() string {
	return s.notice
}

// SetShortcuts replaces the key hints.
func (s *StatusBar) SetShortcuts(shortcuts []Shortcut) {
	s.shortcuts = shortcuts
}

// View renders the bar. On narrow terminals the hints go first.
func (s StatusBar) View() string {
	t := s.theme
	width := s.width
	if width <= 0 {
		width = 80
	}

	left := []string{s.renderState()}
	if s.snap.State == session.StateUnlocked || s.snap.State == session.StateWarning {
		left = append(left, t.Label.Render("locks in ")+t.Value.Render(util.FormatRemaining(s.snap.UntilLock)))
	}
	if s.notice != "" {
		if s.noticeErr {
			left = append(left, t.RenderError(s.notice))
		} else {
			left = append(left, t.RenderSuccess(s.notice))
		}
	}
	leftStr := strings.Join(left, "  ")

	hints := make([]string, 0, len(s.shortcuts))
	for _, sc := range s.shortcuts {
		hints = append(hints, t.ShortcutKey.Render(sc.Key)+" "+t.ShortcutDesc.Render(sc.Desc))
	}
	right := strings.Join(hints, "  ")

	inner := width - 2
	gap := inner - lipgloss.Width(leftStr) - lipgloss.Width(right)
	if gap < 1 {
		// Hints are dropped before the state is.
		right = ""
		gap = inner - lipgloss.Width(leftStr)
		if gap < 0 {
			gap = 0
		}
	}
	return t.StatusBar.Width(width).Render(leftStr + strings.Repeat(" ", gap) + right)
}

func (s StatusBar) renderState() string {
	t := s.theme
	switch s.snap.State {
	case session.StateUnlocked:
		return t.SuccessStyle.Render(styles.StatusIndicators.Success + " " + util.Truncate(s.snap.User.DisplayName, 24))
	case session.StateWarning:
		return t.RenderWarning(util.Truncate(s.snap.User.DisplayName, 24))
	case session.StateLocked:
		return t.InfoStyle.Render(styles.StatusIndicators.Locked + " locked")
	default:
		return t.Muted.Render("signed out")
	}
}
