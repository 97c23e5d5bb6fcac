// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neontrader/neon-tui/internal/ui/styles"
	"github.com/neontrader/neon-tui/internal/util"
)

// =============================================================================
// WARNING OVERLAY
// =============================================================================

// WarningOverlay shows the pre-lock countdown. Any key dismisses it and
// asks for the session to be extended.
type WarningOverlay struct {
	theme *styles.Theme

	visible   bool
	remaining int // seconds until auto-lock

	width  int
	height int
}

// ExtendSessionMsg is sent when the user dismisses the warning.
type ExtendSessionMsg struct{}

// NewWarningOverlay creates a hidden overlay.
func NewWarningOverlay(theme *styles.Theme) WarningOverlay {
	return WarningOverlay{theme: theme}
}

// SetSize sets the overlay dimensions.
func (o *WarningOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// Show displays the overlay with the given seconds left.
func (o *WarningOverlay) Show(remaining int) {
	o.visible = true
	o.remaining = remaining
}

// Hide hides the overlay.
func (o *WarningOverlay) Hide() {
	o.visible = false
	o.remaining = 0
}

// IsVisible returns whether the overlay is shown.
func (o WarningOverlay) IsVisible() bool {
	return o.visible
}

// Remaining returns the seconds left on the countdown.
func (o WarningOverlay) Remaining() int {
	return o.remaining
}

// Update handles messages for the overlay.
func (o WarningOverlay) Update(msg tea.Msg) (WarningOverlay, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.width = msg.Width
		o.height = msg.Height

	case tea.KeyMsg:
		if o.visible {
			o.Hide()
			return o, func() tea.Msg { return ExtendSessionMsg{} }
		}
	}
	return o, nil
}

// View renders the overlay, or "" when hidden.
func (o WarningOverlay) View() string {
	if !o.visible {
		return ""
	}
	width, height := sizeOr(o.width, o.height)
	boxWidth := clamp(width-8, 40, 60)

	t := o.theme
	lines := []string{
		t.WarningTitle.Render(styles.StatusIndicators.Warning + " Still there?"),
		"",
		lipgloss.NewStyle().Width(boxWidth - 8).Align(lipgloss.Center).Render(
			"Your session locks in " + t.Countdown.Render(util.FormatCountdown(o.remaining))),
		"",
		t.Hint.Render("Press any key (or e) to stay signed in"),
	}

	box := t.WarningBox.Width(boxWidth).Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceBackground(t.Backdrop))
}

// =============================================================================
// LAYOUT HELPERS
// =============================================================================

// sizeOr substitutes a default 80x24 for unknown dimensions.
func sizeOr(width, height int) (int, int) {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	return width, height
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// center places content in the middle of the screen.
func center(width, height int, content string) string {
	width, height = sizeOr(width, height)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

// joinNonEmpty joins the non-empty parts with newlines.
func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
