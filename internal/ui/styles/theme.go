// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme names accepted by NewTheme.
const (
	ThemeNeon  = "neon"
	ThemePlain = "plain"
)

// palette maps semantic roles to colors so the plain theme can swap them
// all for NoColor.
type palette struct {
	brand, accent, frame   lipgloss.TerminalColor
	good, bad, warn        lipgloss.TerminalColor
	surface, rule          lipgloss.TerminalColor
	text, secondary, muted lipgloss.TerminalColor
}

func neonPalette() palette {
	return palette{
		brand: Cyan, accent: Magenta, frame: Purple,
		good: Emerald, bad: Rose, warn: Amber,
		surface: SurfaceDim, rule: Overlay,
		text: TextPrimary, secondary: TextSecondary, muted: TextMuted,
	}
}

func plainPalette() palette {
	none := lipgloss.NoColor{}
	return palette{
		brand: none, accent: none, frame: none,
		good: none, bad: none, warn: none,
		surface: none, rule: none,
		text: none, secondary: none, muted: none,
	}
}

// Theme holds the styles used by every screen.
type Theme struct {
	Name   string
	IsDark bool

	Width  int
	Height int

	// ==========================================================================
	// HEADER AND TABS
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderUser  lipgloss.Style
	Tab         lipgloss.Style
	TabActive   lipgloss.Style

	// ==========================================================================
	// DASHBOARD
	// ==========================================================================

	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	Label      lipgloss.Style
	Value      lipgloss.Style
	Muted      lipgloss.Style
	Gain       lipgloss.Style
	Loss       lipgloss.Style

	// ==========================================================================
	// FORMS
	// ==========================================================================

	FormBox      lipgloss.Style
	FormTitle    lipgloss.Style
	InputLabel   lipgloss.Style
	Input        lipgloss.Style
	InputFocused lipgloss.Style
	Hint         lipgloss.Style

	// ==========================================================================
	// SESSION SCREENS
	// ==========================================================================

	WarningBox   lipgloss.Style
	WarningTitle lipgloss.Style
	Countdown    lipgloss.Style
	LockBox      lipgloss.Style
	LockTitle    lipgloss.Style
	Backdrop     lipgloss.TerminalColor

	// ==========================================================================
	// STATUS
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
}

// NewTheme builds the named theme. Unknown names fall back to neon.
func NewTheme(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	p := neonPalette()
	if name == ThemePlain {
		p = plainPalette()
	} else {
		name = ThemeNeon
	}

	t := &Theme{
		Name:   name,
		IsDark: lipgloss.HasDarkBackground(),
	}
	t.initStyles(p)
	return t
}

// SetSize records the terminal dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

func (t *Theme) initStyles(p palette) {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(p.surface).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.brand)

	t.HeaderUser = lipgloss.NewStyle().
		Foreground(p.secondary)

	t.Tab = lipgloss.NewStyle().
		Foreground(p.muted).
		Padding(0, 1)

	t.TabActive = lipgloss.NewStyle().
		Bold(true).
		Underline(true).
		Foreground(p.accent).
		Padding(0, 1)

	// Dashboard
	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.frame).
		Padding(0, 1)

	t.PanelTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.brand).
		MarginBottom(1)

	t.Label = lipgloss.NewStyle().Foreground(p.secondary)
	t.Value = lipgloss.NewStyle().Foreground(p.text).Bold(true)
	t.Muted = lipgloss.NewStyle().Foreground(p.muted)
	t.Gain = lipgloss.NewStyle().Foreground(p.good)
	t.Loss = lipgloss.NewStyle().Foreground(p.bad)

	// Forms
	t.FormBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.brand).
		Padding(1, 3)

	t.FormTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.brand).
		MarginBottom(1)

	t.InputLabel = lipgloss.NewStyle().Foreground(p.secondary)

	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(p.rule).
		Padding(0, 1)

	t.InputFocused = t.Input.
		BorderForeground(p.brand)

	t.Hint = lipgloss.NewStyle().
		Foreground(p.muted).
		Italic(true)

	// Session screens
	t.WarningBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(p.warn).
		Padding(1, 3).
		Align(lipgloss.Center)

	t.WarningTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.warn)

	t.Countdown = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.warn)

	t.LockBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(p.frame).
		Padding(1, 3).
		Align(lipgloss.Center)

	t.LockTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.frame)

	t.Backdrop = p.surface

	// Status
	t.StatusBar = lipgloss.NewStyle().
		Background(p.surface).
		Foreground(p.secondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(p.brand).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(p.muted)

	t.SuccessStyle = lipgloss.NewStyle().Foreground(p.good).Bold(true)
	t.ErrorStyle = lipgloss.NewStyle().Foreground(p.bad).Bold(true)
	t.WarningStyle = lipgloss.NewStyle().Foreground(p.warn).Bold(true)
	t.InfoStyle = lipgloss.NewStyle().Foreground(p.brand)
}

// =============================================================================
// STATUS HELPERS
// =============================================================================

// RenderSuccess renders message with the success indicator.
func (t *Theme) RenderSuccess(message string) string {
	return t.SuccessStyle.Render(StatusIndicators.Success + " " + message)
}

// RenderError renders message with the error indicator.
func (t *Theme) RenderError(message string) string {
	return t.ErrorStyle.Render(StatusIndicators.Error + " " + message)
}

// RenderWarning renders message with the warning indicator.
func (t *Theme) RenderWarning(message string) string {
	return t.WarningStyle.Render(StatusIndicators.Warning + " " + message)
}

// RenderInfo renders message with the info indicator.
func (t *Theme) RenderInfo(message string) string {
	return t.InfoStyle.Render(StatusIndicators.Info + " " + message)
}

// Change renders a signed value in gain or loss color.
func (t *Theme) Change(text string, v float64) string {
	if v < 0 {
		return t.Loss.Render(text)
	}
	return t.Gain.Render(text)
}
