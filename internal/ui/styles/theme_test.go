// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewThemeNames(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"neon", ThemeNeon},
		{"", ThemeNeon},
		{"PLAIN", ThemePlain},
		{" plain ", ThemePlain},
		{"solarized", ThemeNeon},
	}

	for _, tc := range tests {
		if got := NewTheme(tc.input).Name; got != tc.want {
			t.Errorf("NewTheme(%q).Name = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestThemeStylesRender(t *testing.T) {
	for _, name := range []string{ThemeNeon, ThemePlain} {
		theme := NewTheme(name)
		styles := []struct {
			name  string
			style lipgloss.Style
		}{
			{"Header", theme.Header},
			{"Panel", theme.Panel},
			{"FormBox", theme.FormBox},
			{"WarningBox", theme.WarningBox},
			{"LockBox", theme.LockBox},
			{"StatusBar", theme.StatusBar},
		}
		for _, s := range styles {
			if !strings.Contains(s.style.Render("test"), "test") {
				t.Errorf("%s/%s: rendered output lost its content", name, s.name)
			}
		}
	}
}

func TestSetSize(t *testing.T) {
	theme := NewTheme("")
	theme.SetSize(120, 40)
	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("SetSize: got %dx%d", theme.Width, theme.Height)
	}
}

// =============================================================================
// STATUS HELPER TESTS
// =============================================================================

func TestStatusHelpersIncludeIndicators(t *testing.T) {
	theme := NewTheme(ThemePlain)

	tests := []struct {
		got       string
		indicator string
	}{
		{theme.RenderSuccess("saved"), StatusIndicators.Success},
		{theme.RenderError("failed"), StatusIndicators.Error},
		{theme.RenderWarning("careful"), StatusIndicators.Warning},
		{theme.RenderInfo("note"), StatusIndicators.Info},
	}

	for _, tc := range tests {
		if !strings.Contains(tc.got, tc.indicator) {
			t.Errorf("%q should contain %q", tc.got, tc.indicator)
		}
	}
}

func TestChangeKeepsText(t *testing.T) {
	theme := NewTheme(ThemeNeon)
	if !strings.Contains(theme.Change("+1.2%", 1.2), "+1.2%") {
		t.Error("gain text lost")
	}
	if !strings.Contains(theme.Change("-3.4%", -3.4), "-3.4%") {
		t.Error("loss text lost")
	}
}
