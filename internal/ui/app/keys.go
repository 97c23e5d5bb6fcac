// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/neontrader/neon-tui/internal/ui/components"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap holds the application-level bindings. Screen-local keys (form
// navigation, the lock screen's quick unlock) live in the components.
type KeyMap struct {
	Quit    key.Binding
	QuitAlt key.Binding
	Lock    key.Binding
	Logout  key.Binding
	Extend  key.Binding
	Refresh key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Trade   key.Binding

	// Row selection on the Trades and Platforms pages.
	Up           key.Binding
	Down         key.Binding
	CloseTrade   key.Binding
	TestPlatform key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("^C", "quit"),
		),
		QuitAlt: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Lock: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("^L", "lock"),
		),
		Logout: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("^X", "sign out"),
		),
		Extend: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "extend"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("S-tab", "prev tab"),
		),
		Trade: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "trade"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		CloseTrade: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "close trade"),
		),
		TestPlatform: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "test platform"),
		),
	}
}

// DashboardHelp returns the hints shown on the status bar while unlocked.
// Pages with selectable rows add their own actions.
func (k KeyMap) DashboardHelp(tab components.Tab) []components.Shortcut {
	switch tab {
	case components.TabTrades:
		return shortcuts(k.NextTab, k.Down, k.CloseTrade, k.Trade, k.Refresh, k.Lock, k.QuitAlt)
	case components.TabPlatforms:
		return shortcuts(k.NextTab, k.Down, k.TestPlatform, k.Refresh, k.Lock, k.QuitAlt)
	}
	return shortcuts(k.NextTab, k.Trade, k.Refresh, k.Lock, k.Logout, k.QuitAlt)
}

// LockedHelp returns the hints shown while locked.
func (k KeyMap) LockedHelp() []components.Shortcut {
	return shortcuts(k.Logout, k.Quit)
}

// SignedOutHelp returns the hints shown on the login form.
func (k KeyMap) SignedOutHelp() []components.Shortcut {
	return shortcuts(k.Quit)
}

func shortcuts(bindings ...key.Binding) []components.Shortcut {
	out := make([]components.Shortcut, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		out = append(out, components.Shortcut{Key: h.Key, Desc: h.Desc})
	}
	return out
}
