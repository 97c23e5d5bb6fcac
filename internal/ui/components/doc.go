// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the screens and widgets of the neon TUI.

Each component is a small Bubble Tea style value: Update returns the new
value and a command, View renders it. Components never call the session
controller or the network; they emit messages that the app model acts on.

# Components

  - LoginForm: sign in or create an account, with an optional TOTP field
  - LockScreen: password or token re-check, plus quick unlock
  - WarningOverlay: pre-lock countdown; any key emits ExtendSessionMsg
  - Dashboard: portfolio, trades, platforms and market tabs with a trade prompt
  - StatusBar: session state, time to lock, notices and key hints

# Messages

	LoginSubmitMsg, RegisterSubmitMsg  from LoginForm
	UnlockMsg                          from LockScreen
	ExtendSessionMsg                   from WarningOverlay
	TradeSubmitMsg                     from Dashboard
*/
package components
