// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"time"

	"github.com/neontrader/neon-tui/internal/appdata"
)

// =============================================================================
// COMMAND RESULTS
// =============================================================================

// authResultMsg reports the outcome of Login or Register.
type authResultMsg struct {
	Email    string
	Register bool
	Err      error
}

// unlockResultMsg reports the outcome of a reauthenticated unlock.
type unlockResultMsg struct {
	Err error
}

// dataMsg carries a dashboard refresh.
type dataMsg struct {
	Portfolio *appdata.Portfolio
	Trades    []appdata.Trade
	Platforms []appdata.Platform
	Quotes    []appdata.Quote
	At        time.Time
	Err       error
}

// tradeResultMsg reports a placed order.
type tradeResultMsg struct {
	Trade appdata.Trade
	Err   error
}

// closeResultMsg reports a closed trade.
type closeResultMsg struct {
	Trade appdata.Trade
	Err   error
}

// platformTestMsg reports a platform connection test.
type platformTestMsg struct {
	Platform appdata.Platform
	Err      error
}

// redrawMsg repaints the countdown on the status bar.
type redrawMsg time.Time
