// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// DISPLAY WIDTH
// =============================================================================

// Ellipsis marks truncated text.
const Ellipsis = "..."

// Truncate shortens s to at most width terminal cells, ending in an ellipsis
// when anything was cut. Wide runes (CJK, emoji) count as two cells.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= len(Ellipsis) {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, Ellipsis)
}

// PadRight pads s with spaces to width cells, truncating if it is longer.
func PadRight(s string, width int) string {
	s = Truncate(s, width)
	return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
}

// =============================================================================
// TIME FORMATTING
// =============================================================================

// FormatCountdown renders whole seconds as M:SS. Negative values show 0:00.
func FormatCountdown(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// FormatRemaining renders a duration as a countdown, rounding partial
// seconds up so the display never reads 0:00 while time is left.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return FormatCountdown(0)
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return FormatCountdown(secs)
}

// =============================================================================
// NUMBER FORMATTING
// =============================================================================

// FormatMoney renders an amount with two decimals and thousands separators.
func FormatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	raw := fmt.Sprintf("%.2f", v)
	whole, frac, _ := strings.Cut(raw, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// FormatQuantity trims trailing zeros from a quantity with up to eight
// decimals.
func FormatQuantity(q float64) string {
	s := fmt.Sprintf("%.8f", q)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
