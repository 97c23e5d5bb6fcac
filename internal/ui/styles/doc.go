// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles for the neon TUI.

All colors are lipgloss AdaptiveColors, so light and dark terminals get
matching variants.

# Themes

	theme := styles.NewTheme("neon")  // default
	theme := styles.NewTheme("plain") // no color, shapes and borders only

The plain theme swaps every color for NoColor. Status text always carries an
ASCII indicator ([OK], [X], [!], [i], [#]) so it reads the same either way.
*/
package styles
