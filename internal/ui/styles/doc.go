// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the ragchat TUI.

# Color System (colors.go)

All colors are Lip Gloss AdaptiveColor values, so the light or dark variant is
picked from the terminal background:

	Purple, Cyan       - accents (assistant, user)
	Emerald, Amber     - success and warning states
	Rose               - errors and the failure banner
	Surface*, Text*    - layered surfaces and text hierarchy

# Theme System (theme.go)

A Theme bundles the styles used by the chat screen. The background can be
forced with the ui.theme setting:

	theme := styles.NewTheme("auto") // or "dark" / "light"
	theme.SetSize(width, height)
	sidebar := theme.SidebarWidth()  // 0 when the terminal is too narrow

GlamourStyle returns the matching glamour standard style name.

# Animation System (animations.go)

SpinnerConfig values convert to bubbles spinners with Spinner().
*/
package styles
