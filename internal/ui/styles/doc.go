// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the hidebar TUI.

This package defines the color palette and the Theme struct used throughout
the chat window. All colors use Lip Gloss AdaptiveColor for automatic
light/dark terminal detection.

# Color System (colors.go)

## Primary Accent Colors

  - Purple - Primary accent for assistant turns and the header brand
  - Cyan - User prompt, key hints, and the active model name
  - Emerald - Success states, the server-up dot, and the listening microphone
  - Amber - Warnings and the recognizing voice state
  - Rose - Errors, failed streams, and the server-down dot

## Surface Colors

Layered surface system for depth:

	Surface    - Main background
	SurfaceDim - Subtle backgrounds (header, status bar)
	Overlay    - Borders and separators

## Text Colors

Hierarchical text color system:

	TextPrimary   - Main content text
	TextSecondary - Supporting text, partial streams
	TextMuted     - Hints and de-emphasized text

# Theme System (theme.go)

The Theme struct provides runtime color adaptation. The mode argument maps
to the ui.theme configuration key:

	theme := styles.NewTheme("auto")
	if theme.IsDark {
		// Dark terminal detected
	}
	if theme.HasTrueColor {
		// Terminal supports 16M colors
	}

"dark" and "light" force the palette variant for terminals whose background
detection is unreliable over SSH or inside multiplexers.

# Usage Example

	import "github.com/hidebarapp/hidebar/internal/ui/styles"

	theme := styles.NewTheme(cfg.UI.Theme)
	header := theme.HeaderTitle.Render("hidebar")
	status := theme.ServerUp.Render(styles.StatusIndicators.Active + " ollama")
*/
package styles
