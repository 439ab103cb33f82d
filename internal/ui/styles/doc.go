// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the privgpt TUI.

This package defines the color palette and the Theme struct used by the
chat view. All colors use Lip Gloss AdaptiveColor for automatic
light/dark terminal detection.

# Color System (colors.go)

Primary accents:

  - Purple - Primary accent for assistant messages and selections
  - Cyan - Brand color for info and user highlights
  - Emerald - Online status and local model indicator
  - Amber - Warnings and cloud model indicator
  - Rose - Errors and offline status

Hierarchical text color system:

	TextPrimary   - Main content text
	TextSecondary - Supporting text
	TextMuted     - De-emphasized text
	TextInverse   - Text on colored backgrounds

# Theme System (theme.go)

The Theme struct provides runtime color adaptation:

	theme := styles.NewTheme()
	if theme.IsDark {
		// Dark terminal detected
	}

# Usage Example

	import "github.com/privgpt-studio/privgpt-tui/internal/ui/styles"

	header := theme.Header.Render("PrivGPT")
	status := theme.StatusOffline.Render("offline")
*/
package styles
