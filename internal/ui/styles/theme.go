// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the hidebar TUI.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	PartialText    lipgloss.Style
	ErrorText      lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar  lipgloss.Style
	StatusKey  lipgloss.Style
	StatusText lipgloss.Style
	ServerUp   lipgloss.Style
	ServerDown lipgloss.Style

	// ==========================================================================
	// VOICE INDICATOR STYLES
	// ==========================================================================

	VoiceOff         lipgloss.Style
	VoiceListening   lipgloss.Style
	VoiceRecognizing lipgloss.Style

	// ==========================================================================
	// SPINNER AND STATISTICS STYLES
	// ==========================================================================

	Spinner    lipgloss.Style
	StatsLabel lipgloss.Style
	StatsValue lipgloss.Style
	Hint       lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
//
// The mode argument maps to the ui.theme config key: "dark" and "light"
// force the palette variant, anything else keeps terminal auto-detection.
func NewTheme(mode string) *Theme {
	switch strings.ToLower(mode) {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}

	// Detect terminal capabilities
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       lipgloss.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderModel = lipgloss.NewStyle().
		Foreground(Cyan)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.PartialText = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.StatusText = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.ServerUp = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.ServerDown = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	// Voice indicator
	t.VoiceOff = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.VoiceListening = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.VoiceRecognizing = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	// Spinner and statistics
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.StatsLabel = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatsValue = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.Hint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
