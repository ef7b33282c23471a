// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the hidebar chat window built on Bubble Tea.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hidebarapp/hidebar/internal/chat"
	"github.com/hidebarapp/hidebar/internal/ui/styles"
	"github.com/hidebarapp/hidebar/internal/util"
	"github.com/hidebarapp/hidebar/internal/voice"
)

// View renders the chat window.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	transcript := m.viewport.View()
	input := m.renderInput()
	status := m.renderStatusBar()

	// Stack vertically: header, transcript, input, status bar.
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		transcript,
		input,
		status,
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	title := m.theme.HeaderTitle.Render("hidebar")

	name := m.controller.ActiveModel()
	if name == "" {
		name = m.client.DefaultModel()
	}
	modelName := m.theme.HeaderModel.Render(util.TruncateWidth(name, width/2))

	var server string
	if m.serverUp {
		server = m.theme.ServerUp.Render(styles.StatusIndicators.Active + " ollama")
	} else {
		server = m.theme.ServerDown.Render(styles.StatusIndicators.Error + " ollama")
	}

	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")

	return m.theme.Header.
		Width(width).
		Render(title + sep + modelName + sep + server)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript builds the viewport content from the controller's
// history plus the in-flight partial text.
func (m *Model) renderTranscript() string {
	history := m.controller.History()
	if len(history) == 0 && m.state != StateStreaming {
		return m.renderEmptyState()
	}

	var b strings.Builder
	for _, turn := range history {
		b.WriteString(m.renderTurn(turn))
		b.WriteString("\n")
	}

	if m.state == StateStreaming {
		b.WriteString(m.theme.AssistantLabel.Render("assistant"))
		b.WriteString("\n")
		if m.partial != "" {
			// Plain text while streaming; markdown is rendered once
			// the turn is complete and in history.
			b.WriteString(m.theme.PartialText.Render(m.partial))
		} else {
			b.WriteString(m.theme.Hint.Render("..."))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) renderTurn(turn chat.Turn) string {
	if turn.Role == chat.RoleUser {
		return m.theme.UserLabel.Render("you") + "\n" + turn.Content + "\n"
	}
	return m.theme.AssistantLabel.Render("assistant") + "\n" + m.renderMarkdown(turn.Content)
}

// renderMarkdown renders a completed assistant turn, falling back to
// plain text when the renderer is unavailable or chokes.
func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content + "\n"
	}

	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return strings.Trim(rendered, "\n") + "\n"
}

func (m *Model) renderEmptyState() string {
	hint := "Type a message and press enter to chat."
	if m.voiceLoop != nil {
		hint += " Ctrl+V speaks instead."
	}
	return "\n" + m.theme.Hint.Render(hint) + "\n"
}

// =============================================================================
// INPUT
// =============================================================================

func (m Model) renderInput() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	return m.theme.InputContainer.Width(width).Render(m.input.View())
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatusBar() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")

	// Left section: spinner while streaming, voice indicator otherwise
	var left string
	if m.state == StateStreaming {
		left = m.spinner.View() + " responding"
	} else {
		left = m.renderVoiceIndicator()
	}

	// Middle section: transient status or key hints
	var middle string
	switch {
	case m.statusText != "" && m.statusErr:
		middle = m.theme.ErrorText.Render(m.statusText)
	case m.statusText != "":
		middle = m.theme.StatusText.Render(m.statusText)
	default:
		middle = m.renderHints(sep)
	}

	content := left + sep + middle

	// Right section: generation statistics of the last response
	if m.showStats && m.lastRate > 0 && m.state != StateStreaming {
		stats := m.theme.StatsValue.Render(util.IntToString(m.lastTokens)) +
			m.theme.StatsLabel.Render(" tok ") +
			m.theme.StatsValue.Render(util.FloatToString(m.lastRate)) +
			m.theme.StatsLabel.Render(" tok/s")
		content += sep + stats
	}

	return m.theme.StatusBar.Width(width).Render(content)
}

func (m Model) renderVoiceIndicator() string {
	if m.voiceLoop == nil {
		return m.theme.VoiceOff.Render("mic --")
	}

	switch m.micState {
	case voice.StateListening:
		return m.theme.VoiceListening.Render("mic " + styles.StatusIndicators.Active)
	case voice.StateRecognizing:
		return m.theme.VoiceRecognizing.Render("mic " + styles.StatusIndicators.Warning)
	default:
		return m.theme.VoiceOff.Render("mic off")
	}
}

func (m Model) renderHints(sep string) string {
	var parts []string
	for _, b := range m.keyMap.ShortHelp() {
		h := b.Help()
		parts = append(parts, m.theme.StatusKey.Render(h.Key)+" "+m.theme.StatusText.Render(h.Desc))
	}
	return strings.Join(parts, sep)
}
