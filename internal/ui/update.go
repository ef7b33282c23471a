// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the hidebar chat window built on Bubble Tea.
package ui

import (
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hidebarapp/hidebar/internal/chat"
	"github.com/hidebarapp/hidebar/internal/ollama"
	"github.com/hidebarapp/hidebar/internal/ui/styles"
	"github.com/hidebarapp/hidebar/internal/voice"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		return m.handleChatEvent(msg)

	case VoiceStatusMsg:
		return m.handleVoiceStatus(msg)

	case OllamaStatusMsg:
		return m.handleOllamaStatus(msg)

	case ModelsMsg:
		return m.handleModels(msg)

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case statusClearMsg:
		if msg.Seq == m.statusSeq {
			m.statusText = ""
			m.statusErr = false
		}
		return m, nil

	case spinner.TickMsg:
		if m.state == StateStreaming {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	default:
		// Unhandled messages go to the input for cursor blinks and to
		// the viewport for mouse scroll events.
		var cmds []tea.Cmd

		var inputCmd tea.Cmd
		m.input, inputCmd = m.input.Update(msg)
		cmds = append(cmds, inputCmd)

		var vpCmd tea.Cmd
		m.viewport, vpCmd = m.viewport.Update(msg)
		cmds = append(cmds, vpCmd)

		return m, tea.Batch(cmds...)
	}
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(m.width, m.height)

	// Measure the fixed-height chrome so the viewport takes the rest.
	header := m.renderHeader()
	input := m.renderInput()
	status := m.renderStatusBar()
	reserved := lipgloss.Height(header) + lipgloss.Height(input) + lipgloss.Height(status)

	vpHeight := m.height - reserved
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := m.width
	if vpWidth < 1 {
		vpWidth = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight

	// Input line lives inside a padded container with a "> " prompt.
	inputWidth := m.width - 6
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	// Refit the markdown renderer to the new width.
	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	if renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	); err == nil {
		m.renderer = renderer
	}

	m.updateViewport()
	m.viewport.GotoBottom()

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, vpCmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.handleQuit()

	case "enter":
		return m.handleSubmit()

	case "esc":
		if m.state == StateStreaming {
			// The stream reports back with a canceled event; state
			// flips there, not here.
			m.controller.Cancel()
			return m, nil
		}
		m.statusText = ""
		return m, nil

	case "ctrl+v":
		return m.handleVoiceToggle()

	case "ctrl+l":
		return m.handleClear()

	case "ctrl+r":
		return m, ListModelsCmd(m.client)

	case "tab":
		return m.handleCycleModel()

	case "up", "down", "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) handleQuit() (tea.Model, tea.Cmd) {
	if m.voiceLoop != nil {
		m.voiceLoop.Stop()
	}
	m.controller.Cancel()
	return m, tea.Quit
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	err := m.controller.SubmitUserText(m.input.Value())
	switch {
	case errors.Is(err, chat.ErrEmptySubmission):
		return m.withStatus("nothing to send")
	case errors.Is(err, chat.ErrBusy):
		return m.withStatus("still responding; esc cancels")
	case err != nil:
		return m.withStatus(err.Error())
	}

	// The user turn is in history as of the accepted call; show it
	// right away rather than waiting for the stream to start.
	m.input.Reset()
	m.updateViewport()
	m.viewport.GotoBottom()
	return m, textinput.Blink
}

func (m Model) handleVoiceToggle() (tea.Model, tea.Cmd) {
	if m.voiceLoop == nil {
		return m.withStatus("voice input unavailable")
	}

	if m.voiceLoop.Toggle() {
		m.micState = voice.StateListening
	} else {
		m.micState = voice.StateIdle
	}
	// The loop posts its own status line either way.
	return m, nil
}

func (m Model) handleClear() (tea.Model, tea.Cmd) {
	if err := m.controller.Reset(); err != nil {
		return m.withStatus("cannot clear while responding")
	}

	m.partial = ""
	m.lastTokens = 0
	m.lastRate = 0
	m.updateViewport()
	return m.withStatus("conversation cleared")
}

func (m Model) handleCycleModel() (tea.Model, tea.Cmd) {
	if len(m.models) == 0 {
		return m.withStatus("no models listed; C-r refreshes")
	}
	if m.state == StateStreaming {
		return m.withStatus("finish this response first")
	}

	m.modelIndex = (m.modelIndex + 1) % len(m.models)
	name := m.models[m.modelIndex].Name
	m.controller.SelectModel(name)
	return m.withStatus("model: " + name)
}

// =============================================================================
// SESSION EVENTS
// =============================================================================

func (m Model) handleChatEvent(msg EventMsg) (tea.Model, tea.Cmd) {
	switch ev := msg.Event.(type) {
	case chat.StreamStarted:
		m.state = StateStreaming
		m.streamID = ev.ID
		m.partial = ""
		m.statusText = ""
		m.updateViewport()
		m.viewport.GotoBottom()
		return m, m.spinner.Tick

	case chat.TokenAppended:
		if ev.ID != m.streamID {
			return m, nil
		}
		// Stay pinned to the bottom unless the user scrolled away.
		atBottom := m.viewport.AtBottom()
		m.partial += ev.Text
		m.updateViewport()
		if atBottom {
			m.viewport.GotoBottom()
		}
		return m, nil

	case chat.StreamCompleted:
		if ev.ID != m.streamID {
			return m, nil
		}
		m.state = StateReady
		m.streamID = uuid.Nil
		m.partial = ""
		m.lastTokens = ev.CompletionTokens
		m.lastRate = ev.TokensPerSecond
		m.updateViewport()
		m.viewport.GotoBottom()
		return m, nil

	case chat.StreamFailed:
		if ev.ID != m.streamID {
			return m, nil
		}
		m.state = StateReady
		m.streamID = uuid.Nil
		m.partial = ""
		m.updateViewport()

		if ev.Kind == chat.FailCanceled {
			return m.withStatus("response canceled")
		}
		m.logger.Warn("stream failed",
			zap.String("kind", ev.Kind.String()),
			zap.String("detail", ev.Message))
		return m.withErrorStatus("response failed: " + ev.Kind.String())
	}

	return m, nil
}

// =============================================================================
// VOICE STATUS
// =============================================================================

func (m Model) handleVoiceStatus(msg VoiceStatusMsg) (tea.Model, tea.Cmd) {
	switch msg.Status.Kind {
	case voice.StatusListening:
		m.micState = voice.StateListening
	case voice.StatusHeard:
		m.micState = voice.StateRecognizing
	case voice.StatusRecognized, voice.StatusDiscarded,
		voice.StatusUnintelligible, voice.StatusServiceTrouble,
		voice.StatusRecalibrating:
		m.micState = voice.StateListening
	case voice.StatusStopped, voice.StatusDeviceFailure:
		m.micState = voice.StateIdle
	}

	if msg.Status.Message != "" {
		if msg.Status.Kind == voice.StatusDeviceFailure {
			return m.withErrorStatus(msg.Status.Message)
		}
		return m.withStatus(msg.Status.Message)
	}
	return m, nil
}

// =============================================================================
// OLLAMA STATUS AND MODELS
// =============================================================================

func (m Model) handleOllamaStatus(msg OllamaStatusMsg) (tea.Model, tea.Cmd) {
	m.serverUp = msg.Running
	if !msg.Running {
		m.logger.Warn("ollama unreachable", zap.Error(msg.Error))
		return m.withErrorStatus("ollama is not reachable; is it running?")
	}
	return m, ListModelsCmd(m.client)
}

func (m Model) handleModels(msg ModelsMsg) (tea.Model, tea.Cmd) {
	if msg.Error != nil {
		m.logger.Warn("model listing failed", zap.Error(msg.Error))
		return m.withErrorStatus("could not list models")
	}

	m.models = msg.Models
	if len(m.models) == 0 {
		return m.withStatus("no models installed; try: ollama pull llama3.2")
	}

	active := m.controller.ActiveModel()
	m.modelIndex = indexOfModel(m.models, active)
	if m.modelIndex < 0 {
		// The configured model is not installed; take the first one.
		m.modelIndex = 0
		m.controller.SelectModel(m.models[0].Name)
		return m.withStatus("model: " + m.models[0].Name)
	}
	return m, nil
}

func indexOfModel(models []ollama.ModelInfo, name string) int {
	for i, mi := range models {
		if mi.Name == name {
			return i
		}
	}
	return -1
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	cfg := msg.Config
	if cfg == nil {
		return m, nil
	}

	// Endpoint, model, and language changes were already applied to
	// the clients by the reload callback; pick up the display side.
	m.showStats = cfg.UI.ShowStats
	m.autoStart = cfg.Ollama.AutoStart
	m.theme = styles.NewTheme(cfg.UI.Theme)
	m.theme.SetSize(m.width, m.height)
	m.spinner.Style = m.theme.Spinner

	if idx := indexOfModel(m.models, m.controller.ActiveModel()); idx >= 0 {
		m.modelIndex = idx
	}

	m.updateViewport()
	return m.withStatus("configuration reloaded")
}

// =============================================================================
// HELPERS
// =============================================================================

// withStatus sets a transient status line and schedules its clear.
func (m Model) withStatus(text string) (tea.Model, tea.Cmd) {
	m.statusText = text
	m.statusErr = false
	m.statusSeq++
	return m, clearStatusCmd(m.statusSeq, statusDisplayTime)
}

// withErrorStatus is withStatus in the error style.
func (m Model) withErrorStatus(text string) (tea.Model, tea.Cmd) {
	m.statusText = text
	m.statusErr = true
	m.statusSeq++
	return m, clearStatusCmd(m.statusSeq, statusDisplayTime)
}

// updateViewport re-renders the transcript into the viewport.
func (m *Model) updateViewport() {
	m.viewport.SetContent(m.renderTranscript())
}
