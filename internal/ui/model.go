// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the hidebar chat window built on Bubble Tea.
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hidebarapp/hidebar/internal/chat"
	"github.com/hidebarapp/hidebar/internal/ollama"
	"github.com/hidebarapp/hidebar/internal/ui/styles"
	"github.com/hidebarapp/hidebar/internal/voice"
)

// =============================================================================
// WINDOW STATE
// =============================================================================

// State represents the current state of the chat window.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving a streaming response
)

// statusDisplayTime is how long a transient status line stays visible.
const statusDisplayTime = 5 * time.Second

// =============================================================================
// WINDOW MODEL
// =============================================================================

// Config wires the chat window's collaborators.
type Config struct {
	// Controller owns the conversation session. Required.
	Controller *chat.Controller

	// Voice is the capture loop. Nil disables the voice toggle.
	Voice *voice.Loop

	// Client is the Ollama client used for health checks and model
	// listings. Required.
	Client *ollama.Client

	// Theme selects the style set. Nil gets auto-detection.
	Theme *styles.Theme

	// AutoStart makes the startup health check launch a local server
	// when none responds.
	AutoStart bool

	// ShowStats displays generation statistics after each response.
	ShowStats bool

	// Logger for window lifecycle logging. Nil means no logging.
	Logger *zap.Logger
}

// Model is the Bubble Tea model for the chat window.
type Model struct {
	// Collaborators
	controller *chat.Controller
	voiceLoop  *voice.Loop
	client     *ollama.Client
	logger     *zap.Logger

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Key bindings
	keyMap KeyMap

	// Markdown rendering for completed assistant turns
	renderer *glamour.TermRenderer

	// Streaming state. partial accumulates the in-flight assistant
	// text; it is display-only, history stays with the controller.
	state    State
	streamID uuid.UUID
	partial  string

	// Ollama state
	serverUp   bool
	models     []ollama.ModelInfo
	modelIndex int

	// Voice state, derived from capture loop status updates
	micState voice.State

	// Transient status line
	statusText string
	statusErr  bool
	statusSeq  int

	// Statistics of the last completed response
	showStats  bool
	lastTokens int
	lastRate   float64

	autoStart bool
}

// New creates the chat window model.
func New(cfg Config) Model {
	theme := cfg.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Text input with prompt
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	// Transcript viewport
	vp := viewport.New(80, 20)
	vp.SetContent("")

	// Spinner with ASCII-compatible animation
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	// Markdown renderer; resize replaces it with a width-fitted one.
	// A nil renderer falls back to plain text.
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		logger.Warn("markdown renderer unavailable", zap.Error(err))
		renderer = nil
	}

	return Model{
		controller: cfg.Controller,
		voiceLoop:  cfg.Voice,
		client:     cfg.Client,
		logger:     logger,
		theme:      theme,
		viewport:   vp,
		input:      ti,
		spinner:    sp,
		keyMap:     DefaultKeyMap(),
		renderer:   renderer,
		state:      StateReady,
		micState:   voice.StateIdle,
		showStats:  cfg.ShowStats,
		autoStart:  cfg.AutoStart,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and the Ollama health check. The model
// listing chains off a successful check.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		CheckOllamaCmd(m.client, m.autoStart),
	)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ActiveModel returns the model the next submission will use.
func (m Model) ActiveModel() string {
	return m.controller.ActiveModel()
}

// Streaming reports whether a response is currently streaming.
func (m Model) Streaming() bool {
	return m.state == StateStreaming
}

// StatusLine returns the current transient status text, empty when the
// hints line is showing instead.
func (m Model) StatusLine() string {
	return m.statusText
}
