// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the hidebar chat window built on Bubble Tea.
package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/hidebarapp/hidebar/internal/chat"
	"github.com/hidebarapp/hidebar/internal/ollama"
	"github.com/hidebarapp/hidebar/internal/ui/styles"
	"github.com/hidebarapp/hidebar/internal/voice"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// stubStreamer satisfies chat.Streamer without touching the network.
type stubStreamer struct{}

func (s *stubStreamer) ChatStream(ctx context.Context, model string, messages []ollama.Message, callback ollama.StreamCallback) error {
	return nil
}

// newTestModel builds a window wired to a no-network controller, sized
// and ready for key events.
func newTestModel(t *testing.T) Model {
	t.Helper()

	controller := chat.NewController(
		&stubStreamer{},
		chat.SinkFunc(func(chat.Event) {}),
		chat.Config{Model: "llama3.2:latest"},
	)
	t.Cleanup(controller.Cancel)

	m := New(Config{
		Controller: controller,
		Client:     ollama.NewClient(),
		Theme:      styles.NewTheme("dark"),
		ShowStats:  true,
	})

	resized, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return resized.(Model)
}

// update drives one message through the model and re-types the result.
func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// =============================================================================
// LAYOUT TESTS
// =============================================================================

func TestUpdate_WindowSize(t *testing.T) {
	m := newTestModel(t)

	if m.width != 100 || m.height != 30 {
		t.Errorf("dimensions = %dx%d, want 100x30", m.width, m.height)
	}
	if m.viewport.Width < 1 || m.viewport.Height < 1 {
		t.Errorf("viewport = %dx%d, want positive dimensions", m.viewport.Width, m.viewport.Height)
	}
	if m.viewport.Height >= m.height {
		t.Errorf("viewport height %d should leave room for chrome in %d rows", m.viewport.Height, m.height)
	}
}

func TestView_BeforeFirstResize(t *testing.T) {
	controller := chat.NewController(
		&stubStreamer{},
		chat.SinkFunc(func(chat.Event) {}),
		chat.Config{},
	)

	m := New(Config{
		Controller: controller,
		Client:     ollama.NewClient(),
		Theme:      styles.NewTheme("dark"),
	})

	if got := m.View(); got != "Loading..." {
		t.Errorf("View() before resize = %q, want %q", got, "Loading...")
	}
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestSubmit_EmptyInputShowsStatus(t *testing.T) {
	m := newTestModel(t)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.statusText != "nothing to send" {
		t.Errorf("statusText = %q, want %q", m.statusText, "nothing to send")
	}
	if cmd == nil {
		t.Error("expected a status clear command")
	}
	if got := len(m.controller.History()); got != 0 {
		t.Errorf("history length = %d, want 0 after rejected submission", got)
	}
}

func TestSubmit_AcceptedClearsInput(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("hello there")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if got := m.input.Value(); got != "" {
		t.Errorf("input after submit = %q, want empty", got)
	}

	history := m.controller.History()
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].Role != chat.RoleUser || history[0].Content != "hello there" {
		t.Errorf("history[0] = %+v, want user turn %q", history[0], "hello there")
	}
}

// =============================================================================
// STREAM EVENT TESTS
// =============================================================================

func TestChatEvents_StreamLifecycle(t *testing.T) {
	m := newTestModel(t)
	id := uuid.New()

	m, cmd := update(t, m, EventMsg{Event: chat.StreamStarted{ID: id, Model: "llama3.2:latest"}})
	if m.state != StateStreaming {
		t.Fatalf("state after StreamStarted = %v, want StateStreaming", m.state)
	}
	if cmd == nil {
		t.Error("StreamStarted should kick off the spinner")
	}

	m, _ = update(t, m, EventMsg{Event: chat.TokenAppended{ID: id, Text: "Hel"}})
	m, _ = update(t, m, EventMsg{Event: chat.TokenAppended{ID: id, Text: "lo"}})
	if m.partial != "Hello" {
		t.Errorf("partial = %q, want %q", m.partial, "Hello")
	}

	m, _ = update(t, m, EventMsg{Event: chat.StreamCompleted{
		ID:               id,
		FullText:         "Hello",
		CompletionTokens: 42,
		TokensPerSecond:  9.5,
	}})
	if m.state != StateReady {
		t.Errorf("state after StreamCompleted = %v, want StateReady", m.state)
	}
	if m.partial != "" {
		t.Errorf("partial after completion = %q, want empty", m.partial)
	}
	if m.lastTokens != 42 {
		t.Errorf("lastTokens = %d, want 42", m.lastTokens)
	}
}

func TestChatEvents_StaleTokensIgnored(t *testing.T) {
	m := newTestModel(t)
	id := uuid.New()

	m, _ = update(t, m, EventMsg{Event: chat.StreamStarted{ID: id}})
	m, _ = update(t, m, EventMsg{Event: chat.TokenAppended{ID: uuid.New(), Text: "ghost"}})

	if m.partial != "" {
		t.Errorf("partial = %q, want empty after stale token", m.partial)
	}
}

func TestChatEvents_FailureSetsErrorStatus(t *testing.T) {
	m := newTestModel(t)
	id := uuid.New()

	m, _ = update(t, m, EventMsg{Event: chat.StreamStarted{ID: id}})
	m, _ = update(t, m, EventMsg{Event: chat.TokenAppended{ID: id, Text: "partial an"}})
	m, _ = update(t, m, EventMsg{Event: chat.StreamFailed{ID: id, Kind: chat.FailUnreachable}})

	if m.state != StateReady {
		t.Errorf("state after StreamFailed = %v, want StateReady", m.state)
	}
	if m.partial != "" {
		t.Errorf("partial after failure = %q, want empty", m.partial)
	}
	if !strings.Contains(m.statusText, "unreachable") {
		t.Errorf("statusText = %q, want it to name the failure", m.statusText)
	}
	if !m.statusErr {
		t.Error("failure status should use the error style")
	}
}

func TestChatEvents_CancelIsNotAnError(t *testing.T) {
	m := newTestModel(t)
	id := uuid.New()

	m, _ = update(t, m, EventMsg{Event: chat.StreamStarted{ID: id}})
	m, _ = update(t, m, EventMsg{Event: chat.StreamFailed{ID: id, Kind: chat.FailCanceled}})

	if m.statusText != "response canceled" {
		t.Errorf("statusText = %q, want %q", m.statusText, "response canceled")
	}
	if m.statusErr {
		t.Error("a user cancel should not use the error style")
	}
}

// =============================================================================
// VOICE STATUS TESTS
// =============================================================================

func TestVoiceStatus_MapsMicState(t *testing.T) {
	tests := []struct {
		name string
		kind voice.StatusKind
		want voice.State
	}{
		{"listening", voice.StatusListening, voice.StateListening},
		{"heard", voice.StatusHeard, voice.StateRecognizing},
		{"recognized", voice.StatusRecognized, voice.StateListening},
		{"unintelligible", voice.StatusUnintelligible, voice.StateListening},
		{"stopped", voice.StatusStopped, voice.StateIdle},
		{"device failure", voice.StatusDeviceFailure, voice.StateIdle},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestModel(t)
			m, _ = update(t, m, VoiceStatusMsg{Status: voice.Status{Kind: tc.kind}})
			if m.micState != tc.want {
				t.Errorf("micState = %v, want %v", m.micState, tc.want)
			}
		})
	}
}

// =============================================================================
// MODEL LIST TESTS
// =============================================================================

func TestModels_FallbackToFirstInstalled(t *testing.T) {
	m := newTestModel(t)

	m, _ = update(t, m, ModelsMsg{Models: []ollama.ModelInfo{
		{Name: "qwen2.5:3b"},
		{Name: "mistral:7b"},
	}})

	// llama3.2:latest is not installed, so the first model takes over.
	if got := m.controller.ActiveModel(); got != "qwen2.5:3b" {
		t.Errorf("ActiveModel() = %q, want fallback to %q", got, "qwen2.5:3b")
	}
	if m.modelIndex != 0 {
		t.Errorf("modelIndex = %d, want 0", m.modelIndex)
	}
}

func TestModels_TabCyclesSelection(t *testing.T) {
	m := newTestModel(t)

	m, _ = update(t, m, ModelsMsg{Models: []ollama.ModelInfo{
		{Name: "llama3.2:latest"},
		{Name: "mistral:7b"},
	}})
	if got := m.controller.ActiveModel(); got != "llama3.2:latest" {
		t.Fatalf("ActiveModel() = %q, want the configured model kept", got)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if got := m.controller.ActiveModel(); got != "mistral:7b" {
		t.Errorf("ActiveModel() after tab = %q, want %q", got, "mistral:7b")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if got := m.controller.ActiveModel(); got != "llama3.2:latest" {
		t.Errorf("ActiveModel() after second tab = %q, want wraparound to %q", got, "llama3.2:latest")
	}
}

// =============================================================================
// STATUS LINE TESTS
// =============================================================================

func TestStatusClear_SequenceGuard(t *testing.T) {
	m := newTestModel(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter}) // "nothing to send"
	if m.statusText == "" {
		t.Fatal("expected a status line to be set")
	}

	// A stale timer must not clear a newer status.
	m, _ = update(t, m, statusClearMsg{Seq: m.statusSeq - 1})
	if m.statusText == "" {
		t.Error("stale clear wiped the status line")
	}

	m, _ = update(t, m, statusClearMsg{Seq: m.statusSeq})
	if m.statusText != "" {
		t.Errorf("statusText = %q, want cleared", m.statusText)
	}
}

// =============================================================================
// RENDERING TESTS
// =============================================================================

func TestRenderTranscript_EmptyState(t *testing.T) {
	m := newTestModel(t)

	content := m.renderTranscript()
	if !strings.Contains(content, "Type a message") {
		t.Errorf("empty transcript = %q, want the getting-started hint", content)
	}
}

func TestRenderTranscript_ShowsPartial(t *testing.T) {
	m := newTestModel(t)
	id := uuid.New()

	m, _ = update(t, m, EventMsg{Event: chat.StreamStarted{ID: id}})
	m, _ = update(t, m, EventMsg{Event: chat.TokenAppended{ID: id, Text: "streaming now"}})

	content := m.renderTranscript()
	if !strings.Contains(content, "streaming now") {
		t.Errorf("transcript while streaming = %q, want the partial text", content)
	}
}
