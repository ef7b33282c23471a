// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the hidebar chat window built on Bubble Tea.
//
// This file defines all Bubble Tea message types used by the chat window.
// Messages are organized into the following categories:
//   - Session: chat events forwarded from the session controller
//   - Voice: status updates forwarded from the capture loop
//   - Ollama: health checks and model listings
//   - Config: hot-reloaded configuration snapshots
//   - Status: transient status line housekeeping
//
// All message types follow Bubble Tea conventions and are immutable.
package ui

import (
	"github.com/hidebarapp/hidebar/internal/chat"
	"github.com/hidebarapp/hidebar/internal/config"
	"github.com/hidebarapp/hidebar/internal/ollama"
	"github.com/hidebarapp/hidebar/internal/voice"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// EventMsg delivers one session controller event into the update loop.
// The controller posts events from its stream goroutine; the bridge
// re-posts them here so all state changes happen on the program
// goroutine.
type EventMsg struct {
	Event chat.Event
}

// =============================================================================
// VOICE MESSAGES
// =============================================================================

// VoiceStatusMsg delivers one voice capture status update.
type VoiceStatusMsg struct {
	Status voice.Status
}

// =============================================================================
// OLLAMA MESSAGES
// =============================================================================

// OllamaStatusMsg reports Ollama connection status.
type OllamaStatusMsg struct {
	Running bool
	Error   error
}

// ModelsMsg delivers the list of installed models.
type ModelsMsg struct {
	Models []ollama.ModelInfo
	Error  error
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg delivers a hot-reloaded configuration snapshot.
// Endpoint and language changes are applied to the clients before this
// message is sent; the window only picks up its display settings.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// statusClearMsg retires a transient status line once its display time
// is up. Seq guards against a stale timer clearing a newer status.
type statusClearMsg struct {
	Seq int
}
