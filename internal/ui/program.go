// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the hidebar chat window built on Bubble Tea.
//
// This file defines the bridge between background goroutines and the
// running program. The session controller and the voice loop both post
// from their own goroutines; Program.Send is the only safe entry point
// into the update loop, and the bridge guards the window before the
// program exists.
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hidebarapp/hidebar/internal/chat"
	"github.com/hidebarapp/hidebar/internal/voice"
)

// =============================================================================
// PROGRAM BRIDGE
// =============================================================================

// Bridge forwards events from background goroutines into the running
// Bubble Tea program. Until SetProgram is called messages are dropped;
// that window covers collaborator construction, which happens before
// the program starts.
type Bridge struct {
	mu      sync.RWMutex
	program *tea.Program
}

// NewBridge creates an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// SetProgram attaches the running program.
func (b *Bridge) SetProgram(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

// Send forwards msg to the program. Safe from any goroutine; a nil or
// unattached bridge drops the message.
func (b *Bridge) Send(msg tea.Msg) {
	if b == nil {
		return
	}

	b.mu.RLock()
	p := b.program
	b.mu.RUnlock()

	if p != nil {
		p.Send(msg)
	}
}

// ChatSink adapts the bridge to the session controller's event sink.
func (b *Bridge) ChatSink() chat.SinkFunc {
	return func(event chat.Event) {
		b.Send(EventMsg{Event: event})
	}
}

// VoiceSink adapts the bridge to the voice loop's status sink.
func (b *Bridge) VoiceSink() voice.SinkFunc {
	return func(status voice.Status) {
		b.Send(VoiceStatusMsg{Status: status})
	}
}

// =============================================================================
// PROGRAM CONSTRUCTION
// =============================================================================

// NewProgram builds the program with the window's standard options.
// The caller attaches it to the bridge and runs it.
func NewProgram(m Model) *tea.Program {
	return tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
}
