// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package ui provides the hidebar chat window built on Bubble Tea.

The window is a single view: a transcript viewport on top of a one-line
input, framed by a header and a status bar. It holds no conversation
state of its own; the session controller owns history and the window
renders what the controller reports.

# Key Types

  - Model - The Bubble Tea model for the chat window
  - Config - Collaborator wiring for New
  - Bridge - Thread-safe funnel from background goroutines into the program
  - KeyMap - Keyboard bindings with help text

# Event Flow

The session controller and the voice loop run their own goroutines and
know nothing about Bubble Tea. The bridge adapts their sinks:

	bridge := ui.NewBridge()
	controller := chat.NewController(client, bridge.ChatSink(), chatCfg)
	loop := voice.NewLoop(mic, recognizer, controller, bridge.VoiceSink(), voiceCfg)

	m := ui.New(ui.Config{
		Controller: controller,
		Voice:      loop,
		Client:     client,
		Theme:      styles.NewTheme(cfg.UI.Theme),
		AutoStart:  cfg.Ollama.AutoStart,
		ShowStats:  cfg.UI.ShowStats,
		Logger:     logger,
	})

	p := ui.NewProgram(m)
	bridge.SetProgram(p)
	_, err := p.Run()

Events posted before SetProgram are dropped; nothing posts until the
user acts, so the window is harmless.

# Keys

enter sends, esc cancels the in-flight response, ctrl+v toggles voice
capture, tab cycles the installed models, ctrl+l clears the
conversation, ctrl+r refreshes the model list, ctrl+c quits.

# Rendering

Completed assistant turns render as markdown through glamour; the
in-flight partial stays plain so tokens append without reflowing. The
transcript pins to the bottom unless the user scrolls away.
*/
package ui
