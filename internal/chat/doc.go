// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat owns the conversation session and its streaming lifecycle.
//
// This package implements the session controller: an append-only
// conversation history, the active model selection, and a strict
// one-stream-at-a-time submission gate. Responses stream in on a
// background goroutine and surface as ordered events; consumers render
// the events and never touch session state directly.
//
// # Key Types
//
//   - Controller: Session state machine with single-in-flight streaming
//   - Turn: One immutable entry of the conversation history
//   - Event: Interface over the four stream lifecycle events
//   - EventSink: Destination for posted events (a Bubble Tea program fits)
//
// # Usage
//
// Create a controller wired to an Ollama client and an event sink:
//
//	ctrl := chat.NewController(client, sink, chat.Config{Model: "llama3.2:latest"})
//
// Submit text; rejection is synchronous, streaming is not:
//
//	if err := ctrl.SubmitUserText(input); err != nil {
//	    // chat.ErrEmptySubmission or chat.ErrBusy; nothing was sent
//	}
//
// Consume events in arrival order:
//
//	StreamStarted -> TokenAppended* -> StreamCompleted | StreamFailed
//
// # Ordering Guarantees
//
// TokenAppended events carry fragments exactly as received, never
// merged or split. On StreamCompleted the assistant turn is already
// visible in History(), and FullText equals the concatenation of every
// TokenAppended.Text for that stream ID. On StreamFailed the partial
// text is discarded and history keeps only the user turn.
package chat
