// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat owns the conversation session and its streaming lifecycle.
package chat

import (
	"github.com/google/uuid"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// Event is one item of the stream lifecycle delivered to the display
// consumer. Events for a given stream are delivered in order, each at
// most once: StreamStarted, zero or more TokenAppended, then exactly one
// of StreamCompleted or StreamFailed.
type Event interface {
	// StreamID identifies which stream the event belongs to.
	StreamID() uuid.UUID
}

// StreamStarted signals that a user submission was accepted and the
// assistant turn is being generated.
type StreamStarted struct {
	ID    uuid.UUID
	Model string
}

// TokenAppended carries one incremental content fragment, in the exact
// order fragments were received from the wire. Fragments are never
// batched or reordered here; render pacing is the consumer's business.
type TokenAppended struct {
	ID   uuid.UUID
	Text string
}

// StreamCompleted signals a successful stream. FullText equals the
// concatenation of every TokenAppended fragment for the same stream,
// and the assistant turn is already in history when this event fires.
type StreamCompleted struct {
	ID       uuid.UUID
	FullText string

	// Generation statistics from the final chunk, zero when the
	// server did not report them.
	CompletionTokens int
	TokensPerSecond  float64
}

// StreamFailed signals an unsuccessful stream. History is left exactly
// as it was after the user turn was appended; the partial assistant
// text is discarded, never retained.
type StreamFailed struct {
	ID      uuid.UUID
	Kind    FailKind
	Message string

	// StatusCode carries the HTTP status for FailServerError, 0 otherwise.
	StatusCode int
}

func (e StreamStarted) StreamID() uuid.UUID   { return e.ID }
func (e TokenAppended) StreamID() uuid.UUID   { return e.ID }
func (e StreamCompleted) StreamID() uuid.UUID { return e.ID }
func (e StreamFailed) StreamID() uuid.UUID    { return e.ID }

// =============================================================================
// FAILURE KINDS
// =============================================================================

// FailKind categorizes stream failures for status display.
type FailKind int

const (
	FailUnknown FailKind = iota
	FailTimeout
	FailUnreachable
	FailServerError
	FailEmptyResponse
	FailCanceled
)

// String returns a short status-text label for the failure kind.
func (k FailKind) String() string {
	switch k {
	case FailTimeout:
		return "timeout"
	case FailUnreachable:
		return "unreachable"
	case FailServerError:
		return "server error"
	case FailEmptyResponse:
		return "empty response"
	case FailCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// =============================================================================
// EVENT SINK
// =============================================================================

// EventSink receives the controller's events. Implementations must be
// safe to call from a background goroutine and must preserve call
// order; posting to a bubbletea program satisfies both.
type EventSink interface {
	Post(Event)
}

// SinkFunc adapts a plain function to the EventSink interface.
type SinkFunc func(Event)

// Post calls f(event).
func (f SinkFunc) Post(event Event) { f(event) }
