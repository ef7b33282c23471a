// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat owns the conversation session and its streaming lifecycle.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hidebarapp/hidebar/internal/ollama"
)

// =============================================================================
// ERRORS
// =============================================================================

// Rejected submissions are synchronous no-ops, never user-facing errors:
// the caller simply gets told why nothing happened.
var (
	// ErrEmptySubmission is returned for empty or whitespace-only text.
	ErrEmptySubmission = errors.New("empty submission")

	// ErrBusy is returned while a stream is in flight. Submissions are
	// not queued; a second submission during streaming is a no-op.
	ErrBusy = errors.New("a response is already streaming")
)

// =============================================================================
// CONVERSATION TURNS
// =============================================================================

// Role attributes a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation. Immutable once appended.
type Turn struct {
	Role    Role
	Content string
}

// =============================================================================
// STREAMER
// =============================================================================

// Streamer issues one streaming chat request. *ollama.Client satisfies it.
type Streamer interface {
	ChatStream(ctx context.Context, model string, messages []ollama.Message, callback ollama.StreamCallback) error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Config holds controller configuration.
type Config struct {
	// Model is the initially active model. May be empty; the Ollama
	// client then falls back to its own default.
	Model string

	// Logger for session lifecycle logging. Nil means no logging.
	Logger *zap.Logger
}

// Controller owns the conversation session: the append-only history,
// the active model, and the single-in-flight streaming invariant.
//
// All methods are safe for concurrent use. At most one stream is in
// flight at a time; SubmitUserText check-and-sets the in-flight flag
// atomically with respect to a concurrently terminating stream.
//
// The display consumer observes the session exclusively through the
// events posted to the sink; it never mutates history. History changes
// only on an accepted user submission and on successful stream
// completion, never on failure.
type Controller struct {
	client Streamer
	sink   EventSink
	logger *zap.Logger

	mu       sync.Mutex
	history  []Turn
	model    string
	inFlight bool
	streamID uuid.UUID
	cancel   context.CancelFunc
}

// NewController creates a session controller posting events to sink.
func NewController(client Streamer, sink EventSink, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		client: client,
		sink:   sink,
		logger: logger,
		model:  cfg.Model,
	}
}

// =============================================================================
// PUBLIC OPERATIONS
// =============================================================================

// SubmitUserText appends a user turn and begins the assistant turn in a
// background goroutine. Returns ErrEmptySubmission for blank text and
// ErrBusy while a stream is in flight; both leave the session untouched
// and issue no request. Exactly one streaming request goes out per
// accepted call.
func (c *Controller) SubmitUserText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptySubmission
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}

	c.inFlight = true
	c.streamID = uuid.New()
	c.history = append(c.history, Turn{Role: RoleUser, Content: trimmed})

	id := c.streamID
	model := c.model
	messages := historyToMessages(c.history)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Debug("submission accepted",
		zap.String("stream_id", id.String()),
		zap.String("model", model),
		zap.Int("history_turns", len(messages)))

	// Posted before the goroutine starts so StreamStarted always
	// precedes the stream's other events.
	c.sink.Post(StreamStarted{ID: id, Model: model})

	go c.runStream(ctx, cancel, id, model, messages)

	return nil
}

// SelectModel replaces the active model. No effect on history; takes
// effect on the next SubmitUserText. Empty identifiers are ignored.
func (c *Controller) SelectModel(model string) {
	if model == "" {
		return
	}
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

// ActiveModel returns the model the next submission will use.
func (c *Controller) ActiveModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// InFlight reports whether a stream is currently open.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// History returns a copy of the conversation so far.
func (c *Controller) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.history))
	copy(out, c.history)
	return out
}

// Reset clears the conversation. Returns ErrBusy while a stream is in
// flight; cancel first.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return ErrBusy
	}
	c.history = nil
	return nil
}

// Cancel aborts the in-flight stream, if any. The stream reports
// StreamFailed with FailCanceled; the partial text is discarded and
// history keeps only the user turn. No-op when idle.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// =============================================================================
// STREAM EXECUTION
// =============================================================================

// runStream performs one streaming request on its own goroutine. It is
// the only writer of the partial accumulator, which lives and dies with
// this call: on any failure the accumulated text is dropped, never
// retained.
func (c *Controller) runStream(ctx context.Context, cancel context.CancelFunc, id uuid.UUID, model string, messages []ollama.Message) {
	defer cancel()

	var partial strings.Builder
	var final ollama.StreamChunk

	err := c.client.ChatStream(ctx, model, messages, func(chunk ollama.StreamChunk) {
		if chunk.Content != "" {
			partial.WriteString(chunk.Content)
			c.sink.Post(TokenAppended{ID: id, Text: chunk.Content})
		}
		if chunk.Done {
			final = chunk
		}
	})

	fullText := partial.String()

	switch {
	case err != nil:
		kind, status, msg := classifyStreamError(err)
		c.logger.Warn("stream failed",
			zap.String("stream_id", id.String()),
			zap.String("kind", kind.String()),
			zap.Error(err))
		c.finish(id, nil, StreamFailed{ID: id, Kind: kind, Message: msg, StatusCode: status})

	case fullText == "":
		// Completion with nothing accumulated is a failure, not an
		// empty assistant turn.
		c.logger.Warn("stream completed empty", zap.String("stream_id", id.String()))
		c.finish(id, nil, StreamFailed{
			ID:      id,
			Kind:    FailEmptyResponse,
			Message: "model returned an empty response",
		})

	default:
		tokensPerSecond := 0.0
		if final.EvalDuration > 0 {
			tokensPerSecond = float64(final.CompletionTokens) / final.EvalDuration.Seconds()
		}
		c.logger.Debug("stream completed",
			zap.String("stream_id", id.String()),
			zap.Int("tokens", final.CompletionTokens),
			zap.Int("chars", len(fullText)))
		c.finish(id, &Turn{Role: RoleAssistant, Content: fullText}, StreamCompleted{
			ID:               id,
			FullText:         fullText,
			CompletionTokens: final.CompletionTokens,
			TokensPerSecond:  tokensPerSecond,
		})
	}
}

// finish commits the stream outcome: the assistant turn (success only)
// lands in history before the outcome event is posted, and the
// in-flight flag clears after it, so a consumer reading history on
// StreamCompleted always sees the new turn and events of consecutive
// streams never interleave.
func (c *Controller) finish(id uuid.UUID, turn *Turn, outcome Event) {
	c.mu.Lock()
	if turn != nil {
		c.history = append(c.history, *turn)
	}
	c.mu.Unlock()

	c.sink.Post(outcome)

	c.mu.Lock()
	if c.streamID == id {
		c.inFlight = false
		c.cancel = nil
	}
	c.mu.Unlock()
}

// =============================================================================
// HELPERS
// =============================================================================

// historyToMessages converts the session history to the wire shape.
// The full ordered sequence travels with every request; the server
// keeps no session state.
func historyToMessages(history []Turn) []ollama.Message {
	messages := make([]ollama.Message, len(history))
	for i, turn := range history {
		messages[i] = ollama.Message{Role: string(turn.Role), Content: turn.Content}
	}
	return messages
}

// classifyStreamError maps client errors onto failure kinds for the
// display consumer.
func classifyStreamError(err error) (FailKind, int, string) {
	switch {
	case ollama.IsTimeout(err):
		return FailTimeout, 0, "the model took too long to respond"
	case ollama.IsCanceled(err):
		return FailCanceled, 0, "response canceled"
	case ollama.IsNotRunning(err):
		return FailUnreachable, 0, "cannot reach Ollama - is it running?"
	default:
		if status, ok := ollama.ServerStatus(err); ok {
			return FailServerError, status, err.Error()
		}
		return FailUnknown, 0, err.Error()
	}
}
