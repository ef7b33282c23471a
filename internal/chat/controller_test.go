// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hidebarapp/hidebar/internal/ollama"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// stubStreamer is a scriptable Streamer that records every request.
type stubStreamer struct {
	mu           sync.Mutex
	calls        int
	lastModel    string
	lastMessages []ollama.Message
	fn           func(ctx context.Context, callback ollama.StreamCallback) error
}

func (s *stubStreamer) ChatStream(ctx context.Context, model string, messages []ollama.Message, callback ollama.StreamCallback) error {
	s.mu.Lock()
	s.calls++
	s.lastModel = model
	s.lastMessages = append([]ollama.Message(nil), messages...)
	fn := s.fn
	s.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, callback)
}

func (s *stubStreamer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubStreamer) requestedMessages() []ollama.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ollama.Message(nil), s.lastMessages...)
}

// recordingSink captures posted events and signals each terminal event.
type recordingSink struct {
	mu       sync.Mutex
	events   []Event
	outcomes chan Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{outcomes: make(chan Event, 8)}
}

func (s *recordingSink) Post(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()

	switch e.(type) {
	case StreamCompleted, StreamFailed:
		s.outcomes <- e
	}
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// waitOutcome blocks until the next terminal event or fails the test.
func waitOutcome(t *testing.T, sink *recordingSink) Event {
	t.Helper()
	select {
	case e := <-sink.outcomes:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream outcome")
		return nil
	}
}

// waitIdle blocks until the controller clears its in-flight flag. The
// flag clears shortly after the outcome event posts, so tests that
// submit again must wait for it.
func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !c.InFlight() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for controller to go idle")
}

// fragments scripts a stream that delivers each fragment then the
// final done chunk.
func fragments(parts ...string) func(ctx context.Context, callback ollama.StreamCallback) error {
	return func(ctx context.Context, callback ollama.StreamCallback) error {
		for _, p := range parts {
			callback(ollama.StreamChunk{Content: p})
		}
		callback(ollama.StreamChunk{Done: true, CompletionTokens: len(parts), EvalDuration: time.Second})
		return nil
	}
}

// =============================================================================
// SUBMISSION GATE TESTS
// =============================================================================

func TestSubmitUserText_EmptyRejected(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"spaces only", "   "},
		{"whitespace mix", " \t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			streamer := &stubStreamer{}
			ctrl := NewController(streamer, newRecordingSink(), Config{Model: "llama3.2:latest"})

			err := ctrl.SubmitUserText(tt.input)
			if !errors.Is(err, ErrEmptySubmission) {
				t.Errorf("SubmitUserText(%q) = %v, want ErrEmptySubmission", tt.input, err)
			}
			if got := len(ctrl.History()); got != 0 {
				t.Errorf("history length = %d, want 0", got)
			}
			if streamer.callCount() != 0 {
				t.Errorf("request count = %d, want 0", streamer.callCount())
			}
		})
	}
}

func TestSubmitUserText_TrimsBeforeAppending(t *testing.T) {
	streamer := &stubStreamer{fn: fragments("ok")}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("  hello  "); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}
	waitOutcome(t, sink)

	history := ctrl.History()
	if len(history) == 0 {
		t.Fatal("history is empty after accepted submission")
	}
	if history[0].Role != RoleUser || history[0].Content != "hello" {
		t.Errorf("first turn = %+v, want user %q", history[0], "hello")
	}
}

func TestSubmitUserText_BusyRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	streamer := &stubStreamer{fn: func(ctx context.Context, callback ollama.StreamCallback) error {
		close(started)
		<-release
		callback(ollama.StreamChunk{Content: "done"})
		callback(ollama.StreamChunk{Done: true})
		return nil
	}}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("first"); err != nil {
		t.Fatalf("first SubmitUserText() error = %v", err)
	}
	<-started

	err := ctrl.SubmitUserText("second")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("second SubmitUserText() = %v, want ErrBusy", err)
	}

	// The rejected submission must not touch history or the wire.
	if got := len(ctrl.History()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
	if streamer.callCount() != 1 {
		t.Errorf("request count = %d, want 1", streamer.callCount())
	}

	close(release)
	waitOutcome(t, sink)
}

// =============================================================================
// STREAM LIFECYCLE TESTS
// =============================================================================

func TestStream_EventOrderAndFullText(t *testing.T) {
	streamer := &stubStreamer{fn: fragments("Hi", " there")}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("hello"); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}
	waitOutcome(t, sink)

	events := sink.all()
	if len(events) != 4 {
		t.Fatalf("event count = %d, want 4: %#v", len(events), events)
	}

	started, ok := events[0].(StreamStarted)
	if !ok {
		t.Fatalf("events[0] = %T, want StreamStarted", events[0])
	}
	if started.Model != "llama3.2:latest" {
		t.Errorf("StreamStarted.Model = %q, want %q", started.Model, "llama3.2:latest")
	}

	var concat strings.Builder
	for i, want := range []string{"Hi", " there"} {
		tok, ok := events[1+i].(TokenAppended)
		if !ok {
			t.Fatalf("events[%d] = %T, want TokenAppended", 1+i, events[1+i])
		}
		if tok.Text != want {
			t.Errorf("fragment %d = %q, want %q", i, tok.Text, want)
		}
		if tok.StreamID() != started.StreamID() {
			t.Errorf("fragment %d stream ID = %v, want %v", i, tok.StreamID(), started.StreamID())
		}
		concat.WriteString(tok.Text)
	}

	completed, ok := events[3].(StreamCompleted)
	if !ok {
		t.Fatalf("events[3] = %T, want StreamCompleted", events[3])
	}
	if completed.FullText != concat.String() {
		t.Errorf("FullText = %q, want concatenation %q", completed.FullText, concat.String())
	}
	if completed.CompletionTokens != 2 {
		t.Errorf("CompletionTokens = %d, want 2", completed.CompletionTokens)
	}

	// The assistant turn is visible by the time the outcome posts.
	history := ctrl.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[1].Role != RoleAssistant || history[1].Content != "Hi there" {
		t.Errorf("assistant turn = %+v, want %q", history[1], "Hi there")
	}
}

func TestStream_HistoryTravelsWithEveryRequest(t *testing.T) {
	streamer := &stubStreamer{fn: fragments("answer one")}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("question one"); err != nil {
		t.Fatalf("first SubmitUserText() error = %v", err)
	}
	waitOutcome(t, sink)
	waitIdle(t, ctrl)

	streamer.fn = fragments("answer two")
	if err := ctrl.SubmitUserText("question two"); err != nil {
		t.Fatalf("second SubmitUserText() error = %v", err)
	}
	waitOutcome(t, sink)

	got := streamer.requestedMessages()
	want := []ollama.Message{
		{Role: "user", Content: "question one"},
		{Role: "assistant", Content: "answer one"},
		{Role: "user", Content: "question two"},
	}
	if len(got) != len(want) {
		t.Fatalf("second request carried %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStream_EmptyResponseFails(t *testing.T) {
	// Completes normally but never delivers content.
	streamer := &stubStreamer{fn: func(ctx context.Context, callback ollama.StreamCallback) error {
		callback(ollama.StreamChunk{Done: true})
		return nil
	}}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("hello"); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}

	outcome := waitOutcome(t, sink)
	failed, ok := outcome.(StreamFailed)
	if !ok {
		t.Fatalf("outcome = %T, want StreamFailed", outcome)
	}
	if failed.Kind != FailEmptyResponse {
		t.Errorf("Kind = %v, want FailEmptyResponse", failed.Kind)
	}

	// No assistant turn is appended for an empty response.
	history := ctrl.History()
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].Role != RoleUser {
		t.Errorf("remaining turn role = %q, want user", history[0].Role)
	}

	// The session recovers: the next submission is accepted.
	waitIdle(t, ctrl)
	streamer.fn = fragments("Hi")
	if err := ctrl.SubmitUserText("again"); err != nil {
		t.Errorf("SubmitUserText() after failure = %v, want nil", err)
	}
	waitOutcome(t, sink)
}

func TestStream_FailureKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   FailKind
		wantStatus int
	}{
		{"timeout", ollama.ErrTimeout, FailTimeout, 0},
		{"canceled", ollama.ErrCanceled, FailCanceled, 0},
		{"unreachable", ollama.ErrNotRunning, FailUnreachable, 0},
		{
			"server error keeps status",
			&ollama.ClientError{Type: ollama.ErrTypeServer, Message: "model requires more system memory", StatusCode: 500},
			FailServerError,
			500,
		},
		{"unknown", errors.New("wire torn"), FailUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			streamer := &stubStreamer{fn: func(ctx context.Context, callback ollama.StreamCallback) error {
				callback(ollama.StreamChunk{Content: "partial"})
				return tt.err
			}}
			sink := newRecordingSink()
			ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

			if err := ctrl.SubmitUserText("hello"); err != nil {
				t.Fatalf("SubmitUserText() error = %v", err)
			}

			outcome := waitOutcome(t, sink)
			failed, ok := outcome.(StreamFailed)
			if !ok {
				t.Fatalf("outcome = %T, want StreamFailed", outcome)
			}
			if failed.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", failed.Kind, tt.wantKind)
			}
			if failed.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", failed.StatusCode, tt.wantStatus)
			}

			// Partial text is dropped on failure.
			if got := len(ctrl.History()); got != 1 {
				t.Errorf("history length = %d, want 1 (user turn only)", got)
			}
		})
	}
}

func TestCancel_AbortsInFlightStream(t *testing.T) {
	started := make(chan struct{})
	streamer := &stubStreamer{fn: func(ctx context.Context, callback ollama.StreamCallback) error {
		callback(ollama.StreamChunk{Content: "partial"})
		close(started)
		<-ctx.Done()
		return ollama.ErrCanceled
	}}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("hello"); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}
	<-started
	ctrl.Cancel()

	outcome := waitOutcome(t, sink)
	failed, ok := outcome.(StreamFailed)
	if !ok {
		t.Fatalf("outcome = %T, want StreamFailed", outcome)
	}
	if failed.Kind != FailCanceled {
		t.Errorf("Kind = %v, want FailCanceled", failed.Kind)
	}

	if got := len(ctrl.History()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}

	waitIdle(t, ctrl)
	if ctrl.InFlight() {
		t.Error("InFlight() = true after canceled stream settled")
	}
}

func TestCancel_NoOpWhenIdle(t *testing.T) {
	ctrl := NewController(&stubStreamer{}, newRecordingSink(), Config{})
	ctrl.Cancel() // must not panic
}

// =============================================================================
// SESSION STATE TESTS
// =============================================================================

func TestSelectModel(t *testing.T) {
	streamer := &stubStreamer{fn: fragments("ok")}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	ctrl.SelectModel("qwen2.5:3b")
	if got := ctrl.ActiveModel(); got != "qwen2.5:3b" {
		t.Errorf("ActiveModel() = %q, want %q", got, "qwen2.5:3b")
	}

	ctrl.SelectModel("")
	if got := ctrl.ActiveModel(); got != "qwen2.5:3b" {
		t.Errorf("ActiveModel() after empty select = %q, want %q", got, "qwen2.5:3b")
	}

	if err := ctrl.SubmitUserText("hello"); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}
	waitOutcome(t, sink)

	streamer.mu.Lock()
	model := streamer.lastModel
	streamer.mu.Unlock()
	if model != "qwen2.5:3b" {
		t.Errorf("request model = %q, want %q", model, "qwen2.5:3b")
	}
}

func TestReset(t *testing.T) {
	streamer := &stubStreamer{fn: fragments("Hi")}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("hello"); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}
	waitOutcome(t, sink)
	waitIdle(t, ctrl)

	if err := ctrl.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if got := len(ctrl.History()); got != 0 {
		t.Errorf("history length after reset = %d, want 0", got)
	}
}

func TestReset_RejectedWhileStreaming(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	streamer := &stubStreamer{fn: func(ctx context.Context, callback ollama.StreamCallback) error {
		close(started)
		<-release
		callback(ollama.StreamChunk{Content: "x"})
		callback(ollama.StreamChunk{Done: true})
		return nil
	}}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("hello"); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}
	<-started

	if err := ctrl.Reset(); !errors.Is(err, ErrBusy) {
		t.Errorf("Reset() while streaming = %v, want ErrBusy", err)
	}

	close(release)
	waitOutcome(t, sink)
}

func TestHistory_ReturnsCopy(t *testing.T) {
	streamer := &stubStreamer{fn: fragments("Hi")}
	sink := newRecordingSink()
	ctrl := NewController(streamer, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("hello"); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}
	waitOutcome(t, sink)

	history := ctrl.History()
	history[0].Content = "tampered"

	if got := ctrl.History()[0].Content; got != "hello" {
		t.Errorf("history mutated through returned slice: %q", got)
	}
}

// =============================================================================
// END-TO-END WITH REAL CLIENT
// =============================================================================

// ndjsonServer streams the given lines for any chat request.
func ndjsonServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer does not support flushing")
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
}

func TestController_EndToEndWithOllamaClient(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"model":"llama3.2:latest","message":{"role":"assistant","content":"Hi"},"done":false}`,
		`{"model":"llama3.2:latest","message":{"role":"assistant","content":" there"},"done":false}`,
		`{"model":"llama3.2:latest","message":{"role":"assistant","content":""},"done":true,"eval_count":2,"eval_duration":1000000000}`,
	})
	defer srv.Close()

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:       srv.URL,
		Timeout:       2 * time.Second,
		StreamTimeout: 2 * time.Second,
	})
	sink := newRecordingSink()
	ctrl := NewController(client, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("hello"); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}

	outcome := waitOutcome(t, sink)
	completed, ok := outcome.(StreamCompleted)
	if !ok {
		t.Fatalf("outcome = %T, want StreamCompleted", outcome)
	}
	if completed.FullText != "Hi there" {
		t.Errorf("FullText = %q, want %q", completed.FullText, "Hi there")
	}
	if completed.CompletionTokens != 2 {
		t.Errorf("CompletionTokens = %d, want 2", completed.CompletionTokens)
	}
	if completed.TokensPerSecond != 2.0 {
		t.Errorf("TokensPerSecond = %v, want 2.0", completed.TokensPerSecond)
	}

	history := ctrl.History()
	if len(history) != 2 || history[1].Content != "Hi there" {
		t.Errorf("history = %+v, want user hello + assistant %q", history, "Hi there")
	}
}

func TestController_EndToEndUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close() // nothing listening anymore

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:       baseURL,
		Timeout:       time.Second,
		StreamTimeout: time.Second,
	})
	sink := newRecordingSink()
	ctrl := NewController(client, sink, Config{Model: "llama3.2:latest"})

	if err := ctrl.SubmitUserText("hello"); err != nil {
		t.Fatalf("SubmitUserText() error = %v", err)
	}

	outcome := waitOutcome(t, sink)
	failed, ok := outcome.(StreamFailed)
	if !ok {
		t.Fatalf("outcome = %T, want StreamFailed", outcome)
	}
	if failed.Kind != FailUnreachable {
		t.Errorf("Kind = %v, want FailUnreachable", failed.Kind)
	}
}
