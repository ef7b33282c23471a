// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice provides the hands-free capture and dispatch loop.
//
// The loop listens on the microphone, frames one utterance at a time,
// sends it to the recognition service, and forwards usable transcripts
// to the chat session. It runs as one goroutine per active session and
// reports everything through a status sink; nothing in here ever
// raises a modal error at the user.
//
// # Key Types
//
//   - Loop: The Idle -> Listening -> Recognizing state machine
//   - Config: Timeouts, failure cap, backoffs, calibration windows
//   - Status: One transient status line for the display surface
//
// # Usage
//
//	loop := voice.NewLoop(mic, recognizer, controller, sink, voice.Config{})
//	loop.Start()
//	...
//	loop.Stop()
//	loop.Wait()
//
// # Failure Policy
//
// Silence is routine: a capture that times out waiting for speech just
// listens again. Unintelligible audio counts against a cap (default 5)
// before one soft hint is shown and the count resets. Recognition
// service failures surface a transient status and back off (1s, or
// 500ms for unclassified failures); at the cap the loop recalibrates
// the noise floor instead of hinting. Any successful recognition
// resets the count, including transcripts too short to dispatch.
package voice
