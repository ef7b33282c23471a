// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech provides the HTTP client for the speech recognition service.
//
// The client targets any Web Speech compatible endpoint: WAV audio goes
// up with a language hint and optional API key, line-delimited JSON
// comes back, and the first line carrying a transcript wins. Lines that
// fail to decode are skipped, the same fold the chat stream uses.
//
// # Key Types
//
//   - Client: Recognition client with runtime-mutable language hint
//   - ServiceError: Failure taxonomy (unreachable, timeout, server, canceled)
//   - ErrUnintelligible: The no-words outcome, distinct from service failure
//
// # Usage
//
//	client := speech.NewClient()
//	text, err := client.Recognize(ctx, sample)
//	switch {
//	case err == nil:
//	    // text holds the transcript
//	case speech.IsUnintelligible(err):
//	    // nothing recognizable was said; not a failure
//	case speech.IsServiceError(err):
//	    // the service itself failed; worth backing off
//	}
package speech
