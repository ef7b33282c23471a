// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audio provides microphone capture and utterance framing.
//
// Capture runs through an external PCM recorder (arecord, sox, or rec)
// spawned per attempt, so the microphone is never held between
// attempts. Utterances are framed by a pure energy-gate state machine
// calibrated against the ambient noise floor.
//
// # Key Types
//
//   - Device: Capture interface implemented by the platform microphone
//   - Profile: Calibrated ambient noise floor (RMS energy)
//   - CaptureConfig: Silence timeout and utterance cap for one attempt
//   - Sample: One utterance of 16-bit mono PCM
//
// # Usage
//
// Open the default microphone and calibrate:
//
//	mic, err := audio.NewMicrophone(logger)
//	if err != nil {
//	    // audio.ErrUnsupported: no capture path on this system
//	}
//	profile, err := mic.Calibrate(ctx, 1500*time.Millisecond)
//
// Capture one utterance and encode it for recognition:
//
//	sample, err := mic.Capture(ctx, profile, audio.CaptureConfig{
//	    SilenceTimeout: 2 * time.Second,
//	    MaxUtterance:   10 * time.Second,
//	})
//	if errors.Is(err, audio.ErrNoSpeech) {
//	    // nobody spoke; listen again
//	}
//	wav := audio.EncodeWAV(sample)
//
// # Framing
//
// A capture waits for frame energy to cross the profile's onset gate,
// keeps a short pre-roll so the first syllable survives, then
// accumulates until 800 ms of trailing silence or the utterance cap.
// The silence timeout bounds the wait for onset; expiry is ErrNoSpeech,
// not a failure.
package audio
