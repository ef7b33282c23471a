// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audio provides microphone capture and utterance framing.
package audio

import "time"

// =============================================================================
// FRAMING CONSTANTS
// =============================================================================

const (
	// frameDuration is the analysis window. 30 ms at 16 kHz is 480
	// samples, fine enough to catch onsets without jitter on the gate.
	frameDuration = 30 * time.Millisecond

	// trailingSilence closes the utterance once this much continuous
	// sub-threshold audio follows speech.
	trailingSilence = 800 * time.Millisecond

	// preRollFrames of audio before onset are kept so the first
	// syllable is not clipped by the gate.
	preRollFrames = 8
)

// frameSamples returns the samples per analysis frame at the given rate.
func frameSamples(rate int) int {
	return int(time.Duration(rate) * frameDuration / time.Second)
}

// =============================================================================
// ENDPOINTER
// =============================================================================

// endpointer is the energy-gated utterance framing state machine. It is
// pure: callers push fixed-size PCM frames and it decides, frame by
// frame, when the utterance is complete. Two phases:
//
//	waiting: keep a pre-roll ring; speech onset (frame energy above the
//	         gate) moves to voiced; the onset deadline expiring ends the
//	         attempt with no speech.
//	voiced:  accumulate frames; a trailing-silence run or the utterance
//	         cap ends the attempt.
type endpointer struct {
	threshold float64

	onsetDeadline int // frames to wait for speech onset
	hangover      int // sub-threshold frames that close the utterance
	maxFrames     int // utterance cap, counted from onset

	preRoll [][]int16
	frames  [][]int16

	voiced    bool
	waited    int
	silentRun int
}

// newEndpointer builds the framing machine for one capture attempt.
func newEndpointer(threshold float64, cfg CaptureConfig) *endpointer {
	return &endpointer{
		threshold:     threshold,
		onsetDeadline: int(cfg.SilenceTimeout / frameDuration),
		hangover:      int(trailingSilence / frameDuration),
		maxFrames:     int(cfg.MaxUtterance / frameDuration),
	}
}

// push feeds one frame and reports whether the attempt is finished.
// The frame is retained; callers must hand over a fresh slice each call.
func (e *endpointer) push(frame []int16) bool {
	energy := rms(frame)

	if !e.voiced {
		if energy >= e.threshold {
			// Onset: the pre-roll becomes the head of the utterance.
			e.voiced = true
			e.frames = append(e.frames, e.preRoll...)
			e.preRoll = nil
			e.frames = append(e.frames, frame)
			return false
		}

		e.preRoll = append(e.preRoll, frame)
		if len(e.preRoll) > preRollFrames {
			e.preRoll = e.preRoll[1:]
		}
		e.waited++
		return e.waited >= e.onsetDeadline
	}

	e.frames = append(e.frames, frame)
	if energy < e.threshold {
		e.silentRun++
		if e.silentRun >= e.hangover {
			return true
		}
	} else {
		e.silentRun = 0
	}

	return len(e.frames) >= e.maxFrames
}

// result returns the framed utterance, or ErrNoSpeech when the onset
// deadline passed without speech.
func (e *endpointer) result() ([]int16, error) {
	if !e.voiced {
		return nil, ErrNoSpeech
	}

	total := 0
	for _, f := range e.frames {
		total += len(f)
	}
	pcm := make([]int16, 0, total)
	for _, f := range e.frames {
		pcm = append(pcm, f...)
	}
	return pcm, nil
}
