// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audio provides microphone capture and utterance framing.
package audio

import (
	"context"
	"errors"
	"math"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// SampleRate is the capture rate in Hz. Speech recognizers expect
	// 16 kHz mono; capturing higher only wastes upload bytes.
	SampleRate = 16000

	// onsetFactor scales the calibrated noise floor into the speech
	// onset gate.
	onsetFactor = 1.75

	// minEnergyThreshold is the floor for the onset gate. A dead-quiet
	// room would otherwise gate on breathing.
	minEnergyThreshold = 300.0
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoSpeech means the silence timeout elapsed before speech
	// onset. Transient; the caller just listens again.
	ErrNoSpeech = errors.New("no speech detected before timeout")

	// ErrUnsupported means no capture path exists here, either the
	// platform or a missing recording tool. Permanent for the process
	// lifetime.
	ErrUnsupported = errors.New("audio capture is not available on this system")
)

// =============================================================================
// TYPES
// =============================================================================

// Profile is the calibrated ambient noise floor of the capture
// environment. Opaque to callers; the voice loop owns one and passes it
// to every capture.
type Profile struct {
	// NoiseFloor is the RMS energy of ambient noise.
	NoiseFloor float64
}

// Threshold returns the speech onset gate derived from the noise floor.
func (p Profile) Threshold() float64 {
	t := p.NoiseFloor * onsetFactor
	if t < minEnergyThreshold {
		t = minEnergyThreshold
	}
	return t
}

// CaptureConfig bounds one capture attempt.
type CaptureConfig struct {
	// SilenceTimeout is how long to wait for speech onset before
	// giving up with ErrNoSpeech.
	SilenceTimeout time.Duration

	// MaxUtterance caps the utterance length once speech has started.
	MaxUtterance time.Duration
}

// Sample is one captured utterance: 16-bit signed mono PCM.
type Sample struct {
	PCM  []int16
	Rate int
}

// Duration returns the sample's play time.
func (s *Sample) Duration() time.Duration {
	if s.Rate == 0 {
		return 0
	}
	return time.Duration(len(s.PCM)) * time.Second / time.Duration(s.Rate)
}

// Device captures audio. Implementations hold the underlying hardware
// only for the duration of a single call, never across calls, so other
// applications can share the microphone between attempts.
type Device interface {
	// Calibrate samples ambient noise for the given duration and
	// returns the measured profile.
	Calibrate(ctx context.Context, duration time.Duration) (Profile, error)

	// Capture records one utterance framed by the profile's energy
	// gate. Returns ErrNoSpeech when the silence timeout passes
	// without speech onset.
	Capture(ctx context.Context, profile Profile, cfg CaptureConfig) (*Sample, error)

	// Close releases the device.
	Close() error
}

// =============================================================================
// ENERGY
// =============================================================================

// rms computes the root-mean-square energy of a PCM frame.
func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
