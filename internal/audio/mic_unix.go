// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows
// +build !windows

// Package audio provides microphone capture and utterance framing.
package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// RECORDER DISCOVERY
// =============================================================================

// recorderCommand is a resolved capture tool invocation producing raw
// S16_LE mono PCM on stdout until killed.
type recorderCommand struct {
	path string
	args []string
}

// findRecorder locates a PCM capture tool on PATH. ALSA's arecord is
// preferred; sox and its rec alias cover non-ALSA systems and macOS.
func findRecorder(rate int) (recorderCommand, error) {
	r := strconv.Itoa(rate)

	candidates := []recorderCommand{
		{"arecord", []string{"-q", "-f", "S16_LE", "-r", r, "-c", "1", "-t", "raw"}},
		{"sox", []string{"-q", "-d", "-t", "raw", "-r", r, "-c", "1", "-b", "16", "-e", "signed-integer", "-L", "-"}},
		{"rec", []string{"-q", "-t", "raw", "-r", r, "-c", "1", "-b", "16", "-e", "signed-integer", "-L", "-"}},
	}

	for _, c := range candidates {
		if path, err := exec.LookPath(c.path); err == nil {
			return recorderCommand{path: path, args: c.args}, nil
		}
	}

	return recorderCommand{}, fmt.Errorf("no capture tool (arecord, sox, rec) on PATH: %w", ErrUnsupported)
}

// =============================================================================
// MICROPHONE DEVICE
// =============================================================================

// micDevice captures from the system default microphone by spawning a
// capture tool per call. No handle is held between calls, so the
// microphone stays shareable between attempts.
type micDevice struct {
	rate     int
	recorder recorderCommand
	logger   *zap.Logger
}

// NewMicrophone resolves a capture tool and returns the default
// microphone device. Returns ErrUnsupported when no tool exists; that
// is permanent for the process lifetime.
func NewMicrophone(logger *zap.Logger) (Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	recorder, err := findRecorder(SampleRate)
	if err != nil {
		return nil, err
	}

	logger.Debug("capture tool selected", zap.String("path", recorder.path))
	return &micDevice{rate: SampleRate, recorder: recorder, logger: logger}, nil
}

// Calibrate measures the ambient noise floor over the given window.
func (d *micDevice) Calibrate(ctx context.Context, duration time.Duration) (Profile, error) {
	need := int(time.Duration(d.rate) * duration / time.Second)

	collected := make([]int16, 0, need)
	err := d.stream(ctx, func(frame []int16) bool {
		collected = append(collected, frame...)
		return len(collected) >= need
	})
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{NoiseFloor: rms(collected)}
	d.logger.Debug("noise floor calibrated",
		zap.Float64("rms", profile.NoiseFloor),
		zap.Duration("window", duration))
	return profile, nil
}

// Capture records one utterance framed by the profile's energy gate.
func (d *micDevice) Capture(ctx context.Context, profile Profile, cfg CaptureConfig) (*Sample, error) {
	e := newEndpointer(profile.Threshold(), cfg)

	if err := d.stream(ctx, e.push); err != nil {
		return nil, err
	}

	pcm, err := e.result()
	if err != nil {
		return nil, err
	}

	d.logger.Debug("utterance captured",
		zap.Int("samples", len(pcm)),
		zap.Duration("length", (&Sample{PCM: pcm, Rate: d.rate}).Duration()))
	return &Sample{PCM: pcm, Rate: d.rate}, nil
}

// Close is a no-op; the capture process lives only within a call.
func (d *micDevice) Close() error {
	return nil
}

// stream spawns the capture tool and feeds fixed-size frames to consume
// until it returns true. The process is killed and reaped before
// stream returns.
func (d *micDevice) stream(ctx context.Context, consume func([]int16) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.recorder.path, d.recorder.args...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", filepath.Base(d.recorder.path), err)
	}
	defer cmd.Wait()

	raw := make([]byte, frameSamples(d.rate)*2)
	reader := bufio.NewReaderSize(stdout, len(raw)*4)
	for {
		if _, err := io.ReadFull(reader, raw); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("capture stream ended early: %w", err)
		}
		if consume(decodePCM(raw)) {
			return nil
		}
	}
}
