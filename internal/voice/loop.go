// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice provides the hands-free capture and dispatch loop.
package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hidebarapp/hidebar/internal/audio"
	"github.com/hidebarapp/hidebar/internal/speech"
)

// =============================================================================
// STATES
// =============================================================================

// State is the loop's lifecycle phase.
type State int

const (
	// StateIdle: not listening; Start moves to StateListening.
	StateIdle State = iota

	// StateListening: waiting for or capturing an utterance.
	StateListening

	// StateRecognizing: an utterance is at the recognition service.
	StateRecognizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRecognizing:
		return "recognizing"
	default:
		return "unknown"
	}
}

// =============================================================================
// STATUS SURFACE
// =============================================================================

// StatusKind categorizes loop status updates for display.
type StatusKind int

const (
	StatusListening StatusKind = iota
	StatusHeard
	StatusRecognized
	StatusDiscarded
	StatusUnintelligible
	StatusServiceTrouble
	StatusRecalibrating
	StatusStopped
	StatusDeviceFailure
)

// Status is one transient line for the status surface. The loop never
// raises blocking errors at the user; everything arrives here.
type Status struct {
	Kind    StatusKind
	Message string
}

// StatusSink receives loop status updates. Must be safe for calls from
// the loop goroutine.
type StatusSink interface {
	Post(status Status)
}

// SinkFunc adapts a function to the StatusSink interface.
type SinkFunc func(status Status)

func (f SinkFunc) Post(status Status) { f(status) }

// =============================================================================
// COLLABORATORS
// =============================================================================

// Recognizer transcribes one utterance. *speech.Client satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, sample *audio.Sample) (string, error)
}

// Submitter accepts recognized text. *chat.Controller satisfies it; a
// rejection (busy, empty) is final, the loop never queues text.
type Submitter interface {
	SubmitUserText(text string) error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds tuning for the capture loop.
type Config struct {
	// SilenceTimeout bounds the wait for speech onset per attempt (default: 2s)
	SilenceTimeout time.Duration

	// MaxUtterance caps one utterance (default: 10s)
	MaxUtterance time.Duration

	// FailureCap is the consecutive-failure count that triggers the
	// unintelligible hint or a recalibration (default: 5)
	FailureCap int

	// ServiceBackoff after a recognition service failure (default: 1s)
	ServiceBackoff time.Duration

	// UnknownBackoff after an unclassified failure (default: 500ms)
	UnknownBackoff time.Duration

	// SuccessPause after dispatching recognized text (default: 300ms)
	SuccessPause time.Duration

	// MinTextRunes below which recognized text is discarded (default: 2)
	MinTextRunes int

	// AttemptInterval paces capture attempts; a fast-failing device
	// cannot spin the loop hotter than this (default: 300ms)
	AttemptInterval time.Duration

	// InitialCalibration window for the first start (default: 1.5s)
	InitialCalibration time.Duration

	// StartCalibration window for every later start (default: 800ms)
	StartCalibration time.Duration

	// RecalibrateWindow for the at-cap noise floor refresh (default: 500ms)
	RecalibrateWindow time.Duration

	// Logger for loop lifecycle logging. Nil means no logging.
	Logger *zap.Logger
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		SilenceTimeout:     2 * time.Second,
		MaxUtterance:       10 * time.Second,
		FailureCap:         5,
		ServiceBackoff:     time.Second,
		UnknownBackoff:     500 * time.Millisecond,
		SuccessPause:       300 * time.Millisecond,
		MinTextRunes:       2,
		AttemptInterval:    300 * time.Millisecond,
		InitialCalibration: 1500 * time.Millisecond,
		StartCalibration:   800 * time.Millisecond,
		RecalibrateWindow:  500 * time.Millisecond,
	}
}

func fillDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.SilenceTimeout == 0 {
		cfg.SilenceTimeout = def.SilenceTimeout
	}
	if cfg.MaxUtterance == 0 {
		cfg.MaxUtterance = def.MaxUtterance
	}
	if cfg.FailureCap == 0 {
		cfg.FailureCap = def.FailureCap
	}
	if cfg.ServiceBackoff == 0 {
		cfg.ServiceBackoff = def.ServiceBackoff
	}
	if cfg.UnknownBackoff == 0 {
		cfg.UnknownBackoff = def.UnknownBackoff
	}
	if cfg.SuccessPause == 0 {
		cfg.SuccessPause = def.SuccessPause
	}
	if cfg.MinTextRunes == 0 {
		cfg.MinTextRunes = def.MinTextRunes
	}
	if cfg.AttemptInterval == 0 {
		cfg.AttemptInterval = def.AttemptInterval
	}
	if cfg.InitialCalibration == 0 {
		cfg.InitialCalibration = def.InitialCalibration
	}
	if cfg.StartCalibration == 0 {
		cfg.StartCalibration = def.StartCalibration
	}
	if cfg.RecalibrateWindow == 0 {
		cfg.RecalibrateWindow = def.RecalibrateWindow
	}
	return cfg
}

// =============================================================================
// LOOP
// =============================================================================

// Loop is the voice capture state machine: Idle -> Listening ->
// {Recognizing -> Idle | Listening}. One goroutine per active session
// walks capture attempts; Stop is observed between attempts and cuts an
// in-progress attempt short through context cancellation.
//
// Failure handling is deliberately soft. Silence is routine, not an
// error. Unintelligible audio counts against a cap before the user
// hears about it once, then the count resets. Service failures back off
// and, at the cap, trigger a noise floor recalibration.
type Loop struct {
	device     audio.Device
	recognizer Recognizer
	submitter  Submitter
	sink       StatusSink
	config     Config
	logger     *zap.Logger
	limiter    *rate.Limiter

	mu         sync.Mutex
	state      State
	profile    audio.Profile
	calibrated bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewLoop wires a capture loop. The device stays owned by the caller;
// Close it after the loop is stopped for good.
func NewLoop(device audio.Device, recognizer Recognizer, submitter Submitter, sink StatusSink, cfg Config) *Loop {
	cfg = fillDefaults(cfg)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loop{
		device:     device,
		recognizer: recognizer,
		submitter:  submitter,
		sink:       sink,
		config:     cfg,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(cfg.AttemptInterval), 1),
	}
}

// State returns the loop's current phase.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Running reports whether a capture session is active.
func (l *Loop) Running() bool {
	return l.State() != StateIdle
}

// Start begins a capture session. No-op when already running.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.state = StateListening
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	l.logger.Info("voice capture started")
	go l.run(ctx, done)
}

// Stop ends the capture session. Observed before the next attempt; an
// in-progress attempt is cut short through its context. No-op when idle.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Toggle flips the session and reports whether it is now running.
func (l *Loop) Toggle() bool {
	if l.Running() {
		l.Stop()
		return false
	}
	l.Start()
	return true
}

// Wait blocks until the current session has fully wound down. Returns
// immediately when idle.
func (l *Loop) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	if done != nil {
		<-done
	}
}

// =============================================================================
// SESSION GOROUTINE
// =============================================================================

// run owns one capture session from calibration to wind-down. The
// failure counter lives here: it is per-session and resets on Start.
func (l *Loop) run(ctx context.Context, done chan struct{}) {
	// done stays set after close so late Wait callers return at once.
	defer func() {
		l.mu.Lock()
		l.state = StateIdle
		l.cancel = nil
		l.mu.Unlock()

		l.sink.Post(Status{Kind: StatusStopped, Message: "Voice input off"})
		l.logger.Info("voice capture stopped")
		close(done)
	}()

	l.calibrate(ctx)

	failures := 0
	for {
		if err := l.limiter.Wait(ctx); err != nil {
			return
		}

		l.setState(StateListening)
		l.sink.Post(Status{Kind: StatusListening, Message: "Listening..."})

		sample, err := l.device.Capture(ctx, l.currentProfile(), audio.CaptureConfig{
			SilenceTimeout: l.config.SilenceTimeout,
			MaxUtterance:   l.config.MaxUtterance,
		})

		switch {
		case ctx.Err() != nil:
			return

		case errors.Is(err, audio.ErrNoSpeech):
			// Routine silence. No counter, no status, next attempt.
			continue

		case errors.Is(err, audio.ErrUnsupported):
			l.sink.Post(Status{Kind: StatusDeviceFailure, Message: "Microphone unavailable; voice input off"})
			l.logger.Warn("capture device unavailable", zap.Error(err))
			return

		case err != nil:
			failures++
			l.logger.Warn("capture failed", zap.Error(err), zap.Int("failures", failures))
			l.sink.Post(Status{Kind: StatusDeviceFailure, Message: "Microphone trouble, retrying"})
			failures = l.settleFailures(ctx, failures)
			sleepCtx(ctx, l.config.UnknownBackoff)
			continue
		}

		l.setState(StateRecognizing)
		l.sink.Post(Status{Kind: StatusHeard, Message: "Recognizing..."})

		text, err := l.recognizer.Recognize(ctx, sample)
		if ctx.Err() != nil {
			return
		}

		switch {
		case speech.IsUnintelligible(err):
			failures++
			l.logger.Debug("utterance unintelligible", zap.Int("failures", failures))
			if failures >= l.config.FailureCap {
				l.sink.Post(Status{Kind: StatusUnintelligible, Message: "Having trouble hearing you; try speaking up"})
				failures = 0
			}

		case err != nil:
			failures++
			l.logger.Warn("recognition failed", zap.Error(err), zap.Int("failures", failures))
			l.sink.Post(Status{Kind: StatusServiceTrouble, Message: "Speech service trouble, retrying"})
			failures = l.settleFailures(ctx, failures)
			if speech.IsServiceError(err) {
				sleepCtx(ctx, l.config.ServiceBackoff)
			} else {
				sleepCtx(ctx, l.config.UnknownBackoff)
			}

		default:
			// Any successful recognition clears the failure run, even
			// when the text is too short to dispatch.
			failures = 0
			l.dispatch(ctx, text)
		}
	}
}

// dispatch forwards recognized text to the chat session, discarding
// fragments too short to mean anything.
func (l *Loop) dispatch(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < l.config.MinTextRunes {
		l.logger.Debug("recognized text discarded", zap.String("text", text))
		return
	}

	if err := l.submitter.SubmitUserText(text); err != nil {
		l.sink.Post(Status{Kind: StatusDiscarded, Message: "Heard you, but the assistant is busy"})
		l.logger.Debug("submission rejected", zap.Error(err), zap.String("text", text))
		return
	}

	l.sink.Post(Status{Kind: StatusRecognized, Message: "You said: " + text})
	sleepCtx(ctx, l.config.SuccessPause)
}

// settleFailures applies the at-cap policy: recalibrate the noise
// floor and reset the counter. Returns the counter to carry forward.
func (l *Loop) settleFailures(ctx context.Context, failures int) int {
	if failures < l.config.FailureCap {
		return failures
	}

	l.sink.Post(Status{Kind: StatusRecalibrating, Message: "Recalibrating microphone..."})
	if profile, err := l.device.Calibrate(ctx, l.config.RecalibrateWindow); err == nil {
		l.setProfile(profile)
		l.logger.Info("noise floor recalibrated", zap.Float64("rms", profile.NoiseFloor))
	} else if ctx.Err() == nil {
		l.logger.Warn("recalibration failed", zap.Error(err))
	}
	return 0
}

// calibrate measures the noise floor at session start: a long window
// the first time, a short refresh on every later start.
func (l *Loop) calibrate(ctx context.Context) {
	l.mu.Lock()
	window := l.config.StartCalibration
	if !l.calibrated {
		window = l.config.InitialCalibration
	}
	l.mu.Unlock()

	profile, err := l.device.Calibrate(ctx, window)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Warn("calibration failed, keeping previous noise floor", zap.Error(err))
		}
		return
	}

	l.mu.Lock()
	l.profile = profile
	l.calibrated = true
	l.mu.Unlock()

	l.logger.Debug("noise floor calibrated",
		zap.Float64("rms", profile.NoiseFloor),
		zap.Duration("window", window))
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Loop) currentProfile() audio.Profile {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.profile
}

func (l *Loop) setProfile(p audio.Profile) {
	l.mu.Lock()
	l.profile = p
	l.mu.Unlock()
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
