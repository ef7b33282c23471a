// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows
// +build windows

// Package audio provides microphone capture and utterance framing.
package audio

import "go.uber.org/zap"

// NewMicrophone reports capture as unavailable on Windows; there is no
// command-line PCM recorder to spawn. Voice input stays disabled and
// typed chat is unaffected.
func NewMicrophone(logger *zap.Logger) (Device, error) {
	return nil, ErrUnsupported
}
