// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hidebarapp/hidebar/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hidebar.log")

	logger, err := New(config.LoggingConfig{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("startup complete", zap.String("model", "llama3.2:latest"))
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	line := string(data)
	if !strings.Contains(line, "\"msg\":\"startup complete\"") {
		t.Errorf("log line missing message: %s", line)
	}
	if !strings.Contains(line, "\"model\":\"llama3.2:latest\"") {
		t.Errorf("log line missing field: %s", line)
	}
	if !strings.Contains(line, "\"timestamp\"") {
		t.Errorf("log line missing timestamp key: %s", line)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hidebar.log")

	logger, err := New(config.LoggingConfig{Level: "warn", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level entries were written: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn entry missing: %s", out)
	}
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "logs", "hidebar.log")

	logger, err := New(config.LoggingConfig{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("first line")
	logger.Sync()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}
