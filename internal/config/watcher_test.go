// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigFile writes a minimal valid config naming the given model.
func writeConfigFile(t *testing.T, path, model string) {
	t.Helper()
	content := "[ollama]\nmodel = \"" + model + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// startWatcher starts a watcher delivering reloads on a channel and
// registers cleanup.
func startWatcher(t *testing.T, path string) <-chan *Config {
	t.Helper()

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) {
		reloads <- cfg
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })

	return reloads
}

// waitReload waits for a reload or fails the test.
func waitReload(t *testing.T, reloads <-chan *Config) *Config {
	t.Helper()
	select {
	case cfg := <-reloads:
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
		return nil
	}
}

// TestWatcher_ReloadsOnChange tests that editing the config file delivers
// a fresh snapshot.
func TestWatcher_ReloadsOnChange(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfigFile(t, path, "llama3.2:latest")

	reloads := startWatcher(t, path)

	writeConfigFile(t, path, "mistral:7b")

	cfg := waitReload(t, reloads)
	if cfg.Ollama.Model != "mistral:7b" {
		t.Errorf("reloaded model = %q, want %q", cfg.Ollama.Model, "mistral:7b")
	}
	// Defaults were applied to the unspecified sections
	if cfg.Ollama.URL == "" {
		t.Error("reloaded config should have a default Ollama URL")
	}
}

// TestWatcher_SurvivesRenameStyleSave tests reload after an editor-style
// save that replaces the file through a rename.
func TestWatcher_SurvivesRenameStyleSave(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfigFile(t, path, "llama3.2:latest")

	reloads := startWatcher(t, path)

	tmp := filepath.Join(dir, ".config.toml.swp")
	writeConfigFile(t, tmp, "qwen2.5:3b")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	cfg := waitReload(t, reloads)
	if cfg.Ollama.Model != "qwen2.5:3b" {
		t.Errorf("reloaded model = %q, want %q", cfg.Ollama.Model, "qwen2.5:3b")
	}
}

// TestWatcher_IgnoresSiblingFiles tests that unrelated files in the config
// directory do not trigger reloads.
func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfigFile(t, path, "llama3.2:latest")

	reloads := startWatcher(t, path)

	other := filepath.Join(dir, "hidebar.log")
	if err := os.WriteFile(other, []byte("log line\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case <-reloads:
		t.Error("sibling file change should not trigger a reload")
	case <-time.After(700 * time.Millisecond):
		// No reload, as expected
	}
}

// TestWatcher_KeepsRunningAfterBadConfig tests that a broken edit is
// skipped and a later fix still reloads.
func TestWatcher_KeepsRunningAfterBadConfig(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfigFile(t, path, "llama3.2:latest")

	reloads := startWatcher(t, path)

	// Broken TOML is logged and skipped
	if err := os.WriteFile(path, []byte("[ollama\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case <-reloads:
		t.Fatal("broken config should not be delivered")
	case <-time.After(700 * time.Millisecond):
	}

	// Fixing the file resumes delivery
	writeConfigFile(t, path, "phi4:latest")

	cfg := waitReload(t, reloads)
	if cfg.Ollama.Model != "phi4:latest" {
		t.Errorf("reloaded model = %q, want %q", cfg.Ollama.Model, "phi4:latest")
	}
}
