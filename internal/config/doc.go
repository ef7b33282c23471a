// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for hidebar.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - OllamaConfig: Ollama server endpoint and default model
//   - VoiceConfig: Voice capture settings
//   - SpeechConfig: Speech recognition service settings
//   - Watcher: fsnotify-based hot reload of the config file
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (HIDEBAR_*, OLLAMA_HOST)
//   - ~/.hidebar/config.toml
//   - ~/.hidebar/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	model := cfg.Ollama.Model
//	lang := cfg.Voice.Language
//
// # Hot Reload
//
// Watch the config file and apply changes to the running app:
//
//	w, err := config.NewWatcher(path, func(cfg *config.Config) {
//	    client.SetBaseURL(cfg.Ollama.URL)
//	    controller.SelectModel(cfg.Ollama.Model)
//	}, logger)
//	if err == nil {
//	    w.Watch()
//	    defer w.Close()
//	}
package config
