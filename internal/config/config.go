// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for hidebar.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.hidebar/config.toml
//   - ~/.hidebar/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/hidebarapp/hidebar/internal/ollama"
	"github.com/hidebarapp/hidebar/internal/speech"
	"github.com/hidebarapp/hidebar/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete hidebar configuration.
type Config struct {
	// General settings
	Version string `toml:"version" json:"version"`

	// Ollama server configuration
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`

	// Voice capture configuration
	Voice VoiceConfig `toml:"voice" json:"voice"`

	// Speech recognition service configuration
	Speech SpeechConfig `toml:"speech" json:"speech"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// OllamaConfig contains local Ollama server configuration.
type OllamaConfig struct {
	// URL is the base URL of the Ollama server
	URL string `toml:"url" json:"url"`
	// Model is the default chat model
	Model string `toml:"model" json:"model"`
	// AutoStart attempts to launch "ollama serve" when the server is unreachable
	AutoStart bool `toml:"auto_start" json:"auto_start"`
}

// VoiceConfig contains voice capture configuration.
type VoiceConfig struct {
	// Enabled starts the voice capture loop when the app launches.
	// Voice can still be toggled at runtime regardless of this setting.
	Enabled bool `toml:"enabled" json:"enabled"`
	// Language is the BCP-47 recognition language tag (e.g. "en-US")
	Language string `toml:"language" json:"language"`
}

// SpeechConfig contains speech recognition service configuration.
type SpeechConfig struct {
	// URL is the recognition endpoint. Any Web Speech compatible
	// service works; the default is the public Google endpoint.
	URL string `toml:"url" json:"url"`
	// APIKey is sent with each recognition request. Empty omits the
	// key parameter; private deployments usually do not check one.
	APIKey string `toml:"api_key" json:"api_key"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the color theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// ShowStats displays token throughput after each completed response
	ShowStats bool `toml:"show_stats" json:"show_stats"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// File is the log file path (empty = ~/.hidebar/hidebar.log).
	// The TUI owns stdout and stderr, so logs always go to a file.
	File string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration. Endpoint and model defaults
// come from the client packages so there is a single source of truth.
func Default() *Config {
	oll := ollama.DefaultConfig()
	sp := speech.DefaultConfig()

	return &Config{
		Version: "1.0",
		Ollama: OllamaConfig{
			URL:       oll.BaseURL,
			Model:     oll.DefaultModel,
			AutoStart: true,
		},
		Voice: VoiceConfig{
			Enabled:  false,
			Language: sp.Language,
		},
		Speech: SpeechConfig{
			URL: sp.BaseURL,
		},
		UI: UIConfig{
			Theme:     "dark",
			ShowStats: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the hidebar configuration directory (~/.hidebar).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".hidebar"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LogPath returns the default log file path.
func LogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hidebar.log"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err // File doesn't exist or not accessible
	}

	mode := info.Mode().Perm()

	// If permissions are too permissive (anything other than 0600), fix them
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				cfg.ApplyEnvOverrides()
				cfg.SetDefaults()
				if err := cfg.Validate(); err != nil {
					return nil, fmt.Errorf("invalid config: %w", err)
				}
				return cfg, nil
			}
		}
	}

	// Try JSON as fallback
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				cfg.ApplyEnvOverrides()
				cfg.SetDefaults()
				if err := cfg.Validate(); err != nil {
					return nil, fmt.Errorf("invalid config: %w", err)
				}
				return cfg, nil
			}
		}
	}

	// Apply environment overrides to defaults
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	// SECURITY: Check and fix file permissions if needed
	if err := ensureSecurePermissions(path); err != nil {
		// Log warning but don't fail - permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	// SECURITY: Check and fix file permissions if needed
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SetDefaults fills in any missing or zero-value fields with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	// General
	if c.Version == "" {
		c.Version = defaults.Version
	}

	// Ollama
	if c.Ollama.URL == "" {
		c.Ollama.URL = defaults.Ollama.URL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = defaults.Ollama.Model
	}

	// Voice
	if c.Voice.Language == "" {
		c.Voice.Language = defaults.Voice.Language
	}

	// Speech
	if c.Speech.URL == "" {
		c.Speech.URL = defaults.Speech.URL
	}

	// UI
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}

	// Logging
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// SECURITY: Create file with restrictive permissions (0600 = owner read/write only)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	// Write header comment
	fmt.Fprintln(file, "# hidebar configuration file")
	fmt.Fprintln(file, "# Generated by hidebar - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Validate Ollama URL
	if c.Ollama.URL != "" {
		if u, err := url.Parse(c.Ollama.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "ollama.url",
				Message: fmt.Sprintf("invalid URL '%s', must include scheme and host", c.Ollama.URL),
			})
		}
	}

	// Validate speech endpoint URL
	if c.Speech.URL != "" {
		if u, err := url.Parse(c.Speech.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "speech.url",
				Message: fmt.Sprintf("invalid URL '%s', must include scheme and host", c.Speech.URL),
			})
		}
	}

	// Validate UI theme
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if c.UI.Theme != "" && !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - HIDEBAR_MODEL: overrides ollama.model
//   - HIDEBAR_OLLAMA_URL: overrides ollama.url
//   - OLLAMA_HOST: overrides ollama.url (standard Ollama variable; a bare
//     host:port gets an http:// scheme prepended)
//   - HIDEBAR_AUTOSTART: set to "1" or "true" to auto-start Ollama
//   - HIDEBAR_VOICE: set to "1" or "true" to enable voice capture at launch
//   - HIDEBAR_LANGUAGE: overrides voice.language
//   - HIDEBAR_SPEECH_URL: overrides speech.url
//   - HIDEBAR_SPEECH_KEY: overrides speech.api_key
//   - HIDEBAR_THEME: overrides ui.theme
//   - HIDEBAR_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	// HIDEBAR_MODEL
	if model := os.Getenv("HIDEBAR_MODEL"); model != "" {
		c.Ollama.Model = model
	}

	// OLLAMA_HOST is applied before HIDEBAR_OLLAMA_URL so the
	// hidebar-specific variable wins when both are set.
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.Ollama.URL = host
	}

	// HIDEBAR_OLLAMA_URL
	if u := os.Getenv("HIDEBAR_OLLAMA_URL"); u != "" {
		c.Ollama.URL = u
	}

	// HIDEBAR_AUTOSTART
	if auto := os.Getenv("HIDEBAR_AUTOSTART"); auto != "" {
		c.Ollama.AutoStart = auto == "1" || strings.ToLower(auto) == "true"
	}

	// HIDEBAR_VOICE
	if voice := os.Getenv("HIDEBAR_VOICE"); voice != "" {
		c.Voice.Enabled = voice == "1" || strings.ToLower(voice) == "true"
	}

	// HIDEBAR_LANGUAGE
	if lang := os.Getenv("HIDEBAR_LANGUAGE"); lang != "" {
		c.Voice.Language = lang
	}

	// HIDEBAR_SPEECH_URL
	if u := os.Getenv("HIDEBAR_SPEECH_URL"); u != "" {
		c.Speech.URL = u
	}

	// HIDEBAR_SPEECH_KEY
	if key := os.Getenv("HIDEBAR_SPEECH_KEY"); key != "" {
		c.Speech.APIKey = key
	}

	// HIDEBAR_THEME
	if theme := os.Getenv("HIDEBAR_THEME"); theme != "" {
		c.UI.Theme = theme
	}

	// HIDEBAR_LOG_LEVEL
	if level := os.Getenv("HIDEBAR_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates an independent copy of the configuration.
// All fields are value types, so a struct copy is a full copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
// SECURITY: Redacts the speech API key to prevent accidental exposure
// in logs, error messages, or debug output.
func (c *Config) String() string {
	safe := c.Clone()

	if safe.Speech.APIKey != "" {
		safe.Speech.APIKey = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
