// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for neochat.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides. File location: ~/.neochat/config.toml.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/neochat/neochat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete neochat configuration.
type Config struct {
	// Backend configuration
	Backend BackendConfig `toml:"backend"`

	// UI configuration
	UI UIConfig `toml:"ui"`

	// Camera configuration
	Camera CameraConfig `toml:"camera"`

	// Voice configuration
	Voice VoiceConfig `toml:"voice"`

	// HistoryPath is the conversation store file.
	// Empty = ~/.neochat/history.json.
	HistoryPath string `toml:"history_path"`

	// LogPath is the debug log file. Empty = ~/.neochat/neochat.log.
	LogPath string `toml:"log_path"`
}

// BackendConfig describes the HTTP backend serving intent
// classification, chat, RAG and vision endpoints.
type BackendConfig struct {
	// BaseURL is the backend base URL.
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the per-request timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// RequestsPerSec caps outgoing backend calls. Mostly relevant in
	// voice mode where a recognition loop can fire rapidly.
	RequestsPerSec float64 `toml:"requests_per_sec"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is "light", "dark" or "auto" (detect from terminal).
	Theme string `toml:"theme"`
	// TypingDelayMs is the inter-character delay of the typewriter
	// renderer, in milliseconds.
	TypingDelayMs int `toml:"typing_delay_ms"`
	// WebSearch is the startup state of the web-search toggle.
	WebSearch bool `toml:"web_search"`
}

// CameraConfig describes the optional local camera capability.
type CameraConfig struct {
	// CaptureCommand is an external command that writes one JPEG frame
	// to stdout (e.g. "fswebcam --save -"). Empty disables the camera.
	CaptureCommand string `toml:"capture_command"`
}

// VoiceConfig describes the optional speech capabilities. Both are
// external commands; empty disables the corresponding direction.
type VoiceConfig struct {
	// ListenCommand captures one utterance and prints the transcript
	// to stdout (e.g. a whisper wrapper script).
	ListenCommand string `toml:"listen_command"`
	// SpeakCommand reads its stdin aloud (e.g. "espeak", "say").
	SpeakCommand string `toml:"speak_command"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSecs:    60,
			RequestsPerSec: 4,
		},
		UI: UIConfig{
			Theme:         "auto",
			TypingDelayMs: 2,
			WebSearch:     false,
		},
	}
}

// Dir returns the neochat configuration directory (~/.neochat).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".neochat"), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the config file at path, applies environment overrides and
// validates the result. A missing file is not an error: defaults are
// returned so first run works without setup.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies NEOCHAT_* environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("NEOCHAT_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("NEOCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("NEOCHAT_TYPING_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.UI.TypingDelayMs = n
		}
	}
	if v := os.Getenv("NEOCHAT_WEB_SEARCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.UI.WebSearch = b
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validation errors.
var (
	ErrInvalidBackendURL = errors.New("backend base_url is not a valid URL")
	ErrInvalidTheme      = errors.New(`ui theme must be "light", "dark" or "auto"`)
)

// Validate checks configuration consistency and clamps out-of-range
// numeric values to usable defaults.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBackendURL, c.Backend.BaseURL)
	}

	switch strings.ToLower(c.UI.Theme) {
	case "light", "dark", "auto":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTheme, c.UI.Theme)
	}

	if c.Backend.TimeoutSecs <= 0 {
		c.Backend.TimeoutSecs = 60
	}
	if c.Backend.RequestsPerSec <= 0 {
		c.Backend.RequestsPerSec = 4
	}
	if c.UI.TypingDelayMs <= 0 {
		c.UI.TypingDelayMs = 2
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration atomically to path. Used to persist the
// theme and web-search toggles across sessions.
func (c *Config) Save(path string) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, []byte(sb.String()), 0644)
}
