// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for privgpt.
//
// Configuration lives in ~/.privgpt/config.toml, with built-in defaults
// and PRIVGPT_* environment variable overrides applied on top.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/privgpt-studio/privgpt-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete privgpt configuration.
type Config struct {
	Version string `toml:"version"`

	Server  ServerConfig  `toml:"server"`
	Model   ModelConfig   `toml:"model"`
	UI      UIConfig      `toml:"ui"`
	Network NetworkConfig `toml:"network"`
	Storage StorageConfig `toml:"storage"`
	Export  ExportConfig  `toml:"export"`
}

// ServerConfig points at the chat backend.
type ServerConfig struct {
	// BaseURL is the backend root, scheme included.
	BaseURL string `toml:"base_url"`
	// RequestTimeoutSecs bounds buffered (non-streaming) requests.
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
}

// ModelConfig selects the model used for new exchanges.
type ModelConfig struct {
	// DefaultType is "local" or "cloud".
	DefaultType string `toml:"default_type"`
	// DefaultName is matched against the catalog; empty means first local.
	DefaultName string `toml:"default_name"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "dark", "light", or "auto".
	Theme string `toml:"theme"`
	// RenderMarkdown renders assistant replies through glamour.
	RenderMarkdown bool `toml:"render_markdown"`
	// CompactMode hides the sidebar by default.
	CompactMode bool `toml:"compact_mode"`
}

// NetworkConfig tunes reachability monitoring.
type NetworkConfig struct {
	// CheckIntervalSecs is how often the backend is probed.
	CheckIntervalSecs int `toml:"check_interval_secs"`
}

// StorageConfig locates local persistence.
type StorageConfig struct {
	// DBPath is the sqlite file holding known session IDs.
	// Empty means ~/.privgpt/sessions.db.
	DBPath string `toml:"db_path"`
}

// ExportConfig controls transcript export.
type ExportConfig struct {
	// Dir is where exported transcripts land. Empty means the working
	// directory.
	Dir string `toml:"dir"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			BaseURL:            "http://localhost:5000",
			RequestTimeoutSecs: 60,
		},

		Model: ModelConfig{
			DefaultType: "local",
			DefaultName: "",
		},

		UI: UIConfig{
			Theme:          "dark",
			RenderMarkdown: true,
			CompactMode:    false,
		},

		Network: NetworkConfig{
			CheckIntervalSecs: 5,
		},

		Storage: StorageConfig{},
		Export:  ExportConfig{},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// Dir returns the privgpt configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".privgpt"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// DBPath resolves the session store location, falling back to the
// default under the config directory.
func (c *Config) DBPath() (string, error) {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the default path, falling back to
// defaults when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file. A missing file
// is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the default path.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration to a TOML file. The write is
// atomic and the file is created 0600.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# privgpt configuration file")
	fmt.Fprintln(&buf, "# Generated by privgpt - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a single invalid configuration field.
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

	if c.Server.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: "must not be empty",
		})
	} else if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.Server.BaseURL),
		})
	}

	if c.Server.RequestTimeoutSecs < 1 || c.Server.RequestTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "server.request_timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.Server.RequestTimeoutSecs),
		})
	}

	validTypes := map[string]bool{"local": true, "cloud": true}
	if !validTypes[strings.ToLower(c.Model.DefaultType)] {
		errs = append(errs, ValidationError{
			Field:   "model.default_type",
			Message: fmt.Sprintf("invalid type '%s', must be local or cloud", c.Model.DefaultType),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if c.Network.CheckIntervalSecs < 1 || c.Network.CheckIntervalSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "network.check_interval_secs",
			Message: fmt.Sprintf("must be 1-300, got %d", c.Network.CheckIntervalSecs),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills in any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = defaults.Server.RequestTimeoutSecs
	}
	if c.Model.DefaultType == "" {
		c.Model.DefaultType = defaults.Model.DefaultType
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Network.CheckIntervalSecs == 0 {
		c.Network.CheckIntervalSecs = defaults.Network.CheckIntervalSecs
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - PRIVGPT_SERVER_URL: overrides server.base_url
//   - PRIVGPT_MODEL: overrides model.default_name
//   - PRIVGPT_MODEL_TYPE: overrides model.default_type
//   - PRIVGPT_THEME: overrides ui.theme
//   - PRIVGPT_DB_PATH: overrides storage.db_path
//   - PRIVGPT_EXPORT_DIR: overrides export.dir
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("PRIVGPT_SERVER_URL"); u != "" {
		c.Server.BaseURL = u
	}
	if name := os.Getenv("PRIVGPT_MODEL"); name != "" {
		c.Model.DefaultName = name
	}
	if typ := os.Getenv("PRIVGPT_MODEL_TYPE"); typ != "" {
		c.Model.DefaultType = typ
	}
	if theme := os.Getenv("PRIVGPT_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if db := os.Getenv("PRIVGPT_DB_PATH"); db != "" {
		c.Storage.DBPath = db
	}
	if dir := os.Getenv("PRIVGPT_EXPORT_DIR"); dir != "" {
		c.Export.Dir = dir
	}
}

// =============================================================================
// GLOBAL INSTANCE
// =============================================================================

var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Thread-safe.
func Global() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	loaded, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		loaded = Default()
	}

	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if globalConfig == nil {
		globalConfig = loaded
	}
	return globalConfig
}

// SetGlobal replaces the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}
