// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for privgpt.
//
// Supports TOML configuration with sensible defaults, environment
// variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PRIVGPT_*)
//   - ~/.privgpt/config.toml
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
//	base := cfg.Server.BaseURL
//	theme := cfg.UI.Theme
//
// A Watcher can be attached to the config file to pick up edits while
// the application runs.
package config
