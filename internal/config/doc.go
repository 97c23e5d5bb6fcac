// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for neon.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation, and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - SessionConfig: Inactivity thresholds handed to the session controller
//   - Duration: A time.Duration written as "5m" in TOML and JSON
//   - Watcher: Reloads the file when it changes on disk
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NEON_*)
//   - ~/.neon/config.toml
//   - ~/.neon/config.json
//   - Built-in defaults
//
// Session thresholds stored in the settings database take precedence over
// all of the above; see package settings.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctrl, err := session.NewController(cfg.SessionSettings(), client)
package config
