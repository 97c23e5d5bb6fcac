// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Config command implementation for neon.
//
// Command: config [subcommand]
// Short:   View and modify the configuration file
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Update the config file; use "--" before a value
//                       that starts with "-"
//   path                Show the configuration file path
//   validate [--fix]    Check the configuration file; --fix repairs
//                       an out-of-order [session] section
//   keys                List settable keys
//
// Examples:
//   neon config set backend.url http://localhost:8080
//   neon config set session.auto_lock 10m
//   neon config set ui.theme plain
//   neon config get session.warning_lead --json
//   neon config set server.jwt_secret -- -starts-with-a-dash
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/neontrader/neon-tui/internal/config"
)

// HandleConfig handles "neon config".
func HandleConfig(args Args) error {
	p := args.Parser("json", "fix")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch sub := p.Subcommand(); sub {
	case "", "show":
		return OutputJSON(jsonMode, "config show", func() (interface{}, error) {
			cfg, err := loadConfig(args)
			if err != nil {
				return nil, err
			}
			if !jsonMode {
				fmt.Fprintln(stdout, cfg.String())
				return nil, nil
			}
			redacted := cfg.Clone()
			if redacted.Server.JWTSecret != "" {
				redacted.Server.JWTSecret = "[REDACTED]"
			}
			return redacted, nil
		})

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "neon config get backend.url")
		}
		return OutputJSON(jsonMode, "config get", func() (interface{}, error) {
			cfg, err := loadConfig(args)
			if err != nil {
				return nil, err
			}
			v, err := cfg.Get(key)
			if err != nil {
				return nil, &ValidationError{Field: "key", Value: key, Reason: err.Error()}
			}
			if key == "server.jwt_secret" && v != "" {
				v = "[REDACTED]"
			}
			if !jsonMode {
				fmt.Fprintf(stdout, "%v\n", v)
			}
			return ConfigValueData{Key: key, Value: v}, nil
		})

	case "set":
		if err := rejectUnexpectedFlags(p, "neon config set server.jwt_secret -- -value", "json"); err != nil {
			return err
		}
		key, value := p.Positional(1), strings.Join(p.PositionalFrom(2), " ")
		if key == "" || value == "" {
			return ErrMissingArgument("key and value", "neon config set session.auto_lock 10m")
		}
		return OutputJSON(jsonMode, "config set", func() (interface{}, error) {
			path, err := configPath(args)
			if err != nil {
				return nil, &ConfigError{Err: err}
			}
			if err := setConfigValue(path, key, value); err != nil {
				return nil, err
			}
			if !jsonMode {
				fmt.Fprintf(stdout, "%s %s = %s\n", RenderStatus("ok"), key, value)
				fmt.Fprintln(stdout, DimStyle.Render("saved to "+path))
			}
			return ConfigValueData{Key: key, Value: value}, nil
		})

	case "path":
		return OutputJSON(jsonMode, "config path", func() (interface{}, error) {
			path, err := configPath(args)
			if err != nil {
				return nil, &ConfigError{Err: err}
			}
			if !jsonMode {
				fmt.Fprintln(stdout, path)
			}
			return map[string]string{"path": path}, nil
		})

	case "validate":
		return OutputJSON(jsonMode, "config validate", func() (interface{}, error) {
			if p.BoolFlag("fix") {
				path, err := configPath(args)
				if err != nil {
					return nil, &ConfigError{Err: err}
				}
				fixed, err := fixSessionOrder(path)
				if err != nil {
					return nil, err
				}
				if fixed && !jsonMode {
					fmt.Fprintf(stdout, "%s repaired [session] ordering in %s\n", RenderStatus("warn"), path)
				}
			}
			cfg, err := loadConfig(args)
			if err != nil {
				return nil, err
			}
			if !jsonMode {
				fmt.Fprintf(stdout, "%s configuration is valid\n", RenderStatus("ok"))
				printField("backend", cfg.Backend.URL)
				printField("auto lock", cfg.Session.AutoLock.String())
				printField("session timeout", cfg.Session.SessionTimeout.String())
				printField("warning lead", cfg.Session.WarningLead.String())
			}
			return map[string]bool{"valid": true}, nil
		})

	case "keys":
		return OutputJSON(jsonMode, "config keys", func() (interface{}, error) {
			keys := config.GetAllKeys()
			if !jsonMode {
				fmt.Fprintln(stdout, strings.Join(keys, "\n"))
			}
			return keys, nil
		})

	default:
		return &ValidationError{Field: "subcommand", Value: sub, Reason: "expected show, get, set, path, validate or keys"}
	}
}

// setConfigValue rewrites the file at path with key changed. The file is
// decoded without environment overrides so they are not persisted.
func setConfigValue(path, key, value string) error {
	cfg, err := readConfigFile(path)
	if err != nil {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return &ValidationError{Field: key, Value: value, Reason: err.Error()}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return &ValidationError{Field: key, Value: value, Reason: err.Error()}
	}
	return writeConfigFile(cfg, path)
}

// fixSessionOrder clamps the [session] durations in the file at path and
// saves it if anything changed. A missing file needs no repair.
func fixSessionOrder(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	cfg, err := readConfigFile(path)
	if err != nil {
		return false, err
	}
	cfg.SetDefaults()
	if !cfg.ClampSession() {
		return false, nil
	}
	return true, writeConfigFile(cfg, path)
}

// readConfigFile decodes path over the defaults, without env overrides or
// validation. A missing file yields the defaults.
func readConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, &ConfigError{Path: path, Err: err}
	}

	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

func writeConfigFile(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
