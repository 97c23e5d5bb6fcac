// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/neontrader/neon-tui/internal/session"
	"github.com/neontrader/neon-tui/internal/settings"
)

const settingsUsage = "neon settings set session.auto_lock 5m"

// HandleSettings handles "neon settings [list|get|set|reset]".
func HandleSettings(args Args) error {
	p := args.Parser("json")
	jsonMode := args.JSON || p.BoolFlag("json")

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	store, err := settings.Open(settingsPath(cfg))
	if err != nil {
		return &CommandError{Command: "settings", Action: "open", Reason: "cannot open settings store", Err: err}
	}
	defer store.Close()

	ctx := context.Background()
	base := cfg.SessionSettings()

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		return OutputJSON(jsonMode, "settings list", func() (interface{}, error) {
			rows, err := effectiveSettings(ctx, store, base)
			if err != nil {
				return nil, err
			}
			if !jsonMode {
				printSettings(rows, store.Path())
			}
			return rows, nil
		})

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "neon settings get session.auto_lock")
		}
		return OutputJSON(jsonMode, "settings get", func() (interface{}, error) {
			if _, err := sessionValue(base, key); err != nil {
				return nil, err
			}
			rows, err := effectiveSettings(ctx, store, base)
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				if r.Key == key {
					if !jsonMode {
						fmt.Fprintln(stdout, r.Value)
					}
					return r, nil
				}
			}
			return nil, fmt.Errorf("%w: %s", settings.ErrUnknownKey, key)
		})

	case "set":
		if err := rejectUnexpectedFlags(p, settingsUsage, "json"); err != nil {
			return err
		}
		key, value := p.Positional(1), p.Positional(2)
		if key == "" || value == "" {
			return ErrMissingArgument("key and value", settingsUsage)
		}
		return OutputJSON(jsonMode, "settings set", func() (interface{}, error) {
			merged, err := store.SetSession(ctx, base, key, value)
			if err != nil {
				return nil, err
			}
			d, _ := sessionValue(merged, key)
			row := SettingData{Key: key, Value: d.String(), Source: "stored"}
			if !jsonMode {
				fmt.Fprintf(stdout, "%s %s = %s\n", RenderStatus("ok"), key, d)
			}
			return row, nil
		})

	case "reset", "unset":
		key := p.Positional(1)
		return OutputJSON(jsonMode, "settings reset", func() (interface{}, error) {
			if key == "" {
				if err := store.Reset(ctx); err != nil {
					return nil, err
				}
			} else {
				if err := settings.CheckValue(key, "1s"); err != nil {
					return nil, err
				}
				if err := store.Delete(ctx, key); err != nil {
					return nil, err
				}
			}
			rows, err := effectiveSettings(ctx, store, base)
			if err != nil {
				return nil, err
			}
			if !jsonMode {
				fmt.Fprintf(stdout, "%s stored settings cleared\n", RenderStatus("ok"))
				printSettings(rows, store.Path())
			}
			return rows, nil
		})

	default:
		return &ValidationError{Field: "subcommand", Value: sub, Reason: "expected list, get, set or reset", Example: settingsUsage}
	}
}

// effectiveSettings resolves each session key against the store and base.
func effectiveSettings(ctx context.Context, store *settings.Store, base session.Config) ([]SettingData, error) {
	entries, err := store.All(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]settings.Entry, len(entries))
	for _, e := range entries {
		stored[e.Key] = e
	}

	effective, err := store.ApplySession(ctx, base)
	source := "stored"
	if err != nil {
		// Stored values that no longer validate are ignored at runtime too.
		effective, source = base, "config"
	}

	rows := make([]SettingData, 0, len(settings.SessionKeys))
	for _, key := range settings.SessionKeys {
		d, _ := sessionValue(effective, key)
		row := SettingData{Key: key, Value: d.String(), Source: "config"}
		if e, ok := stored[key]; ok && source == "stored" {
			row.Source = "stored"
			row.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func sessionValue(cfg session.Config, key string) (time.Duration, error) {
	switch key {
	case settings.KeyAutoLock:
		return cfg.AutoLock, nil
	case settings.KeySessionTimeout:
		return cfg.SessionTimeout, nil
	case settings.KeyWarningLead:
		return cfg.WarningLead, nil
	default:
		return 0, settings.CheckValue(key, "1s")
	}
}

func printSettings(rows []SettingData, path string) {
	fmt.Fprintln(stdout, TitleStyle.Render("Session settings"))
	for _, r := range rows {
		printField(r.Key, fmt.Sprintf("%-8s %s", r.Value, DimStyle.Render("("+r.Source+")")))
	}
	fmt.Fprintln(stdout, DimStyle.Render("store: "+path))
}
