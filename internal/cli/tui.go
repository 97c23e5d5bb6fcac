// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neontrader/neon-tui/internal/appdata"
	"github.com/neontrader/neon-tui/internal/audit"
	"github.com/neontrader/neon-tui/internal/config"
	"github.com/neontrader/neon-tui/internal/logging"
	"github.com/neontrader/neon-tui/internal/session"
	"github.com/neontrader/neon-tui/internal/settings"
	"github.com/neontrader/neon-tui/internal/ui/app"
	"github.com/neontrader/neon-tui/internal/ui/styles"
)

// HandleTUI handles "neon" and "neon tui".
//
//	--email EMAIL    prefill the login form
//	--theme NAME     neon or plain
func HandleTUI(args Args) error {
	p := args.Parser("json")
	if err := RequiresTTY("run the dashboard"); err != nil {
		return err
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if theme := p.Flag("theme"); theme != "" {
		cfg.UI.Theme = theme
	}

	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = config.DataPath("neon.log")
	}
	logger, logCloser, err := logging.OpenFile(cfg.Logging.Level, cfg.Logging.Format, logPath)
	if err != nil {
		return &ConfigError{Path: logPath, Err: err}
	}
	defer logCloser.Close()
	logging.Install(logger)

	rt, err := newTUIRuntime(cfg, args.ConfigPath, p.Flag("email"), logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	if _, err := tea.NewProgram(rt.model, opts...).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// tuiRuntime owns everything the dashboard needs besides the terminal.
type tuiRuntime struct {
	logger  *slog.Logger
	ctrl    *session.Controller
	store   *settings.Store
	auditor *audit.Logger
	feed    *session.ActivityFeed
	driver  *session.Driver
	watcher *config.Watcher
	model   *app.Model

	closers []func()
}

// newTUIRuntime wires the controller, persisted settings, audit trail,
// backend clients, activity driver and config reloads into a model.
func newTUIRuntime(cfg *config.Config, configFile, email string, logger *slog.Logger) (_ *tuiRuntime, err error) {
	rt := &tuiRuntime{logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.store, err = settings.Open(settingsPath(cfg))
	if err != nil {
		return nil, &CommandError{Command: "tui", Action: "start", Reason: "cannot open settings store", Err: err}
	}
	rt.closers = append(rt.closers, func() { _ = rt.store.Close() })

	base := cfg.SessionSettings()
	sessCfg, err := rt.store.ApplySession(context.Background(), base)
	if err != nil {
		logger.Warn("ignoring stored session settings", "error", err)
	}

	rt.ctrl, err = session.NewController(sessCfg, newGateway(cfg, logger), session.WithLogger(logger))
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	var onLoginFailure func(string, error)
	if cfg.Audit.Enabled {
		path := cfg.Audit.Path
		if path == "" {
			path = config.DataPath("audit.log")
		}
		rt.auditor, err = audit.NewLogger(path)
		if err != nil {
			return nil, &CommandError{Command: "tui", Action: "start", Reason: "cannot open audit log", Err: err}
		}
		detach := rt.auditor.Attach(rt.ctrl)
		rt.closers = append(rt.closers, func() { _ = rt.auditor.Close() }, detach)
		onLoginFailure = func(email string, err error) {
			if logErr := rt.auditor.LogLoginFailure(email, err); logErr != nil {
				logger.Warn("audit write failed", "error", logErr)
			}
		}
	}

	data := appdata.NewClient(cfg.Backend.URL, rt.ctrl,
		appdata.WithTimeout(cfg.BackendTimeout()),
		appdata.WithLogger(logger),
		appdata.OnUnauthorized(func() { rt.ctrl.Invalidate(session.ReasonUnauthorized) }),
	)

	rt.feed = session.NewActivityFeed()
	rt.driver = session.NewDriver(rt.ctrl, cfg.Session.TickInterval.Std(), nil, rt.feed)
	rt.driver.Start()
	// Logout runs before the driver and audit trail detach, so it is recorded.
	rt.closers = append(rt.closers, rt.driver.Close, rt.ctrl.Logout)

	if err := rt.watchConfig(configFile); err != nil {
		logger.Warn("config reload disabled", "error", err)
	}

	rt.model, err = app.New(app.Options{
		Controller:     rt.ctrl,
		Data:           data,
		Feed:           rt.feed,
		Theme:          styles.NewTheme(cfg.UI.Theme),
		Logger:         logger,
		Email:          email,
		RequestTimeout: cfg.BackendTimeout(),
		OnLoginFailure: onLoginFailure,
	})
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.model.Close)
	return rt, nil
}

// watchConfig re-applies session timing when the config file changes.
// Stored settings keep precedence over the file.
func (rt *tuiRuntime) watchConfig(path string) error {
	if path == "" {
		var err error
		if path, err = config.ResolvePath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	w, err := config.NewWatcher(path, 0, func(cfg *config.Config, err error) {
		if err != nil {
			return
		}
		next, err := rt.store.ApplySession(context.Background(), cfg.SessionSettings())
		if err != nil {
			rt.logger.Warn("ignoring stored session settings", "error", err)
		}
		if err := rt.ctrl.Reconfigure(next); err != nil {
			rt.logger.Warn("session reconfigure rejected", "error", err)
		}
	})
	if err != nil {
		return err
	}
	w.SetLogger(rt.logger)
	if err := w.Start(); err != nil {
		_ = w.Close()
		return err
	}
	rt.watcher = w
	rt.closers = append(rt.closers, func() { _ = w.Close() })
	return nil
}

// Close tears down in reverse order of construction.
func (rt *tuiRuntime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
