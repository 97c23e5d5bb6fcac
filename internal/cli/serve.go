// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neontrader/neon-tui/internal/config"
	"github.com/neontrader/neon-tui/internal/logging"
	"github.com/neontrader/neon-tui/internal/server"
)

// ShutdownTimeout bounds graceful shutdown of "neon serve".
const ShutdownTimeout = 10 * time.Second

// HandleServe handles "neon serve": the local auth gateway and trading
// backend, in memory, until SIGINT or SIGTERM.
//
//	--addr ADDR    listen address (default server.addr)
func HandleServe(args Args) error {
	p := args.Parser("json")

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if addr := p.Flag("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger := logging.Install(logging.New(cfg.Logging.Level, cfg.Logging.Format, stderr))
	if cfg.Server.JWTSecret == "" {
		logger.Warn("server.jwt_secret is not set; tokens will not survive a restart")
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return &CommandError{Command: "serve", Action: "listen", Reason: cfg.Server.Addr, Err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(stderr, "%s neon backend listening on http://%s\n", RenderStatus("ok"), ln.Addr())
	return runServer(ctx, serverConfig(cfg), ln, logger)
}

// serverConfig maps the [server] section onto server.Config.
func serverConfig(cfg *config.Config) server.Config {
	sc := server.DefaultConfig()
	sc.Addr = cfg.Server.Addr
	sc.JWTSecret = cfg.Server.JWTSecret
	if cfg.Server.TokenTTL > 0 {
		sc.TokenTTL = cfg.Server.TokenTTL.Std()
	}
	if cfg.Server.MaxFailedAttempts > 0 {
		sc.MaxFailedAttempts = cfg.Server.MaxFailedAttempts
	}
	if cfg.Server.LockoutDuration > 0 {
		sc.LockoutDuration = cfg.Server.LockoutDuration.Std()
	}
	return sc
}

// runServer serves on ln until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, sc server.Config, ln net.Listener, logger *slog.Logger) error {
	srv, err := server.New(sc, server.WithLogger(logger))
	if err != nil {
		_ = ln.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	// Serve may not have registered its http.Server yet.
	_ = ln.Close()
	if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	if shutdownErr != nil && !errors.Is(shutdownErr, context.DeadlineExceeded) {
		return shutdownErr
	}
	return nil
}
