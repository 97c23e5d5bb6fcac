// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the neon commands.
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	switch cmd {
//	case cli.CmdTUI:
//	    err = cli.HandleTUI(args)
//	case cli.CmdSettings:
//	    err = cli.HandleSettings(args)
//	// ... other commands
//	}
//	os.Exit(cli.GetExitCode(err))
//
// # Commands
//
//   - tui (default): the dashboard, with session locking and the audit trail
//   - serve: the in-memory auth gateway and trading backend
//   - login: one-shot credential check, optional TOTP enrollment
//   - settings: persisted session timing in the settings database
//   - config: the TOML or JSON configuration file
//
// Every command except tui accepts --json and prints a JSONResponse.
package cli
