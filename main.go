// neon - a terminal trading dashboard with session locking.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/neontrader/neon-tui/internal/cli"
	"github.com/neontrader/neon-tui/internal/server"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
	server.Version = Version
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = cli.HandleTUI(args)
	case cli.CmdServe:
		err = cli.HandleServe(args)
	case cli.CmdLogin:
		err = cli.HandleLogin(args)
	case cli.CmdSettings:
		err = cli.HandleSettings(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdVersion:
		err = cli.HandleVersion(args)
	case cli.CmdHelp:
		err = cli.HandleHelp(args)
	default:
		err = cli.UnknownCommandError(args)
	}

	if err != nil {
		cli.DisplayError(err, cmd.String(), args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}
