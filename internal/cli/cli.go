// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/neontrader/neon-tui/internal/config"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the top-level command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdServe
	CmdLogin
	CmdSettings
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdServe:
		return "serve"
	case CmdLogin:
		return "login"
	case CmdSettings:
		return "settings"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool
	Verbose    bool
	ConfigPath string

	// Name is the command word as typed, kept for error messages.
	Name string
	// Raw holds everything after the command word.
	Raw []string
}

// Parser returns an ArgParser over the command's own arguments.
func (a Args) Parser(bools ...string) *ArgParser {
	return NewArgParser(a.Raw, bools...)
}

const usageText = `neon - terminal trading dashboard

Usage:
  neon                          Start the TUI (default)
  neon tui                      Start the TUI
  neon serve [--addr ADDR]      Run the local auth and trading backend
  neon login [--email EMAIL]    Check credentials against the backend
  neon settings [subcommand]    Persisted session timing
  neon config [subcommand]      Configuration file
  neon version                  Show version
  neon help                     Show this help

Settings:
  neon settings list                  Effective session timing and its source
  neon settings get KEY               Show one value
  neon settings set KEY DURATION      Store a value (e.g. 5m, 90s)
  neon settings reset [KEY]           Remove one or all stored values

  Keys: session.auto_lock, session.session_timeout, session.warning_lead

Config:
  neon config show                    Print the configuration (secrets redacted)
  neon config get KEY                 Print one value (dot notation)
  neon config set KEY VALUE           Update the config file
  neon config set KEY -- VALUE        Same, for a value starting with "-"
  neon config path                    Print the config file path
  neon config validate [--fix]        Check (or repair) the config file

Global flags:
  --json                Machine-readable output
  -v, --verbose         Debug logging
  --config PATH         Use this config file

Environment:
  NEON_HOME             Data directory (default ~/.neon)
  NEON_BACKEND_URL      Backend base URL
  NEON_AUTO_LOCK        Lock after this much inactivity
  NEON_SESSION_TIMEOUT  Expire after this much inactivity
  NEON_WARNING_LEAD     Warn this long before locking
  NEON_LOG_LEVEL        debug, info, warn or error
  NEON_SERVER_ADDR      Listen address for neon serve
  NEON_JWT_SECRET       Token signing secret for neon serve
  NO_COLOR              Disable colored output
`

// PrintUsage prints the help text.
func PrintUsage() {
	fmt.Fprint(stdout, usageText)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Fprintf(stdout, "neon version %s\n", Version)
	fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(stdout, "  Build date: %s\n", BuildDate)
}

// HandleVersion prints version information, as JSON with --json.
func HandleVersion(args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print()
	}
	PrintVersion()
	return nil
}

// HandleHelp prints usage.
func HandleHelp(Args) error {
	PrintUsage()
	return nil
}

// Parse reads the command line (without the program name).
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	args.Name = remaining[0]
	args.Raw = remaining[1:]

	switch strings.ToLower(args.Name) {
	case "tui":
		return CmdTUI, args
	case "serve", "server":
		return CmdServe, args
	case "login":
		return CmdLogin, args
	case "settings", "setting":
		return CmdSettings, args
	case "config", "cfg":
		return CmdConfig, args
	case "version", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	default:
		return CmdUnknown, args
	}
}

// parseGlobalFlags pulls the global flags out wherever they appear.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			remaining = append(remaining, argv[i:]...)
			return remaining, args
		case arg == "--json":
			args.JSON = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--config":
			if i+1 < len(argv) {
				i++
				args.ConfigPath = argv[i]
			}
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

// UnknownCommandError is returned for a command word Parse does not know.
func UnknownCommandError(args Args) error {
	return &ValidationError{Field: "command", Value: args.Name, Reason: "unknown command", Example: "neon help"}
}

// =============================================================================
// SHARED LOADERS
// =============================================================================

// loadConfig reads --config if given, otherwise the default location.
func loadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &ConfigError{Path: args.ConfigPath, Err: err}
	}
	if args.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// configPath is the file config commands read and write.
func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ResolvePath()
}

// settingsPath is the settings database for cfg.
func settingsPath(cfg *config.Config) string {
	if cfg.Settings.Path != "" {
		return cfg.Settings.Path
	}
	return config.DataPath("settings.db")
}
