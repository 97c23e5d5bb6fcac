// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neontrader/neon-tui/internal/auth"
	"github.com/neontrader/neon-tui/internal/session"
	"github.com/neontrader/neon-tui/internal/settings"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command failure with context.
type CommandError struct {
	Command string
	Action  string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError is bad user input on the command line.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// ConfigError wraps a failure to load, parse or validate configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ErrMissingArgument builds a usage error for a required argument.
func ErrMissingArgument(name, usage string) error {
	return &ValidationError{Field: name, Reason: "is required", Example: usage}
}

// rejectUnexpectedFlags turns stray flags into a usage error. A value such
// as "-x" parses as a flag, so the error points at the "--" separator.
func rejectUnexpectedFlags(p *ArgParser, example string, known ...string) error {
	bad := p.Unexpected(known...)
	if len(bad) == 0 {
		return nil
	}
	return &ValidationError{
		Field:   "flag",
		Value:   "-" + strings.Join(bad, ", -"),
		Reason:  `unknown flag; put "--" before a value that starts with "-"`,
		Example: example,
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err as an [ERROR] line, or as a JSON envelope when
// jsonMode is set.
func DisplayError(err error, command string, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Print()
		return
	}
	fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// GetExitCode maps an error to the process exit status.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	var configErr *ConfigError
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrInvalidValue):
		return ExitUsageError
	case errors.As(err, &configErr), errors.Is(err, session.ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case auth.IsCredential(err), auth.IsTokenRejected(err):
		return ExitAuthError
	case auth.IsRetryable(err):
		return ExitNetworkError
	}
	var ttyErr *TTYRequiredError
	if errors.As(err, &ttyErr) {
		return ExitUsageError
	}
	return ExitGeneralError
}
