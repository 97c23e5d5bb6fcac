// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neontrader/neon-tui/internal/appdata"
	"github.com/neontrader/neon-tui/internal/auth"
	"github.com/neontrader/neon-tui/internal/session"
)

// Session-end notices shown on the login form.
const (
	noticeIdle         = "Session expired after inactivity"
	noticeRevoked      = "Session revoked, please log in again"
	noticeUnauthorized = "Session no longer valid"
	noticeSignedOut    = "Signed out"
)

// userMessage turns an error into the line shown to the user. Tokens never
// appear in gateway errors, so wrapped messages are safe to show.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Incorrect email or password"
	case errors.Is(err, auth.ErrDuplicateEmail):
		return "An account with that email already exists"
	case errors.Is(err, auth.ErrDuplicateUsername):
		return "That username is taken"
	case errors.Is(err, auth.ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, auth.ErrPasswordTooLong):
		return fmt.Sprintf("Password must be at most %d bytes", auth.MaxPasswordBytes)
	case errors.Is(err, auth.ErrWeakPassword):
		return fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength)
	case errors.Is(err, auth.ErrInvalidEmail):
		return "Enter a valid email address"
	case errors.Is(err, auth.ErrTOTPRequired):
		return "Enter your two-factor code"
	case errors.Is(err, auth.ErrInvalidTOTP):
		return "Incorrect two-factor code"
	case errors.Is(err, auth.ErrAccountLocked):
		return "Too many failed attempts, try again later"
	case errors.Is(err, session.ErrSessionRevoked):
		return noticeRevoked
	case auth.IsTokenRejected(err):
		return noticeUnauthorized
	case errors.Is(err, session.ErrSessionGone), errors.Is(err, session.ErrNothingToUnlock),
		errors.Is(err, session.ErrNoSession), errors.Is(err, appdata.ErrNoToken):
		return "Session ended"
	case errors.Is(err, appdata.ErrInvalidTrade), errors.Is(err, appdata.ErrInvalidPlatform):
		return capitalize(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out, try again"
	case auth.IsRetryable(err):
		return "Cannot reach the server, try again"
	}
	var gwErr *auth.Error
	if errors.As(err, &gwErr) && gwErr.Code == auth.CodeBadRequest && gwErr.Message != "" {
		return capitalize(gwErr.Message)
	}
	return "Something went wrong"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// endNotice explains why a session ended.
func endNotice(ev session.Event) string {
	if ev.Kind == session.EventLoggedOut {
		return noticeSignedOut
	}
	switch ev.Reason {
	case session.ReasonIdleTimeout:
		return noticeIdle
	case session.ReasonReauthRejected:
		return noticeRevoked
	default:
		return noticeUnauthorized
	}
}
