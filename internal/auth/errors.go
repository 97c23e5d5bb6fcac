// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR CODES
// =============================================================================

// Code is the machine-readable error code carried in gateway error bodies.
type Code string

const (
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeDuplicateEmail     Code = "duplicate_email"
	CodeDuplicateUsername  Code = "duplicate_username"
	CodePasswordMismatch   Code = "password_mismatch"
	CodeWeakPassword       Code = "weak_password"
	CodeInvalidEmail       Code = "invalid_email"
	CodeTOTPRequired       Code = "totp_required"
	CodeInvalidTOTP        Code = "invalid_totp"
	CodeAccountLocked      Code = "account_locked"
	CodeInvalidToken       Code = "invalid_token"
	CodeExpiredToken       Code = "expired_token"
	CodeBadRequest         Code = "bad_request"
	CodeRateLimited        Code = "rate_limited"
	CodeInternal           Code = "internal"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// Credential errors. Recoverable by re-prompting the user.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWeakPassword       = errors.New("password too weak")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrTOTPRequired       = errors.New("two-factor code required")
	ErrInvalidTOTP        = errors.New("invalid two-factor code")
	ErrAccountLocked      = errors.New("account temporarily locked")
)

// Token errors. The session behind the token is gone server-side.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// ErrUnreachable marks transport failures: the gateway could not be reached or
// answered with a server error. Callers may retry.
var ErrUnreachable = errors.New("auth gateway unreachable")

// ErrUnexpected is returned for responses that fit no known code.
var ErrUnexpected = errors.New("unexpected gateway response")

var sentinels = map[Code]error{
	CodeInvalidCredentials: ErrInvalidCredentials,
	CodeDuplicateEmail:     ErrDuplicateEmail,
	CodeDuplicateUsername:  ErrDuplicateUsername,
	CodePasswordMismatch:   ErrPasswordMismatch,
	CodeWeakPassword:       ErrWeakPassword,
	CodeInvalidEmail:       ErrInvalidEmail,
	CodeTOTPRequired:       ErrTOTPRequired,
	CodeInvalidTOTP:        ErrInvalidTOTP,
	CodeAccountLocked:      ErrAccountLocked,
	CodeInvalidToken:       ErrInvalidToken,
	CodeExpiredToken:       ErrExpiredToken,
	CodeRateLimited:        ErrUnreachable,
	CodeInternal:           ErrUnreachable,
}

// =============================================================================
// GATEWAY ERROR
// =============================================================================

// Error is a typed error returned by the gateway. It unwraps to the sentinel
// matching its Code so callers can use errors.Is.
type Error struct {
	Code    Code
	Status  int
	Message string
}

// NewError builds an Error for code with a human message.
func NewError(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

// Unwrap returns the sentinel for the error code.
func (e *Error) Unwrap() error {
	if s, ok := sentinels[e.Code]; ok {
		return s
	}
	return ErrUnexpected
}

// CodeOf returns the sentinel's wire code, or "" if err carries none.
func CodeOf(err error) Code {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	for code, s := range sentinels {
		if code == CodeRateLimited || code == CodeInternal {
			continue
		}
		if errors.Is(err, s) {
			return code
		}
	}
	return ""
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// IsCredential reports whether err is a credential error (wrong password,
// duplicate account, failed validation, second factor, lockout).
func IsCredential(err error) bool {
	if err == nil {
		return false
	}
	for _, s := range []error{
		ErrInvalidCredentials, ErrDuplicateEmail, ErrDuplicateUsername,
		ErrPasswordMismatch, ErrWeakPassword, ErrInvalidEmail,
		ErrTOTPRequired, ErrInvalidTOTP, ErrAccountLocked,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether err is a transport error worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsTokenRejected reports whether the gateway confirmed the token is no
// longer valid.
func IsTokenRejected(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken)
}
