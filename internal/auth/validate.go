// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Password length bounds. bcrypt only reads the first 72 bytes and refuses
// anything longer.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// ErrPasswordTooLong is a weak-password error for passwords bcrypt cannot
// hash.
var ErrPasswordTooLong = fmt.Errorf("%w: longer than %d bytes", ErrWeakPassword, MaxPasswordBytes)

// NormalizeEmail trims, NFKC-normalizes and case-folds an email so that
// visually identical addresses compare equal.
func NormalizeEmail(email string) string {
	return foldString(email)
}

// NormalizeUsername applies the same folding as NormalizeEmail.
func NormalizeUsername(username string) string {
	return foldString(username)
}

// A Caser carries state, so each call gets its own.
func foldString(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// ValidateEmail performs a shape check only: something@domain.tld.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return ErrInvalidEmail
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateRegistration checks a registration before it is sent. The gateway
// repeats these checks; running them locally avoids a round trip for
// obvious mistakes.
func ValidateRegistration(reg Registration) error {
	if err := ValidateEmail(reg.Email); err != nil {
		return err
	}
	if strings.TrimSpace(reg.Username) == "" {
		return NewError(CodeBadRequest, 400, "username is required")
	}
	if reg.Password != reg.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if len([]rune(reg.Password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(reg.Password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
