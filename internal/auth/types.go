// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import "context"

// Gateway is the backend service that verifies credentials and issues bearer
// tokens.
type Gateway interface {
	Register(ctx context.Context, reg Registration) (Grant, error)
	Login(ctx context.Context, creds Credentials) (Grant, error)
	WhoAmI(ctx context.Context, token string) (Identity, error)
}

// Credentials are submitted on login. TOTPCode is only needed for accounts
// with a second factor enrolled.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// Registration is submitted when creating an account.
type Registration struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Identity is the user record the gateway returns.
type Identity struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Grant is a successful login or registration.
type Grant struct {
	Token    string   `json:"token"`
	Identity Identity `json:"user"`
}

// ErrorBody is the JSON envelope for gateway errors.
type ErrorBody struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// MeResponse wraps the identity returned by the who-am-I endpoint.
type MeResponse struct {
	User Identity `json:"user"`
}

// TOTPEnrollment is returned when a user enrolls a second factor.
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}
