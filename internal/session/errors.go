// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "errors"

var (
	// ErrNoSession is returned by operations that need a session.
	ErrNoSession = errors.New("no active session")

	// ErrNothingToUnlock is returned by unlock operations when no session exists.
	ErrNothingToUnlock = errors.New("nothing to unlock: no active session")

	// ErrNotLocked is returned by unlock operations when the session is not locked.
	ErrNotLocked = errors.New("session is not locked")

	// ErrSessionGone means the session ended while a gateway call was in flight.
	ErrSessionGone = errors.New("session ended during request")

	// ErrSessionRevoked means the gateway rejected the session token; a full
	// login is required.
	ErrSessionRevoked = errors.New("session revoked, please log in again")

	// ErrInvalidConfig wraps threshold ordering violations.
	ErrInvalidConfig = errors.New("invalid session config")

	// ErrIdentityMismatch means reauthentication succeeded for a different user.
	ErrIdentityMismatch = errors.New("reauthenticated as a different user")
)
