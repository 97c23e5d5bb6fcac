// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"time"

	"github.com/neontrader/neon-tui/internal/auth"
)

// =============================================================================
// STATES
// =============================================================================

// LockState is the lock level of an existing session.
type LockState int

const (
	Unlocked LockState = iota
	Warning
	Locked
)

func (l LockState) String() string {
	switch l {
	case Unlocked:
		return "UNLOCKED"
	case Warning:
		return "WARNING"
	case Locked:
		return "LOCKED"
	default:
		return fmt.Sprintf("LockState(%d)", int(l))
	}
}

// State is the externally visible controller state. It folds "no session"
// together with the lock level.
type State int

const (
	StateNoSession State = iota
	StateUnlocked
	StateWarning
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "NO_SESSION"
	case StateUnlocked:
		return "UNLOCKED"
	case StateWarning:
		return "WARNING"
	case StateLocked:
		return "LOCKED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func stateOf(l LockState) State {
	switch l {
	case Warning:
		return StateWarning
	case Locked:
		return StateLocked
	default:
		return StateUnlocked
	}
}

// =============================================================================
// SESSION
// =============================================================================

// CurrentUser is the read-only projection of the signed-in user.
type CurrentUser struct {
	ID          string
	Email       string
	DisplayName string
}

func userFromIdentity(id auth.Identity) CurrentUser {
	name := id.Username
	if name == "" {
		name = id.Email
	}
	return CurrentUser{ID: id.UserID, Email: id.Email, DisplayName: name}
}

// Session is an authenticated user. The bearer token is held by the
// controller and is not reachable through this value's exported fields.
type Session struct {
	UserID         string
	User           CurrentUser
	CreatedAt      time.Time
	LastActivityAt time.Time

	token string
}

// String never includes the token.
func (s Session) String() string {
	return fmt.Sprintf("Session{user=%s created=%s last_activity=%s}",
		s.UserID, s.CreatedAt.Format(time.RFC3339), s.LastActivityAt.Format(time.RFC3339))
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State State
	User  CurrentUser
	Idle  time.Duration

	// UntilLock is the time left before auto-lock; zero once locked.
	UntilLock time.Duration

	// UntilExpiry is the time left before the hard timeout.
	UntilExpiry time.Duration
}

// RemainingSeconds rounds d up to whole seconds, never below zero.
func RemainingSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return int(secs)
}
