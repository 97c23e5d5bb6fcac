// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"time"
)

// EventKind identifies a controller event.
type EventKind int

const (
	EventSessionEstablished EventKind = iota + 1
	EventWarningRaised
	EventWarningTick
	EventWarningCleared
	EventLocked
	EventUnlocked
	EventSessionExpired
	EventLoggedOut
)

func (k EventKind) String() string {
	switch k {
	case EventSessionEstablished:
		return "sessionEstablished"
	case EventWarningRaised:
		return "warningRaised"
	case EventWarningTick:
		return "warningTick"
	case EventWarningCleared:
		return "warningCleared"
	case EventLocked:
		return "locked"
	case EventUnlocked:
		return "unlocked"
	case EventSessionExpired:
		return "sessionExpired"
	case EventLoggedOut:
		return "loggedOut"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Ends reports whether the event destroys the session.
func (k EventKind) Ends() bool {
	return k == EventSessionExpired || k == EventLoggedOut
}

// Reasons attached to EventSessionExpired.
const (
	ReasonIdleTimeout    = "idle_timeout"
	ReasonReauthRejected = "reauth_rejected"
	ReasonUnauthorized   = "unauthorized"
)

// Event is emitted on every state change and on each warning tick.
type Event struct {
	Kind EventKind
	At   time.Time
	User CurrentUser

	// RemainingSeconds is set for warning events.
	RemainingSeconds int

	// Reason is set for EventSessionExpired.
	Reason string
}

func (e Event) String() string {
	switch e.Kind {
	case EventWarningRaised, EventWarningTick:
		return fmt.Sprintf("%s(%d)", e.Kind, e.RemainingSeconds)
	case EventSessionExpired:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Reason)
	default:
		return e.Kind.String()
	}
}

// Listener receives controller events. Listeners run synchronously on the
// goroutine that caused the transition, after the controller lock is released.
type Listener func(Event)
