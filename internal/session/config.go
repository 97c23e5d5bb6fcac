// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"time"
)

// Config holds the controller thresholds. All durations are measured from the
// last recorded activity.
type Config struct {
	// AutoLock is the idle time after which the session locks (default: 5 minutes).
	AutoLock time.Duration

	// SessionTimeout is the idle time after which the session is destroyed
	// (default: 15 minutes).
	SessionTimeout time.Duration

	// WarningLead is how long before AutoLock the warning starts (default: 1 minute).
	WarningLead time.Duration

	// TickInterval is how often the driver evaluates (default: 1 second).
	TickInterval time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		AutoLock:       5 * time.Minute,
		SessionTimeout: 15 * time.Minute,
		WarningLead:    1 * time.Minute,
		TickInterval:   time.Second,
	}
}

// Validate enforces 0 < WarningLead < AutoLock < SessionTimeout.
func (c Config) Validate() error {
	if c.WarningLead <= 0 {
		return fmt.Errorf("%w: warning lead must be positive, got %s", ErrInvalidConfig, c.WarningLead)
	}
	if c.WarningLead >= c.AutoLock {
		return fmt.Errorf("%w: warning lead %s must be shorter than auto-lock %s",
			ErrInvalidConfig, c.WarningLead, c.AutoLock)
	}
	if c.AutoLock >= c.SessionTimeout {
		return fmt.Errorf("%w: auto-lock %s must be shorter than session timeout %s",
			ErrInvalidConfig, c.AutoLock, c.SessionTimeout)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("%w: tick interval must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Clamp repairs a config so that it validates. AutoLock is treated as the
// anchor: a non-positive AutoLock falls back to the default, the warning lead
// is shrunk to fit inside it, and the session timeout is lifted above it.
func (c Config) Clamp() Config {
	def := DefaultConfig()
	if c.AutoLock <= 0 {
		c.AutoLock = def.AutoLock
	}
	if c.WarningLead <= 0 {
		c.WarningLead = def.WarningLead
	}
	if c.WarningLead >= c.AutoLock {
		c.WarningLead = c.AutoLock / 5
		if c.WarningLead <= 0 {
			c.WarningLead = c.AutoLock / 2
		}
	}
	if c.SessionTimeout <= c.AutoLock {
		c.SessionTimeout = 3 * c.AutoLock
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	return c
}

// warnAt is the idle time at which the warning starts.
func (c Config) warnAt() time.Duration {
	return c.AutoLock - c.WarningLead
}
