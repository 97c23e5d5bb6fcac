// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the client-side session lifecycle: inactivity
// tracking, the pre-lock warning countdown, auto-lock, hard expiry and
// unlock/re-authentication.
//
// # Key Types
//
//   - Controller: owns the single session and its lock state
//   - Driver: runs Evaluate on a ticker while a session exists
//   - ActivityFeed: fan-out of user activity from the presentation layer
//
// # States
//
//	NO_SESSION --login--> UNLOCKED --idle--> WARNING --idle--> LOCKED
//	WARNING --activity--> UNLOCKED
//	LOCKED --unlock--> UNLOCKED
//	any --hard timeout, logout, revoked token--> NO_SESSION
//
// # Usage
//
//	ctrl, err := session.NewController(session.DefaultConfig(), gateway)
//	drv := session.NewDriver(ctrl, 0, nil, feed)
//	drv.Start()
//	defer drv.Close()
//
//	if _, err := ctrl.Login(ctx, creds); auth.IsCredential(err) {
//	    // re-prompt
//	}
//
// Evaluation always applies the most severe threshold that has been passed,
// so a single late tick after a suspend goes straight to LOCKED or
// NO_SESSION.
package session
