// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth defines the auth gateway contract and an HTTP client for it.
//
// Gateway failures come back as typed errors. Use IsCredential, IsRetryable
// and IsTokenRejected to decide between re-prompting the user, retrying, and
// falling back to a full login.
package auth
