// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the development backend: an auth gateway and the
// app data API, held in memory.
//
// # Endpoints
//
//   - POST /api/auth/register    - Create an account, returns a token
//   - POST /api/auth/login       - Exchange credentials for a token
//   - GET  /api/auth/me          - Resolve the identity behind a token
//   - POST /api/auth/totp/enroll - Enable a TOTP second factor
//   - GET  /api/portfolio        - Cash and holdings
//   - GET  /api/trades           - Trade history, newest first
//   - POST /api/trades           - Simulated order
//   - PUT  /api/trades/{id}/close - Exit at the current price, records PnL
//   - GET  /api/platforms        - Registered exchanges
//   - POST /api/platforms        - Register an exchange API key
//   - PUT  /api/platforms/{id}/test - Connection test
//   - GET  /api/market/{symbol}  - Mock quote
//   - GET  /api/market/prices/multiple?symbols=A,B - Several quotes
//   - GET  /healthz              - Health check
//   - GET  /metrics              - Prometheus metrics
//
// # Security Features
//
//   - bcrypt password hashes, HS256 tokens with expiry
//   - Account lockout after repeated failed logins
//   - Per-IP rate limiting on credential endpoints
//   - Request ids on every response, no secrets in logs
//
// # Usage
//
//	srv, err := server.New(server.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := srv.ListenAndServe(); err != nil {
//		log.Fatal(err)
//	}
package server
