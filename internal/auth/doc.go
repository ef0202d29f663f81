// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package auth provides account and credential management for Loreweave.
//
// # Credentials
//
// Passwords are stored as a keyed hash plus the random key used to
// produce it (see PasswordHasher). Refresh, password-reset and
// email-verification tokens are opaque random strings; only their
// SHA-256 digests are persisted (see HashToken).
//
// # Tokens
//
// Access tokens are short-lived HS256 JWTs issued by AccessTokenIssuer
// and never stored. Refresh tokens rotate: each successful refresh
// revokes the presented token, records its successor and issues a new
// one. A rotated token can never be used again.
//
// # Service
//
// Service coordinates the flows (register, login, refresh, revoke,
// password change and reset, email verification, deactivation and
// deletion). Expected failures are reported in Result; the error return
// is reserved for storage failures and corrupt credential data.
//
// The superuser (SuperUserID, SuperUserName) is created by
// EnsureSuperUser and can be neither deleted nor deactivated.
package auth
