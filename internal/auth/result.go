// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import "time"

// Result is the outcome of an authentication flow.
//
// Success is false for expected failures; Code and Message then describe
// the failure. Token fields are set only by flows that issue tokens.
type Result struct {
	Success bool
	Code    Code
	Message string

	User         *User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time

	// VerificationToken is set by Register and RequestEmailVerification.
	// Callers deliver it out of band; it is not an access credential.
	VerificationToken string
}

func fail(code Code, msg string) Result {
	return Result{Code: code, Message: msg}
}
