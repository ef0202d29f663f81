// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import "errors"

// Repository sentinels. Implementations wrap these in oops errors carrying
// a code and context; callers match with errors.Is.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a username or email is already taken.
	ErrDuplicate = errors.New("duplicate")

	// ErrTokenInactive is returned when a conditional token update finds
	// the token already revoked, used or expired.
	ErrTokenInactive = errors.New("token inactive")
)

// Code classifies an expected failure reported in Result.
type Code string

// Result codes.
const (
	CodeValidation             Code = "ValidationError"
	CodeDuplicate              Code = "DuplicateResource"
	CodeInvalidCredentials     Code = "InvalidCredentials"
	CodeInactiveAccount        Code = "InactiveAccount"
	CodeAccountLocked          Code = "AccountLocked"
	CodeInvalidOrExpiredToken  Code = "InvalidOrExpiredToken"
	CodeUserNotFoundOrInactive Code = "UserNotFoundOrInactive"
	CodeNotFound               Code = "NotFound"
	CodeInvalidCurrentPassword Code = "InvalidCurrentPassword"
	CodePermissionDenied       Code = "PermissionDenied"
)

// User-facing messages. Credential failures share one message so the
// response never reveals which field was wrong.
const (
	MsgMissingFields          = "Username, email and password are required."
	MsgUsernameTaken          = "Username is already taken."
	MsgEmailTaken             = "Email is already registered."
	MsgAccountExists          = "Username or email is already registered."
	MsgInvalidCredentials     = "Invalid username/email or password."
	MsgInactiveAccount        = "Account is deactivated."
	MsgAccountLocked          = "Account is temporarily locked. Try again later."
	MsgInvalidOrExpiredToken  = "Invalid or expired token."
	MsgUserNotFoundOrInactive = "User not found or inactive."
	MsgUserNotFound           = "User not found."
	MsgInvalidCurrentPassword = "Current password is incorrect."
	MsgPasswordChanged        = "Password changed. Please sign in again."
	MsgEmailVerified          = "Email verified."
	MsgSuperUserProtected     = "The superuser account cannot be modified."
)

// Revocation reasons recorded on refresh tokens.
const (
	ReasonRotated     = "Replaced by new token"
	ReasonManual      = "Manually revoked"
	ReasonPassword    = "Password changed"
	ReasonReset       = "Password reset"
	ReasonDeactivated = "Account deactivated"
)
