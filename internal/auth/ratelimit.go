// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"time"
)

// Lockout configuration.
const (
	// LockoutDuration is how long an account stays locked.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of consecutive failures that locks
	// the account.
	LockoutThreshold = 7
)

// LockoutStatus describes the lockout state of an account.
type LockoutStatus struct {
	// IsLockedOut is true while logins are refused.
	IsLockedOut bool

	// Remaining is the time until the lockout ends.
	Remaining time.Duration

	// AttemptsLeft is the number of failures allowed before a lockout.
	AttemptsLeft int
}

// CheckFailures evaluates the lockout state at now.
func CheckFailures(failures int, lockedUntil *time.Time, now time.Time) LockoutStatus {
	if IsLockedOut(lockedUntil, now) {
		return LockoutStatus{IsLockedOut: true, Remaining: lockedUntil.Sub(now)}
	}
	// An expired lockout leaves the counter at or above the threshold, so
	// the next failure locks again.
	return LockoutStatus{AttemptsLeft: max(LockoutThreshold-failures, 1)}
}

// IsLockedOut returns true if lockedUntil is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ComputeLockoutTime returns the lockout end for the given failure count,
// or nil below the threshold.
func ComputeLockoutTime(failures int, now time.Time) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	until := now.Add(LockoutDuration)
	return &until
}
