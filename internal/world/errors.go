// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import "errors"

// Sentinels returned by repositories and services. Callers match with
// errors.Is; the returned errors are oops errors carrying a code.
var (
	// ErrNotFound is returned when a universe, entity or relation does not
	// exist or has been deleted.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a universe was modified since it was read.
	ErrConflict = errors.New("version conflict")

	// ErrIDConflict is returned when another writer claimed the relation id
	// chosen for an insert.
	ErrIDConflict = errors.New("relation id conflict")

	// ErrPermissionDenied is returned when the caller does not own the universe.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAnchorProtected is returned when deleting the anchor event of a
	// relative-dated universe.
	ErrAnchorProtected = errors.New("anchor event cannot be deleted")
)
