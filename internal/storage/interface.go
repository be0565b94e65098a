// Package storage holds the URL record model shared by every backend, the
// in-memory engine and the JSON-lines file storage built on top of it.
package storage

import "errors"

var (
	// ErrConflict is returned when a short code is already taken by any record,
	// active or soft-deleted.
	ErrConflict = errors.New("already exists")

	// ErrNotFound is returned when no active record exists for a short code.
	ErrNotFound = errors.New("not found")
)
