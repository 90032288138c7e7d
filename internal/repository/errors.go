package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a uniqueness constraint was violated.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrConflict indicates an optimistic concurrency check failed because the
	// stored record changed since it was read.
	ErrConflict = errors.New("repository: conflict")
)
