package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a status update would move a
	// trade backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
)
