package storage

import "errors"

// Storage errors shared by all TokenStore implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails, including
	// staged field names outside the known vocabulary.
	ErrInvalidInput = errors.New("invalid input")
)
