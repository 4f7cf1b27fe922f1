package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional update does not apply
	// because the row no longer matches the expected state.
	ErrConflict = errors.New("conditional update conflict")
)
