package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConditionFailed is returned when a conditional update matched no row
	// because the entity no longer satisfies the predicate.
	ErrConditionFailed = errors.New("conditional update matched no rows")

	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate entity")
)
