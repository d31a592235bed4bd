package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrNotApplied is returned when a conditional write's predicate no longer
	// holds in storage and nothing was written.
	ErrNotApplied = errors.New("conditional write not applied")

	// ErrDuplicate is returned when a write would violate a uniqueness constraint,
	// including the one-open-ride-per-rider and one-active-ride-per-driver indexes.
	ErrDuplicate = errors.New("duplicate entity")
)
