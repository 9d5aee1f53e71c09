package domain

import "errors"

var (
	// ErrNotFound is returned when no task matches the requested ID.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTask wraps every violation of the task invariants.
	ErrInvalidTask = errors.New("invalid task")
	// ErrEmptyPatch is returned for an update that carries no field.
	ErrEmptyPatch = errors.New("update had no fields")
	// ErrInvalidID is returned when an ID does not have the store's format.
	ErrInvalidID = errors.New("invalid task id")
	// ErrConcurrencyConflict indicates that the store rejected a write because
	// the entity changed since it was read.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
