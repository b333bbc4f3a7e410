package repository

import "errors"

var (
	// ErrNotFound is returned when the referenced image record does not exist
	ErrNotFound = errors.New("image record not found")

	// ErrDuplicateFingerprint is returned by Insert when another live record
	// already holds the same content fingerprint. It is an expected outcome
	// of ingesting a duplicate, not an infrastructure fault.
	ErrDuplicateFingerprint = errors.New("fingerprint already exists")
)
