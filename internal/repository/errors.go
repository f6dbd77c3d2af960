package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create a user with an existing email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicatePhone is returned when trying to create a user with an existing phone number
	ErrDuplicatePhone = errors.New("user with this phone number already exists")

	// ErrEmptyPatch is returned when an update contains no fields to change
	ErrEmptyPatch = errors.New("update contains no fields")
)
