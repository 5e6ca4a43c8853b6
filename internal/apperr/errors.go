// Package apperr defines the sentinel errors shared across NoteMesh services.
package apperr

import "errors"

var (
	// ErrNotFound covers both "does not exist" and "not visible to this
	// user"; the two are deliberately indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned for write attempts on notes the user can
	// read but not edit.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation marks malformed input such as an empty tag filter entry.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable marks a failure of the authoritative store. It is the
	// only error class a search request is allowed to surface.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrAlreadyExists marks a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
)
