package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the caller supplied invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration indicates missing or broken tenant configuration.
	ErrConfiguration = errors.New("configuration error")
)
