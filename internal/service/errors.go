package service

import (
	"errors"
	"fmt"
)

// Error kinds reported by DocumentService. Use errors.Is to classify.
var (
	// ErrValidation marks malformed caller input. Not retryable.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a reference to an absent document.
	ErrNotFound = errors.New("document not found")
	// ErrStoreUnavailable marks a transient store failure. Safe to retry.
	ErrStoreUnavailable = errors.New("document store unavailable")
)

var (
	ErrIDRequired    = fmt.Errorf("%w: id is required", ErrValidation)
	ErrTitleRequired = fmt.Errorf("%w: title is required", ErrValidation)
)
