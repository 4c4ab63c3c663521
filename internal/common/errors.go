// Package common defines shared constants and the error taxonomy used across
// texbridge layers. Callers should use errors.Is / errors.As to match these
// values; the typed errors below all match their sentinel through errors.Is.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")

	// Service-level errors.
	ErrValidation         = errors.New("validation error")
	ErrDuplicateAccount   = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrProviderResolution = errors.New("provider identity could not be resolved")
	ErrStorage            = errors.New("storage error")

	// Submission-specific errors.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

// ValidationError lists every input field that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError returns nil when fields is empty.
func NewValidationError(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// DuplicateKeyError reports which unique column rejected an insert.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return ErrDuplicateKey.Error()
	}
	return fmt.Sprintf("duplicate key: %s", e.Field)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// ProviderResolutionError wraps the reason a delegated identity could not be
// mapped to a local account.
type ProviderResolutionError struct {
	Cause error
}

func (e *ProviderResolutionError) Error() string {
	if e.Cause == nil {
		return ErrProviderResolution.Error()
	}
	return fmt.Sprintf("%s: %v", ErrProviderResolution, e.Cause)
}

func (e *ProviderResolutionError) Is(target error) bool { return target == ErrProviderResolution }

func (e *ProviderResolutionError) Unwrap() error { return e.Cause }
