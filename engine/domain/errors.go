package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for boundary validation failures.
var (
	ErrMissingID          = errors.New("missing id")
	ErrMissingTitle       = errors.New("missing title")
	ErrMissingDescription = errors.New("missing description")
	ErrNoOutcomes         = errors.New("no learning outcomes")
	ErrNegativeDuration   = errors.New("negative duration")
	ErrBadTopK            = errors.New("top_k out of range")
	ErrBadSimilarity      = errors.New("similarity threshold out of range")
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
