package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Handlers map these to HTTP statuses with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

// Scope guard denials. Both are forbidden, but callers can tell them apart.
var (
	ErrNoCompanyAssigned    = &Error{Kind: ErrForbidden, Message: "no company assigned"}
	ErrUnauthorizedLocation = &Error{Kind: ErrForbidden, Message: "unauthorized location"}
)

// Error is a categorized error carrying a user-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is reports whether target is the error's category.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Conflictf returns a conflict error with a formatted message.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf returns a not-found error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbiddenf returns a forbidden error with a formatted message.
func Forbiddenf(format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

// ValidationError collects field-level problems found in a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// Is makes ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add appends a formatted problem.
func (e *ValidationError) Add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Err returns nil when no problems were recorded.
func (e *ValidationError) Err() error {
	if len(e.Problems) == 0 {
		return nil
	}

	return e
}

// ErrFieldTooLong formats a length violation.
func ErrFieldTooLong(label string, maxLen int) string {
	return fmt.Sprintf("%s must be at most %d characters", label, maxLen)
}
