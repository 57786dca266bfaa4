// Package domainerrors provides coded errors for domain and workflow logic.
//
// Codes are a stable vocabulary. Services translate infrastructure sentinels
// into these codes at the boundary; HTTP and other transports map codes to
// their own status vocabulary without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeValidation         Code = "validation"
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeForbidden          Code = "forbidden"
	CodeUnauthorized       Code = "unauthorized"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"

	// Workflow taxonomy. Every rejected transition carries one of these.
	CodeIllegalTransition    Code = "illegal_transition"
	CodePrerequisitesNotMet  Code = "prerequisites_not_met"
	CodeReviewInProgress     Code = "review_already_in_progress"
	CodeStaleDecision        Code = "stale_decision"
	CodePersistence          Code = "persistence_failure"
)

// Error is a coded domain error with optional structured details.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Add attaches a structured detail to the error and returns it, so details can
// be chained at construction time.
func (e *Error) Add(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// Load retrieves a structured detail from the nearest coded error in the chain.
func Load(err error, key string) (any, bool) {
	var coded *Error
	if !errors.As(err, &coded) || coded.Details == nil {
		return nil, false
	}
	value, ok := coded.Details[key]
	return value, ok
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// CodeOf returns the code of the nearest coded error, or CodeInternal when the
// error carries no code.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// Is delegates to the standard library so coded errors compose with sentinels.
func Is(err, target error) bool { return errors.Is(err, target) }
