// Package apperr defines the error taxonomy surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds of application errors. Every *Error unwraps to exactly one of these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrBadRequest        = errors.New("bad request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInternal          = errors.New("internal error")
)

// Error codes rendered in the response envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeInvalidReference   = "INVALID_REFERENCE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is an error with an HTTP status and a stable code.
type Error struct {
	Kind    error
	Status  int
	Code    string
	Message string
	Details map[string][]string
	// Cause is the underlying error for internal failures; never rendered.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Validation reports malformed or missing input, keyed by field.
func Validation(details map[string][]string) *Error {
	return &Error{Kind: ErrValidation, Status: http.StatusBadRequest, Code: CodeValidation, Message: "Validation failed", Details: details}
}

// Invalid reports a single invalid field.
func Invalid(field, problem string) *Error {
	return Validation(map[string][]string{field: {problem}})
}

// BadRequest reports a request that is well formed but cannot be honoured.
func BadRequest(message string) *Error {
	return &Error{Kind: ErrBadRequest, Status: http.StatusBadRequest, Code: CodeBadRequest, Message: message}
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Unauthorized"
	}
	return &Error{Kind: ErrUnauthorized, Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// InvalidCredentials reports a failed login without revealing which part was wrong.
func InvalidCredentials() *Error {
	return &Error{Kind: ErrUnauthorized, Status: http.StatusUnauthorized, Code: CodeInvalidCredentials, Message: "Invalid credentials"}
}

// Forbidden reports an authenticated caller lacking role or ownership.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Forbidden"
	}
	return &Error{Kind: ErrForbidden, Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

// NotFound reports a referenced entity that does not exist.
func NotFound(resource string) *Error {
	return &Error{Kind: ErrNotFound, Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

// Conflict reports a uniqueness or state conflict.
func Conflict(message string) *Error {
	return &Error{Kind: ErrConflict, Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

// InvalidReference reports a foreign key pointing at nothing.
func InvalidReference() *Error {
	return &Error{Kind: ErrBadRequest, Status: http.StatusBadRequest, Code: CodeInvalidReference, Message: "Invalid reference to related resource"}
}

// InvalidTransition reports an illegal task status change.
func InvalidTransition(from, to string) *Error {
	return &Error{
		Kind:    ErrInvalidTransition,
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("Invalid status transition from %s to %s", from, to),
	}
}

// Internal wraps an unexpected failure. The cause is logged, never shown.
func Internal(cause error) *Error {
	return &Error{Kind: ErrInternal, Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error", Cause: cause}
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
