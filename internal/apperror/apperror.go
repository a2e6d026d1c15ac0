// Package apperror defines the tagged error kinds returned by the service
// layer. Handlers map each kind to an HTTP status with errors.Is; the kinds
// themselves know nothing about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrTooLarge     = errors.New("payload too large")
	ErrStorage      = errors.New("file storage error")
)

type AppError struct {
	Err     error  // sentinel kind (one of the vars above)
	Message string // human-readable error message
	Field   string // optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// BadRequest is a validation-kind error with no field attached. Used for
// business-rule failures (duplicate email, restoring an active file, wrong
// old password) that map to 400 with a single message.
func BadRequest(message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
	}
}

// Unauthorized covers failed logins and missing/invalid session tokens.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

func TooLarge(message string) *AppError {
	return &AppError{
		Err:     ErrTooLarge,
		Message: message,
	}
}

// Storage wraps an object-store failure. The cause (HTTP status, body
// excerpt) stays in the log; clients only see a generic message.
func Storage(message string) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: message,
	}
}
