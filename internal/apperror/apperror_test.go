package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindsUnwrap(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{NotFound("file", "abc"), ErrNotFound},
		{ValidationFailed("email", "bad email"), ErrValidation},
		{BadRequest("nope"), ErrValidation},
		{Unauthorized("who are you"), ErrUnauthorized},
		{Conflict("file", "abc"), ErrConflict},
		{TooLarge("too big"), ErrTooLarge},
		{Storage("store down"), ErrStorage},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.kind) {
			t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("fetching user: %w", NotFound("user", "42"))

	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("kind lost through fmt.Errorf wrapping")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As failed through wrapping")
	}
	if appErr.Message != "user not found with id 42" {
		t.Errorf("Message = %q", appErr.Message)
	}
}

func TestValidationFailed_CarriesField(t *testing.T) {
	err := ValidationFailed("password", "too short")

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As failed")
	}
	if appErr.Field != "password" {
		t.Errorf("Field = %q", appErr.Field)
	}
	if err.Error() != "too short" {
		t.Errorf("Error() = %q", err.Error())
	}
}
