// Package handler contains the HTTP layer: request parsing, invoking the
// services, and rendering the response envelope.
//
// Every response body has the same shape:
//
//	{"success": true,  "message": "...", "data": {...}}
//	{"success": false, "message": "...", "errors": {"field": "why"}}
//
// so clients branch on one boolean instead of inspecting status codes.
// Status codes still carry the HTTP semantics (400/401/404/413/500).
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rdp/drivex-backend/internal/apperror"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// writeError translates a service error into the envelope. The mapping is
// the only place HTTP status codes and domain errors meet.
//
// Anything that isn't a recognised domain error is a server fault: log the
// real error, return a generic message so internals never leak to clients.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	ok := errors.As(err, &appErr)

	switch {
	case ok && errors.Is(err, apperror.ErrValidation):
		body := envelope{Success: false, Message: appErr.Message}
		if appErr.Field != "" {
			body.Errors = map[string]string{appErr.Field: appErr.Message}
		}
		writeJSON(w, http.StatusBadRequest, body)

	case ok && errors.Is(err, apperror.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: appErr.Message})

	case ok && errors.Is(err, apperror.ErrNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: appErr.Message})

	case ok && errors.Is(err, apperror.ErrConflict):
		writeJSON(w, http.StatusConflict, envelope{Success: false, Message: appErr.Message})

	case ok && errors.Is(err, apperror.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, envelope{Success: false, Message: appErr.Message})

	case ok && errors.Is(err, apperror.ErrStorage):
		logger.Error("storage backend failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: appErr.Message})

	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Message: "An unexpected error occurred",
		})
	}
}

// decodeJSON parses a JSON request body into dst, rejecting unknown fields
// and trailing garbage.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.BadRequest("Request body is not valid JSON")
	}
	if dec.More() {
		return apperror.BadRequest("Request body must contain a single JSON object")
	}
	return nil
}
