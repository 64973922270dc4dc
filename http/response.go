package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ameyrk/skystore"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// handleError logs the precise failure and writes the response mapped from
// the shared error taxonomy. Internal detail stays server-side.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	h.config.Logger.Error("request error",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()),
		"error", err,
	)

	HandleError(w, err)
}

// HandleError writes the error response for a taxonomy error. Anything
// outside the taxonomy is reported as an internal error.
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, skystore.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, skystore.ErrUnauthorized),
		errors.Is(err, skystore.ErrTokenMalformed),
		errors.Is(err, skystore.ErrTokenExpired),
		errors.Is(err, skystore.ErrTokenSignature):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
	case errors.Is(err, skystore.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, skystore.ErrUnknownProvider):
		WriteError(w, http.StatusNotFound, "unknown_provider", "Unknown storage provider")
	case errors.Is(err, skystore.ErrAlreadyExists):
		WriteError(w, http.StatusConflict, "already_exists", "Resource already exists")
	case errors.Is(err, skystore.ErrInvalidInput),
		errors.Is(err, skystore.ErrUnsupportedOperation):
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid request")
	case errors.Is(err, skystore.ErrQuotaExceeded):
		WriteError(w, http.StatusInsufficientStorage, "quota_exceeded", "Storage quota exceeded")
	case errors.Is(err, skystore.ErrBackendUnavailable):
		WriteError(w, http.StatusBadGateway, "backend_unavailable", "Storage backend unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "timeout", "Request timed out")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
