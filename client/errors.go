package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors for configuration validation.
var (
	ErrEndpointRequired = errors.New("endpoint is required")
	ErrConfigRequired   = errors.New("config is required")
)

// Errors for input validation.
var (
	ErrEmptyPath   = errors.New("path is required")
	ErrNotLoggedIn = errors.New("not logged in")
)

// APIError is an error response returned by the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}

// parseServerError turns a non-2xx response body into an APIError. Bodies
// that are not the standard error envelope still produce a usable error.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = string(body)
	}
	return apiErr
}
