package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ameyrk/skystore"
	skystorehttp "github.com/ameyrk/skystore/http"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"invalid credentials", skystore.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"unauthorized", skystore.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"token expired", skystore.ErrTokenExpired, http.StatusUnauthorized, "unauthorized"},
		{"token malformed", skystore.ErrTokenMalformed, http.StatusUnauthorized, "unauthorized"},
		{"token signature", skystore.ErrTokenSignature, http.StatusUnauthorized, "unauthorized"},
		{"not found", skystore.ErrNotFound, http.StatusNotFound, "not_found"},
		{"unknown provider", skystore.ErrUnknownProvider, http.StatusNotFound, "unknown_provider"},
		{"already exists", skystore.ErrAlreadyExists, http.StatusConflict, "already_exists"},
		{"invalid input", skystore.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"unsupported operation", skystore.ErrUnsupportedOperation, http.StatusBadRequest, "invalid_input"},
		{"quota exceeded", skystore.ErrQuotaExceeded, http.StatusInsufficientStorage, "quota_exceeded"},
		{"backend unavailable", skystore.ErrBackendUnavailable, http.StatusBadGateway, "backend_unavailable"},
		{"deadline exceeded", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"internal", skystore.ErrInternal, http.StatusInternalServerError, "internal_error"},
		{"unclassified", errors.New("something odd"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			skystorehttp.HandleError(rec, fmt.Errorf("operation failed: %w", tt.err))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp skystorehttp.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantErr, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

// Responses never echo the underlying error text; detail stays in the log.
func TestHandleError_NoDetailLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	skystorehttp.HandleError(rec, fmt.Errorf("pg: connection to 10.0.0.5 refused: %w", skystore.ErrNotFound))

	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := skystorehttp.WriteJSON(rec, http.StatusCreated, map[string]string{"hello": "world"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"hello":"world"}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	skystorehttp.WriteError(rec, http.StatusTeapot, "teapot", "I'm a teapot")

	assert.Equal(t, http.StatusTeapot, rec.Code)

	var resp skystorehttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "teapot", resp.Error)
	assert.Equal(t, "I'm a teapot", resp.Message)
}
