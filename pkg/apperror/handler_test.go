package apperror

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invokeHandler(t *testing.T, method string, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(slog.Default())(err, c)

	if rec.Body.Len() == 0 {
		return rec, nil
	}
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok, "response carries the error envelope")
	return rec, errObj
}

func TestHTTPErrorHandlerAppError(t *testing.T) {
	rec, errObj := invokeHandler(t, http.MethodGet, NewBadRequest("invalid input"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", errObj["code"])
	assert.Equal(t, "invalid input", errObj["message"])
	assert.NotContains(t, errObj, "details")
}

func TestHTTPErrorHandlerValidationDetails(t *testing.T) {
	err := NewValidation(map[string]any{"name": "required"})
	rec, errObj := invokeHandler(t, http.MethodGet, err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", errObj["code"])
	details, ok := errObj["details"].(map[string]any)
	require.True(t, ok, "field errors reach the client")
	assert.Equal(t, "required", details["name"])
}

func TestHTTPErrorHandlerEchoError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"unauthorized", http.StatusUnauthorized, "unauthorized"},
		{"forbidden", http.StatusForbidden, "forbidden"},
		{"not found", http.StatusNotFound, "not_found"},
		{"bad request", http.StatusBadRequest, "bad_request"},
		{"conflict", http.StatusConflict, "conflict"},
		{"unprocessable", http.StatusUnprocessableEntity, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, errObj := invokeHandler(t, http.MethodGet,
				echo.NewHTTPError(tt.status, "test message"))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantCode, errObj["code"])
			assert.Equal(t, "test message", errObj["message"])
		})
	}
}

func TestHTTPErrorHandlerStructuredMessage(t *testing.T) {
	structured := map[string]any{
		"error": map[string]any{
			"code":    "insufficient_scope",
			"message": "Missing required scope: admin",
		},
	}
	rec, errObj := invokeHandler(t, http.MethodGet,
		echo.NewHTTPError(http.StatusForbidden, structured))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient_scope", errObj["code"])
	assert.Equal(t, "Missing required scope: admin", errObj["message"])
}

func TestHTTPErrorHandlerUnknownError(t *testing.T) {
	rec, errObj := invokeHandler(t, http.MethodGet, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", errObj["code"])
}

func TestHTTPErrorHandlerHeadRequest(t *testing.T) {
	rec, _ := invokeHandler(t, http.MethodHead, NewNotFound("node", "123"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len(), "HEAD responses carry no body")
}

func TestHTTPErrorHandlerCommittedResponse(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	c.Response().WriteHeader(http.StatusOK)
	_, _ = c.Response().Write([]byte("already written"))

	HTTPErrorHandler(slog.Default())(NewBadRequest("too late"), c)

	assert.Equal(t, http.StatusOK, rec.Code, "committed responses are left alone")
	assert.Equal(t, "already written", rec.Body.String())
}
