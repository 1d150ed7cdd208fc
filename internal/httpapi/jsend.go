package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSend envelope statuses.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

type envelopeResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func success(c echo.Context, data any) error {
	return successWithStatus(c, http.StatusOK, data)
}

func successWithStatus(c echo.Context, code int, data any) error {
	return c.JSON(code, envelopeResponse{Status: statusSuccess, Data: data})
}

// fail reports a client-side problem (4xx).
func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, envelopeResponse{Status: statusFail, Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

// errorWithCode reports a server-side problem; the body repeats the code.
func errorWithCode(c echo.Context, code int, message string) error {
	return c.JSON(code, envelopeResponse{Status: statusError, Message: message, Code: code})
}

func internalError(c echo.Context, message string) error {
	return errorWithCode(c, http.StatusInternalServerError, message)
}
