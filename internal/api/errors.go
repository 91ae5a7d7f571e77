package api

import (
	"errors"
	"net/http"

	"github.com/p-arndt/codebox/internal/session"
	"github.com/p-arndt/codebox/internal/tools"
)

// Error codes returned in API responses
const (
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeProvisioningFailed = "PROVISIONING_FAILED"
	ErrCodeExecutionTimeout   = "EXECUTION_TIMEOUT"
	ErrCodeInstallJobNotFound = "INSTALL_JOB_NOT_FOUND"
	ErrCodeUnknownTool        = "UNKNOWN_TOOL"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// APIError represents a structured API error response
type APIError struct {
	Code    string         `json:"error_code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeAPIError writes a structured error response with appropriate HTTP status
func writeAPIError(w http.ResponseWriter, err error) {
	apiErr := APIError{Message: err.Error()}
	var statusCode int

	var timeoutErr *session.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		apiErr.Code = ErrCodeExecutionTimeout
		apiErr.Details = map[string]any{
			"timeout_ms": timeoutErr.Timeout.Milliseconds(),
			"stdout":     timeoutErr.Stdout,
			"stderr":     timeoutErr.Stderr,
		}
		statusCode = http.StatusGatewayTimeout

	case errors.Is(err, session.ErrTimeout):
		apiErr.Code = ErrCodeExecutionTimeout
		statusCode = http.StatusGatewayTimeout

	case errors.Is(err, session.ErrNotFound):
		apiErr.Code = ErrCodeSessionNotFound
		statusCode = http.StatusNotFound

	case errors.Is(err, session.ErrInstallJobNotFound):
		apiErr.Code = ErrCodeInstallJobNotFound
		statusCode = http.StatusNotFound

	case errors.Is(err, session.ErrProvisioning):
		apiErr.Code = ErrCodeProvisioningFailed
		statusCode = http.StatusServiceUnavailable

	case errors.Is(err, tools.ErrUnknownTool):
		apiErr.Code = ErrCodeUnknownTool
		statusCode = http.StatusNotFound

	case errors.Is(err, tools.ErrInvalidArguments), errors.Is(err, session.ErrInvalidPackage):
		apiErr.Code = ErrCodeInvalidRequest
		statusCode = http.StatusBadRequest

	default:
		apiErr.Code = ErrCodeInternalError
		statusCode = http.StatusInternalServerError
	}

	writeJSON(w, statusCode, apiErr)
}

// writeValidationError writes a 400 Bad Request with validation details
func writeValidationError(w http.ResponseWriter, message string, details map[string]any) {
	writeJSON(w, http.StatusBadRequest, APIError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
		Details: details,
	})
}

func writeRateLimitedError(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	writeJSON(w, http.StatusTooManyRequests, APIError{
		Code:    ErrCodeRateLimited,
		Message: "too many requests",
	})
}
