package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError represents a structured error response from the labops API.
type APIError struct {
	StatusCode       int      `json:"-"`
	Code             string   `json:"code"`
	Message          string   `json:"error"`
	RequestID        string   `json:"request_id,omitempty"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if len(e.ValidationErrors) > 0 {
		msg += ": " + strings.Join(e.ValidationErrors, "; ")
	}
	if e.RequestID != "" {
		return fmt.Sprintf("labops: %d %s: %s (request_id=%s)", e.StatusCode, e.Code, msg, e.RequestID)
	}
	return fmt.Sprintf("labops: %d %s: %s", e.StatusCode, e.Code, msg)
}

func statusOf(err error) int {
	var e *APIError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsNotFound returns true if the error is a 404 not found.
func IsNotFound(err error) bool { return statusOf(err) == 404 }

// IsConflict returns true if the error is a 409 conflict (duplicate key).
func IsConflict(err error) bool { return statusOf(err) == 409 }

// IsForbidden returns true if the error is a 403, e.g. an unauthorized location.
func IsForbidden(err error) bool { return statusOf(err) == 403 }

// IsValidation returns true if the error is a 400 with field problems.
func IsValidation(err error) bool { return statusOf(err) == 400 }

// IsRateLimited returns true if the error is a 429 rate limit or login lockout.
func IsRateLimited(err error) bool { return statusOf(err) == 429 }

// parseAPIError attempts to decode a JSON error body; falls back to raw text.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = "unknown"
		apiErr.Message = string(body)
	}
	return apiErr
}
