// Package errors provides the structured error taxonomy shared by the portal's HTTP handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ErrorCode is a machine-distinguishable error kind.
type ErrorCode string

const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrCodeConfig       ErrorCode = "CONFIG_ERROR"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"

	ErrCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeIdentityLookupFailed   ErrorCode = "IDENTITY_LOOKUP_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error type returned across package boundaries.
// Message is safe to show a caller; Details is for server-side logs only.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches on Code so callers can compare against the sentinel kinds below.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinel kinds for errors.Is checks.
var (
	Unauthorized = &StandardError{Code: ErrCodeUnauthorized}
	Forbidden    = &StandardError{Code: ErrCodeForbidden}
	NotFound     = &StandardError{Code: ErrCodeNotFound}
	Upstream     = &StandardError{Code: ErrCodeUpstream}
	Config       = &StandardError{Code: ErrCodeConfig}
	BadRequest   = &StandardError{Code: ErrCodeBadRequest}
)

func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Unauthorized",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotLinkedError(callerID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Account not linked to a game panel user",
		Details:   fmt.Sprintf("callerId: %s", callerID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAccessDeniedError(callerID, serverID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Access denied to this server",
		Details:   fmt.Sprintf("callerId: %s, serverId: %s", callerID, serverID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUpstreamError(service string, status int, body string) *StandardError {
	return &StandardError{
		Code:       ErrCodeUpstream,
		Message:    fmt.Sprintf("Upstream %s error: %d", service, status),
		Details:    body,
		Retryable:  status >= http.StatusInternalServerError,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}
}

func NewUpstreamTransportError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstream,
		Message:   fmt.Sprintf("Upstream %s unavailable", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfigError(missing string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfig,
		Message:   "Server configuration error",
		Details:   fmt.Sprintf("missing: %s", missing),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewBadRequestError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBadRequest,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError carries per-field messages under Metadata["fieldErrors"].
func NewValidationFailedError(fieldErrors map[string]string) *StandardError {
	details := make([]string, 0, len(fieldErrors))
	for field, msg := range fieldErrors {
		details = append(details, field+": "+msg)
	}
	sort.Strings(details)
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Submission failed validation",
		Details:   strings.Join(details, "; "),
		Retryable: false,
		Metadata:  map[string]interface{}{"fieldErrors": fieldErrors},
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Failed to send notification",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewIdentityLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIdentityLookupFailed,
		Message:   "Failed to resolve account link",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Normalize wraps any error into a StandardError, preserving existing ones.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Internal server error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatus maps an error code to the status returned to HTTP callers.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeBadRequest, ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory groups codes for metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeUnauthorized, ErrCodeForbidden:
		return "ACCESS"
	case ErrCodeBadRequest, ErrCodeValidationFailed:
		return "VALIDATION"
	case ErrCodeUpstream, ErrCodeNotificationSendFailed:
		return "UPSTREAM"
	case ErrCodeConfig:
		return "CONFIG"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	default:
		return "OTHER"
	}
}
