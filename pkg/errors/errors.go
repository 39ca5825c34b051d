package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError provides a structured error shared by the dev backend responses and the
// client-side REST failures. Payload keeps the decoded server body so callers can
// render whatever the backend sent.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Payload    any    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrUnavailable = &AppError{
		Code:       "UNAVAILABLE",
		Message:    "Service unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}

// FromResponse builds the error returned to callers when a REST call fails with a
// non-2xx status. The decoded body becomes Payload; when the body carries no usable
// message the fallback is used.
func FromResponse(statusCode int, body []byte, fallback string) *AppError {
	appErr := &AppError{
		Code:       codeForStatus(statusCode),
		Message:    fallback,
		StatusCode: statusCode,
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return appErr
	}

	var payload any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		appErr.Payload = trimmed
		return appErr
	}
	appErr.Payload = payload

	if msg := messageFromPayload(payload); msg != "" {
		appErr.Message = msg
	}
	return appErr
}

// Unreachable reports a transport-level failure where no response was received.
func Unreachable(err error, fallback string) *AppError {
	return &AppError{
		Code:       ErrUnavailable.Code,
		Message:    fallback,
		StatusCode: 0,
		Internal:   err,
	}
}

func messageFromPayload(payload any) string {
	switch v := payload.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range []string{"detail", "message", "error"} {
			switch inner := v[key].(type) {
			case string:
				if s := strings.TrimSpace(inner); s != "" {
					return s
				}
			case map[string]any:
				if s, ok := inner["message"].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest.Code
	case http.StatusUnauthorized:
		return ErrUnauthorized.Code
	case http.StatusForbidden:
		return ErrForbidden.Code
	case http.StatusNotFound:
		return ErrNotFound.Code
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrUnavailable.Code
	}
	if status >= 500 {
		return ErrInternalServer.Code
	}
	return fmt.Sprintf("HTTP_%d", status)
}
