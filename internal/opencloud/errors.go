package opencloud

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
)

// ErrorCode classifies an Open Cloud call failure.
type ErrorCode string

const (
	// ErrCodeTransport indicates the request never produced a response.
	ErrCodeTransport ErrorCode = "TRANSPORT"
	// ErrCodeStatus indicates a non-2xx response.
	ErrCodeStatus ErrorCode = "STATUS"
	// ErrCodeDecode indicates a 2xx response whose body could not be decoded.
	ErrCodeDecode ErrorCode = "DECODE"
)

// APIError represents a failed Open Cloud call.
type APIError struct {
	Code       ErrorCode
	Op         string
	Method     string
	URL        string
	StatusCode int
	// Message is the service's own error text, when the body carried one.
	Message   string
	RequestID string
	Cause     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch e.Code {
	case ErrCodeStatus:
		msg := fmt.Sprintf("%s failed with status %d (%s)", e.Op, e.StatusCode, fasthttp.StatusMessage(e.StatusCode))
		if e.Message != "" {
			msg += ": " + e.Message
		}
		return msg
	case ErrCodeDecode:
		return fmt.Sprintf("%s: failed to decode response: %v", e.Op, e.Cause)
	default:
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.URL, e.Cause)
	}
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// errorMessagePaths lists where Open Cloud puts a human readable message.
var errorMessagePaths = []string{
	"message",
	"error.message",
	"errors.0.message",
	"errorMessage",
}

// sniffMessage extracts the service's error message from a response body.
func sniffMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, p := range errorMessagePaths {
		if r := gjson.GetBytes(body, p); r.Exists() && r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

func newStatusError(op, method, url, requestID string, status int, body []byte) *APIError {
	return &APIError{
		Code:       ErrCodeStatus,
		Op:         op,
		Method:     method,
		URL:        url,
		StatusCode: status,
		Message:    sniffMessage(body),
		RequestID:  requestID,
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsStatusError checks if the error is a non-2xx response.
func IsStatusError(err error) bool {
	return hasCode(err, ErrCodeStatus)
}

// IsTransportError checks if the error is a transport failure.
func IsTransportError(err error) bool {
	return hasCode(err, ErrCodeTransport)
}

// IsDecodeError checks if the error is a response decode failure.
func IsDecodeError(err error) bool {
	return hasCode(err, ErrCodeDecode)
}

func hasCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
