// Package errors provides error types for the analyzer and validator.
//
// The analysis pipeline itself never fails on malformed traffic; it degrades
// to "unknown" or skips the offending input. These types cover the places
// where real errors exist: catalog storage, recipe authoring, and the
// network probes issued by the validator.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Network represents network-related errors (DNS, connection).
	Network
	// Timeout represents timeout errors.
	Timeout
	// Auth represents authentication/authorization errors (401, 403).
	Auth
	// NotFound represents 404 errors.
	NotFound
	// ServerError represents 5xx errors.
	ServerError
	// ClientError represents 4xx errors (except 401, 403, 404).
	ClientError
	// Parse represents parsing errors (HAR, JSON, recipes).
	Parse
	// Store represents catalog persistence errors.
	Store
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Auth:
		return "auth"
	case NotFound:
		return "not_found"
	case ServerError:
		return "server_error"
	case ClientError:
		return "client_error"
	case Parse:
		return "parse"
	case Store:
		return "store"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// AnalysisError represents a categorized analyzer error.
type AnalysisError struct {
	Type       ErrorType
	Subject    string // URL, service id, or file the operation touched
	Operation  string
	Message    string
	Cause      error
	StatusCode int
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.Subject, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.Subject, e.Message)
}

// Unwrap returns the underlying error.
func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target.
func (e *AnalysisError) Is(target error) bool {
	t, ok := target.(*AnalysisError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a new AnalysisError.
func New(errType ErrorType, subject, operation, message string, cause error) *AnalysisError {
	return &AnalysisError{
		Type:      errType,
		Subject:   subject,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewParseError creates a parse error.
func NewParseError(subject, operation string, cause error) *AnalysisError {
	return New(Parse, subject, operation, "parsing failed", cause)
}

// NewStoreError creates a catalog persistence error.
func NewStoreError(subject, operation string, cause error) *AnalysisError {
	return New(Store, subject, operation, "store operation failed", cause)
}

// NewNetworkError creates a network error.
func NewNetworkError(subject, operation string, cause error) *AnalysisError {
	return New(Network, subject, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(subject, operation string, cause error) *AnalysisError {
	return New(Timeout, subject, operation, "request timed out", cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(subject, operation string) *AnalysisError {
	return New(Cancelled, subject, operation, "operation cancelled", nil)
}

// Categorize determines the error type from a generic error.
func Categorize(err error, subject string) *AnalysisError {
	if err == nil {
		return nil
	}

	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(subject, "request")
	}

	if isTimeout(err) {
		return NewTimeoutError(subject, "request", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(subject, "request", err)
	}

	return New(Unknown, subject, "request", err.Error(), err)
}

// CategorizeHTTPStatus creates an error from an HTTP status code.
// Returns nil for statuses that are not errors.
func CategorizeHTTPStatus(statusCode int, subject string) *AnalysisError {
	switch {
	case statusCode == 401 || statusCode == 403:
		e := New(Auth, subject, "request", fmt.Sprintf("access denied (%d)", statusCode), nil)
		e.StatusCode = statusCode
		return e
	case statusCode == 404:
		e := New(NotFound, subject, "request", "endpoint not found", nil)
		e.StatusCode = statusCode
		return e
	case statusCode >= 500:
		e := New(ServerError, subject, "request", fmt.Sprintf("server returned %d", statusCode), nil)
		e.StatusCode = statusCode
		return e
	case statusCode >= 400:
		e := New(ClientError, subject, "request", fmt.Sprintf("client error %d", statusCode), nil)
		e.StatusCode = statusCode
		return e
	default:
		return nil
	}
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp")
}

// IsAuthError checks if an error is authentication-related.
func IsAuthError(err error) bool {
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr.Type == Auth
	}
	return false
}

// GetStatusCode extracts the status code from an error.
func GetStatusCode(err error) int {
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr.StatusCode
	}
	return 0
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr.Type
	}
	return Unknown
}
