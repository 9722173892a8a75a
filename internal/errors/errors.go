// Package errors defines the failure taxonomy shared by the create, check and
// generate pipelines. Every fatal condition is reported as an *Error carrying a
// stable code, so callers and tests can branch on the kind of failure without
// matching message text.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// IOError indicates a missing, unreadable or unwritable path
	IOError ErrorCode = "IO_ERROR"
	// ParseError indicates a source file failed to parse
	ParseError ErrorCode = "PARSE_ERROR"
	// CountMismatch indicates the renamed identifier counts of a file pair differ
	CountMismatch ErrorCode = "COUNT_MISMATCH"
	// ScopeMismatch indicates renamed identifiers sit in different scopes
	ScopeMismatch ErrorCode = "SCOPE_MISMATCH"
	// Conflict indicates two artifacts rename the same identifier differently
	Conflict ErrorCode = "CONFLICT"
	// ConfigError indicates an invalid configuration value
	ConfigError ErrorCode = "CONFIG_ERROR"
)

// Error is a classified failure.
type Error struct {
	Code    ErrorCode
	Message string
	// Path is the file the failure relates to, if any.
	Path string
	// Details holds the code specific payload, e.g. parser diagnostics.
	Details interface{}
	cause   error
}

// New creates a new Error.
func New(code ErrorCode, path, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Path:    path,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(string(e.Code))
	sb.WriteString("] ")
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// IOf wraps a filesystem failure for path.
func IOf(path string, cause error, format string, args ...interface{}) *Error {
	return New(IOError, path, fmt.Sprintf(format, args...), cause)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err's chain contains an *Error with the given code.
func Is(err error, code ErrorCode) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
