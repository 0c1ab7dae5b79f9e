// Package errors provides structured error types for bulkstat.
//
// Every failure surfaced by the library carries a machine-readable [Code] so
// callers can decide whether to retry, report or abort without string
// matching:
//
//   - CONFIG_ERROR: bad protocol, parameter shape or configuration value.
//     Caller's fault, never retried.
//   - STORAGE_ERROR: the cache backend is unusable. Surfaced immediately.
//   - FETCH_ERROR: transport failure or non-success status. The caller may
//     retry with backoff; this library does not retry on its own.
//   - PARSE_ERROR: malformed remote content. Retrying only helps when
//     combined with a forced refresh.
//   - SCHEMA_ERROR / NOT_LOADED: misuse of the metabase index.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfig, "protocol %q not supported", p)
//	if errors.Is(err, errors.ErrCodeConfig) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStorage, origErr, "create cache dir %s", dir)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	ErrCodeConfig    Code = "CONFIG_ERROR"
	ErrCodeStorage   Code = "STORAGE_ERROR"
	ErrCodeFetch     Code = "FETCH_ERROR"
	ErrCodeTimeout   Code = "TIMEOUT"
	ErrCodeParse     Code = "PARSE_ERROR"
	ErrCodeSchema    Code = "SCHEMA_ERROR"
	ErrCodeNotLoaded Code = "NOT_LOADED"

	ErrCodeNotFound    Code = "NOT_FOUND"
	ErrCodeInvalidName Code = "INVALID_NAME"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or *FetchError with a
// matching code.
func Is(err error, code Code) bool {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			if e.Code == code {
				return true
			}
		case *FetchError:
			if e.Code() == code || code == ErrCodeFetch {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if no structured error is found in the chain.
func GetCode(err error) Code {
	var fe *FetchError
	var e *Error
	switch {
	case errors.As(err, &e):
		return e.Code
	case errors.As(err, &fe):
		return fe.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// FetchError reports a failed transfer. Status holds the HTTP status code
// when the server answered, or 0 for connection-level failures.
type FetchError struct {
	URL     string
	Status  int
	Timeout bool
	Cause   error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timed out fetching %s", ErrCodeFetch, e.URL)
	case e.Status != 0 && e.Cause != nil:
		return fmt.Sprintf("%s: %s: status %d: %v", ErrCodeFetch, e.URL, e.Status, e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s: status %d", ErrCodeFetch, e.URL, e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", ErrCodeFetch, e.URL, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrCodeFetch, e.URL)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error { return e.Cause }

// Code returns FETCH_ERROR, or TIMEOUT when the transfer hit its deadline.
// Timeouts are still fetch failures; [Is] matches both codes for them.
func (e *FetchError) Code() Code {
	if e.Timeout {
		return ErrCodeTimeout
	}
	return ErrCodeFetch
}

// StatusOf returns the HTTP status carried by a FetchError in err's chain,
// or 0 if there is none.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// IsFetch reports whether err is a fetch failure of any kind, including
// timeouts.
func IsFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
