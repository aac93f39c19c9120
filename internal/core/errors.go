// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// SchemaErrorf wraps a formatted cause into ErrSchema.
func SchemaErrorf(format string, args ...any) *Error {
	return WrapError(ErrSchema, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Input errors
	ErrSchema = &Error{Code: "SCHEMA", Message: "input series does not match the required schema"}
	ErrNoData = &Error{Code: "NO_DATA", Message: "no data available"}

	// Lookup errors
	ErrInstrumentNotFound = &Error{Code: "INSTRUMENT_NOT_FOUND", Message: "instrument not found"}
	ErrStrategyNotFound   = &Error{Code: "STRATEGY_NOT_FOUND", Message: "strategy not found"}
	ErrRunNotFound        = &Error{Code: "RUN_NOT_FOUND", Message: "run not found"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
