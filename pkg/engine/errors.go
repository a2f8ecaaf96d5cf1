package engine

import (
	"errors"
	"fmt"
)

// Code identifies one failure class of the engine's closed error taxonomy.
// Codes are surfaced verbatim across every transport.
type Code string

// The closed set of engine error codes.
const (
	CodeRunNotFound      Code = "RUN_NOT_FOUND"
	CodeProcessNotFound  Code = "PROCESS_NOT_FOUND"
	CodeRevisionConflict Code = "REVISION_CONFLICT"
	CodeForbidden        Code = "FORBIDDEN"
	CodeGuardFailed      Code = "GUARD_FAILED"
	CodeInvalidEvent     Code = "INVALID_EVENT"
	CodeInvalidPayload   Code = "INVALID_PAYLOAD"
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Error is the structured error crossing the engine boundary: a taxonomy
// code, a human message, and optional structured details (current and
// expected revisions, guard names, per-index validation errors).
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an engine error.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches one structured detail, returning the error for
// chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// ValidationIssue is one entry of an INVALID_PAYLOAD's validation_errors
// detail. Path is a JSON Pointer into the request.
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// AsEngineError extracts the structured error, wrapping anything
// unexpected as INTERNAL_ERROR. The underlying message is preserved here
// and redacted at the transport boundary.
func AsEngineError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(CodeInternal, "internal error: %v", err)
}

// CodeOf returns the taxonomy code of err, or CodeInternal for unexpected
// errors.
func CodeOf(err error) Code {
	return AsEngineError(err).Code
}
