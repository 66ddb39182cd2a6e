// Package domainerrors defines coded errors that cross layer boundaries.
//
// Services construct these (or wrap store sentinels into them) so that the
// transport layer can map a Code to an HTTP status in exactly one place.
// Codes are a closed set; adding one means updating the HTTP translation
// table and nothing else.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport translation and policy checks.
type Code string

const (
	// CodeUnauthenticated means no valid principal accompanied the request.
	CodeUnauthenticated Code = "unauthenticated"
	// CodeForbidden means the access policy denied the operation.
	CodeForbidden Code = "forbidden"
	// CodeNotFound means the resource does not exist. Kept distinct from
	// CodeForbidden unless existence hiding is enabled on the policy engine.
	CodeNotFound Code = "not_found"
	// CodeValidation means a required field is missing or malformed.
	CodeValidation Code = "validation"
	// CodeConflict means a uniqueness or optimistic-lock violation.
	CodeConflict Code = "conflict"
	// CodeInternal means a storage or infrastructure failure.
	CodeInternal Code = "internal"
	// CodeTimeout means the operation exceeded its deadline.
	CodeTimeout Code = "timeout"
)

// Error is a coded domain error. Message is safe to show to callers; the
// wrapped cause (if any) is for logs only.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and caller-safe message to an underlying error.
// Returns nil when err is nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err is not a
// domain error. Returns an empty code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
