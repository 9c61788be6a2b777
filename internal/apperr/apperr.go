// Package apperr defines the typed error taxonomy shared by the query and
// mutation engines. Every business failure carries a stable machine code and a
// human message; unexpected store or provider failures are wrapped as Internal.
package apperr

import "fmt"

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindBadRequest Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindInternal
)

// String implements fmt.Stringer for log output.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "BAD_REQUEST"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindForbidden:
		return "FORBIDDEN"
	default:
		return "INTERNAL"
	}
}

// Error is the typed error returned across the core boundary.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Code, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// Is matches two apperr errors by code, so sentinel comparisons work through
// errors.Is without sharing pointer identity.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

// BadRequest builds a caller-error with a stable machine code.
func BadRequest(code, message string) *Error {
	return &Error{Kind: KindBadRequest, Code: code, Message: message}
}

// NotFound builds a missing-entity error.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Forbidden builds a policy-denial error.
func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

// Conflict builds a duplicate-entity error.
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Internal wraps an unexpected failure. The cause is preserved for logging but
// never exposed to callers.
func Internal(cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: "An unexpected error occurred on the server. Please try again later.",
		cause:   cause,
	}
}

// InternalCode wraps an unexpected failure under a specific machine code.
func InternalCode(code, message string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: message, cause: cause}
}
