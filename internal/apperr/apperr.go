package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure. Every error surfaced by the engine
// resolves to exactly one kind plus a human-readable message.
type Kind int

const (
	// Unknown is the zero kind, used for errors that did not come from this package.
	Unknown Kind = iota
	// Validation means the input was malformed or missing a required field.
	Validation
	// Permission means the acting user is not authorized for the action.
	Permission
	// NotFound means a referenced conversation, message, story or user is absent.
	NotFound
	// Upload means the external upload collaborator failed.
	Upload
	// Store means a durable read or write failed.
	Store
)

// String returns the kind's name
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Permission:
		return "permission"
	case NotFound:
		return "not_found"
	case Upload:
		return "upload"
	case Store:
		return "store"
	default:
		return "unknown"
	}
}

// Error is a classified engine error. It may wrap an underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf creates a Validation error
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: Validation, Msg: fmt.Sprintf(format, args...)}
}

// Permissionf creates a Permission error
func Permissionf(format string, args ...any) *Error {
	return &Error{Kind: Permission, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf creates a NotFound error
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

// Uploadf creates an Upload error wrapping the cause
func Uploadf(err error, format string, args ...any) *Error {
	return &Error{Kind: Upload, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Storef creates a Store error wrapping the cause
func Storef(err error, format string, args ...any) *Error {
	return &Error{Kind: Store, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain; Unknown if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether the error chain contains the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
