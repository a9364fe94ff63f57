package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for HTTP rendering
type Kind string

const (
	KindValidation        Kind = "validation"
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

// Error is the typed error surfaced by the workflow engine, the auth gate and handlers.
type Error struct {
	Kind    Kind
	Code    string            // machine-readable reason, e.g. "already_assigned"
	Message string
	Fields  map[string]string // per-field validation messages
	Details map[string]any    // extra context rendered next to the message
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and, when set on the target, by Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels usable with errors.Is.
var (
	ErrAlreadyAssigned = &Error{Kind: KindConflict, Code: "already_assigned"}
	ErrAlreadyRated    = &Error{Kind: KindConflict, Code: "already_rated"}
	ErrEmailTaken      = &Error{Kind: KindConflict, Code: "email_taken"}
)

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_failed", Message: msg, Fields: fields}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: "unauthenticated", Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: "forbidden", Message: msg}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: what + " not found"}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps a Kind onto the status code the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidTransition:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
