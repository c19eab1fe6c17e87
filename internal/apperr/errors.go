package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a business failure so the HTTP layer can pick a status
// without inspecting message text.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindDuplicate
	KindForbidden
	KindUnauthorized
)

// Error is a business-level failure with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a not-found failure.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Validation builds a bad-input failure.
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// Forbidden builds a policy violation.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// Unauthorized builds an authentication failure.
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

// Internal wraps an unexpected error; the original is logged server-side only.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// DuplicateAttendance reports a second registration attempt for the same
// (event, student) pair. It carries the prior timestamp and a student
// summary so staff can explain the rejection.
type DuplicateAttendance struct {
	StudentName string
	CarnetCode  string
	PriorAt     time.Time
}

func (e *DuplicateAttendance) Error() string {
	return "attendance already registered for this student in this event"
}

// KindOf extracts the Kind from any error chain; unknown errors are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var dup *DuplicateAttendance
	if errors.As(err, &dup) {
		return KindDuplicate
	}
	return KindInternal
}
