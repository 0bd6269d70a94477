package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Category sentinels. Every specific error below wraps exactly one of them so
// callers can branch on the class of failure with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

var (
	ErrBookNotFound = fmt.Errorf("book %w", ErrNotFound)
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	ErrLoanNotFound = fmt.Errorf("loan %w", ErrNotFound)
)

var (
	ErrDuplicateISBN       = &conflictError{msg: "a book with the same isbn already exists"}
	ErrDuplicateEmail      = &conflictError{msg: "a user with the same email already exists"}
	ErrBookUnavailable     = &conflictError{msg: "book not available"}
	ErrLoanAlreadyReturned = &conflictError{msg: "loan already returned"}
	ErrBookOnLoan          = &conflictError{msg: "book currently on loan"}
	ErrUserHasLoans        = &conflictError{msg: "user has loans registered"}
	ErrIdempotencyKeyBusy  = &conflictError{msg: "a request with the same idempotency key is in progress"}
)

// conflictError keeps a readable message while still matching ErrConflict.
type conflictError struct {
	msg string
}

func (e *conflictError) Error() string { return e.msg }

func (e *conflictError) Unwrap() error { return ErrConflict }

// FieldViolation describes one rejected input field.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is returned before any store access when input is malformed.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Field+" "+v.Reason)
	}
	return strings.Join(msgs, "; ")
}
