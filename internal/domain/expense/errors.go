// Package expense holds the pure business rules of travel expenses and expense sheets:
// computed totals, state derivation, accounting dates and tax splitting.
package expense

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a data invariant is violated
	ErrValidation = errors.New("validation error")

	// ErrUser is returned when a business rule forbids the operation
	ErrUser = errors.New("user error")

	// ErrAccess is returned when the caller lacks the required group
	ErrAccess = errors.New("access denied")

	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("not found")
)

// Error carries a human-readable message and one of the sentinel kinds above
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.kind
}

// Kind returns the sentinel error this error belongs to
func (e *Error) Kind() error {
	return e.kind
}

// Validationf builds a validation error
func Validationf(format string, args ...interface{}) error {
	return &Error{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// Userf builds a user error
func Userf(format string, args ...interface{}) error {
	return &Error{kind: ErrUser, msg: fmt.Sprintf(format, args...)}
}

// Accessf builds an access error
func Accessf(format string, args ...interface{}) error {
	return &Error{kind: ErrAccess, msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not found error
func NotFoundf(format string, args ...interface{}) error {
	return &Error{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}
