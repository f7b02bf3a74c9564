package account

import (
	"errors"
	"fmt"
)

// Outcome kinds. Every error returned by Service matches exactly one of them
// with errors.Is.
var (
	// ErrInvalidCredentials covers both "no such user" and "wrong password".
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrValidation is returned when a username or password fails its format rule.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyExists is returned when the username is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized is returned when a device token does not match an active device.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal wraps store, hashing and randomness failures.
	ErrInternal = errors.New("internal error")
)

// Fields reported by validation failures.
const (
	FieldUsername = "username"
	FieldPassword = "password"
)

// Error is the typed outcome error returned by Service.
// Err carries the underlying cause for logs; it is never shown to clients.
type Error struct {
	Op    string
	Kind  error
	Field string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the outcome kind of err, or ErrInternal for foreign errors.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	return ErrInternal
}

// FieldOf returns the offending field of a validation error, or "".
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

func fail(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

func invalidField(op, field string, cause error) error {
	return &Error{Op: op, Kind: ErrValidation, Field: field, Err: cause}
}

func internal(op string, cause error) error {
	return &Error{Op: op, Kind: ErrInternal, Err: cause}
}
