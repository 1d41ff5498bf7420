package core

import "github.com/pkg/errors"

// ErrForbidden is returned by services when the actor lacks the rights for an operation.
var ErrForbidden = errors.New("permission denied")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldValidationError is a shortcut for a ValidationError on a single field.
func NewFieldValidationError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a requested object does not exist.
// Packages declare one sentinel each, eg. `ErrNotFound = core.NewNotFoundError("user")`.
type NotFoundError struct {
	Object string
}

func NewNotFoundError(object string) error {
	return &NotFoundError{Object: object}
}

func (err NotFoundError) Error() string {
	return err.Object + " not found"
}

// ConflictError is returned when an operation clashes with the current state of an object.
type ConflictError struct {
	msg string
}

func NewConflictError(msg string) error {
	return &ConflictError{msg: msg}
}

func (err ConflictError) Error() string {
	return err.msg
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
