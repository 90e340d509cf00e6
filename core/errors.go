package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrForbidden = errors.New("You are forbidden from performing this action")
	ErrNotFound  = NewNotFoundError("Object")
)

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

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned whenever a row does not exist or is outside the caller's scope.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found."
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// UpstreamError carries a failed answer from a third-party API (payment gateway, rates...).
type UpstreamError struct {
	Service string
	Status  int // 502 when the service could not be reached
	Message string
}

func (err UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", err.Service, err.Message, err.Status)
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
