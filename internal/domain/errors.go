package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services and repositories.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidPassword = errors.New("provided password invalid")
	ErrInvalidToken    = errors.New("invalid authentication token")
)

// InvalidInputError reports a caller mistake that maps to HTTP 400.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return e.Reason
}

// NewInvalidInput builds an InvalidInputError with a formatted reason.
func NewInvalidInput(format string, args ...any) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidInput reports whether err is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// InternalError wraps an infrastructure failure that maps to HTTP 500.
type InternalError struct {
	Detail string
	Err    error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// NewInternal wraps err with a detail message.
func NewInternal(detail string, err error) error {
	return &InternalError{Detail: detail, Err: err}
}

// IsInternal reports whether err is an InternalError.
func IsInternal(err error) bool {
	var target *InternalError
	return errors.As(err, &target)
}
