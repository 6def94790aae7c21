package settings

import (
	"errors"
	"fmt"
)

// ErrValidation classifies rejected setting names and values.
var ErrValidation = errors.New("invalid setting")

type validationError struct {
	err error
}

func (e validationError) Error() string   { return e.err.Error() }
func (e validationError) Unwrap() []error { return []error{ErrValidation, e.err} }

// ErrorKind classifies the error for API status mapping.
func (e validationError) ErrorKind() string { return "validation" }

func validationErrorf(format string, args ...any) error {
	return validationError{err: fmt.Errorf(format, args...)}
}
