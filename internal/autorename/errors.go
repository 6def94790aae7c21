package autorename

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies malformed input that is never coerced.
	ErrValidation = errors.New("validation error")
	// ErrAssociationNotFound reports a rename for an unknown association.
	ErrAssociationNotFound = errors.New("association not found")
	// ErrNewFileNameUnset reports a rename for an association without a
	// target name.
	ErrNewFileNameUnset = errors.New("association has no new file name")
	// ErrDestinationExists reports a rename whose target already exists.
	ErrDestinationExists = errors.New("rename destination already exists")
	// ErrRenameCompleted reports an override of an already renamed file.
	ErrRenameCompleted = errors.New("association rename already completed")
	// ErrPassInProgress reports a matching pass that overlaps another.
	ErrPassInProgress = errors.New("matching pass already in progress")
)

type validationError struct {
	err error
}

func (e validationError) Error() string {
	return e.err.Error()
}

func (e validationError) Unwrap() []error {
	return []error{ErrValidation, e.err}
}

// ErrorKind classifies the error for API status mapping.
func (e validationError) ErrorKind() string {
	return "validation"
}

func validationErrorf(format string, args ...any) error {
	return validationError{err: fmt.Errorf(format, args...)}
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	return validationError{err: err}
}
