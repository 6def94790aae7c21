package jobqueue

import "errors"

var (
	// ErrInvalidPayload reports a payload that does not decode into the
	// task's payload type or fails its validation.
	ErrInvalidPayload = errors.New("invalid job payload")
	// ErrUnknownTask reports a job whose task has no registered handler.
	ErrUnknownTask = errors.New("unknown task")
	// ErrEmptyTask reports an AddJob call without a task name.
	ErrEmptyTask = errors.New("task name is required")
)

// ErrorKind classifies payload errors as validation failures.
func (e payloadError) ErrorKind() string {
	return "validation"
}

type payloadError struct {
	task string
	err  error
}

func (e payloadError) Error() string {
	return ErrInvalidPayload.Error() + " for " + e.task + ": " + e.err.Error()
}

func (e payloadError) Unwrap() []error {
	return []error{ErrInvalidPayload, e.err}
}
