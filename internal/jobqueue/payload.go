package jobqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Payload is implemented by typed job payloads. Validate runs after
// decoding and must reject any missing or malformed field.
type Payload interface {
	Validate() error
}

// DecodePayload strictly decodes job's payload into T, rejecting unknown
// fields and trailing data, then validates it.
func DecodePayload[T Payload](job *Job) (T, error) {
	var payload T
	decoder := json.NewDecoder(bytes.NewReader(job.Payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return payload, payloadError{task: job.Task, err: err}
	}
	if decoder.More() {
		return payload, payloadError{task: job.Task, err: fmt.Errorf("trailing data after payload")}
	}
	if err := payload.Validate(); err != nil {
		return payload, payloadError{task: job.Task, err: err}
	}
	return payload, nil
}

// Typed adapts a handler over a decoded payload into a Handler. Payload
// errors fail the job before fn runs.
func Typed[T Payload](fn func(ctx context.Context, job *Job, payload T) error) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := DecodePayload[T](job)
		if err != nil {
			return err
		}
		return fn(ctx, job, payload)
	}
}
