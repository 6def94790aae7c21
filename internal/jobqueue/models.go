package jobqueue

import (
	"encoding/json"
	"time"
)

// JobKeyMode selects how AddJob treats an existing job with the same key.
type JobKeyMode string

const (
	// ModeReplace overwrites the pending job, including its run-at time.
	ModeReplace JobKeyMode = "replace"
	// ModePreserveRunAt overwrites the pending job but keeps its run-at time.
	ModePreserveRunAt JobKeyMode = "preserve_run_at"
	// ModeUnsafeDedupe leaves any existing job untouched.
	ModeUnsafeDedupe JobKeyMode = "unsafe_dedupe"
)

// State is a derived view of where a job is in its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
	StateFailed    State = "failed"
)

// AddOptions configures AddJob.
type AddOptions struct {
	MaxAttempts int
	JobKey      string
	JobKeyMode  JobKeyMode
	RunAt       time.Time
	// Priority orders due jobs; lower values run first.
	Priority int
}

// Job is a persisted unit of work.
type Job struct {
	ID          string          `json:"id"`
	Task        string          `json:"task"`
	Payload     json.RawMessage `json:"payload"`
	JobKey      string          `json:"jobKey,omitempty"`
	Priority    int             `json:"priority"`
	RunAt       time.Time       `json:"runAt"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	LastError   string          `json:"lastError,omitempty"`
	LockedAt    *time.Time      `json:"lockedAt,omitempty"`
	LockedBy    string          `json:"lockedBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// State derives the job's lifecycle state at now.
func (j *Job) State(now time.Time) State {
	switch {
	case j.LockedAt != nil:
		return StateRunning
	case j.Attempts >= j.MaxAttempts:
		return StateFailed
	case j.RunAt.After(now):
		return StateScheduled
	default:
		return StatePending
	}
}

// ListFilter narrows List results.
type ListFilter struct {
	Task       string
	FailedOnly bool
	Limit      int
}
