package api

import (
	"encoding/json"
	"time"

	"frcvideos/internal/autorename"
	"frcvideos/internal/broadcast"
	"frcvideos/internal/jobqueue"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromAssociation converts a stored association to its API representation.
func FromAssociation(a *autorename.Association) Association {
	if a == nil {
		return Association{}
	}
	return Association{
		EventKey:               a.EventKey,
		FilePath:               a.FilePath,
		VideoFile:              a.VideoFile,
		VideoLabel:             a.VideoLabel,
		Status:                 string(a.Status),
		StatusReason:           a.StatusReason,
		VideoTimestamp:         formatTimePtr(a.VideoTimestamp),
		MatchKey:               a.MatchKey,
		MatchName:              a.MatchName,
		AssociationAttempts:    a.AssociationAttempts,
		MaxAssociationAttempts: a.MaxAssociationAttempts,
		VideoDurationSecs:      a.VideoDurationSecs,
		VideoDurationAbnormal:  a.VideoDurationAbnormal,
		StartTimeDiffSecs:      a.StartTimeDiffSecs,
		StartTimeDiffAbnormal:  a.StartTimeDiffAbnormal,
		OrderingIssueMatchKey:  a.OrderingIssueMatchKey,
		OrderingIssueMatchName: a.OrderingIssueMatchName,
		NewFileName:            a.NewFileName,
		RenameJobID:            a.RenameJobID,
		RenameAfter:            formatTimePtr(a.RenameAfter),
		RenameCompleted:        a.RenameCompleted,
		CreatedAt:              formatTime(a.CreatedAt),
		UpdatedAt:              formatTime(a.UpdatedAt),
	}
}

// FromAssociations converts a list, never returning nil.
func FromAssociations(list []*autorename.Association) []Association {
	out := make([]Association, 0, len(list))
	for _, a := range list {
		out = append(out, FromAssociation(a))
	}
	return out
}

// FromJob converts a queue job; now determines its derived state.
func FromJob(job *jobqueue.Job, now time.Time) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:          job.ID,
		Task:        job.Task,
		State:       string(job.State(now)),
		JobKey:      job.JobKey,
		Priority:    job.Priority,
		RunAt:       formatTime(job.RunAt),
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		LastError:   job.LastError,
		LockedBy:    job.LockedBy,
		CreatedAt:   formatTime(job.CreatedAt),
		UpdatedAt:   formatTime(job.UpdatedAt),
	}
	if len(job.Payload) > 0 {
		var payload any
		if err := json.Unmarshal(job.Payload, &payload); err == nil {
			dto.Payload = payload
		}
	}
	return dto
}

// FromPassSummary converts a matcher pass summary.
func FromPassSummary(s autorename.PassSummary) PassSummary {
	return PassSummary{
		RunID:           s.RunID,
		EventKey:        s.EventKey,
		StartedAt:       formatTime(s.StartedAt),
		DurationSecs:    s.Duration.Seconds(),
		Skipped:         s.Skipped,
		SkipReason:      s.SkipReason,
		FilesSeen:       s.FilesSeen,
		NewAssociations: s.NewAssociations,
		Processed:       s.Processed,
		Strong:          s.Strong,
		Weak:            s.Weak,
		Unmatched:       s.Unmatched,
		Failed:          s.Failed,
		Downgraded:      s.Downgraded,
		Errors:          s.Errors,
	}
}

// FromEvents converts hub events.
func FromEvents(events []broadcast.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, evt := range events {
		out = append(out, Event{
			Sequence:  evt.Sequence,
			Timestamp: formatTime(evt.Timestamp),
			Event:     evt.Name,
			EventKey:  evt.EventKey,
			FilePath:  evt.FilePath,
		})
	}
	return out
}
