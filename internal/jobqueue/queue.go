package jobqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"frcvideos/internal/clock"
	"frcvideos/internal/database"
	"frcvideos/internal/metrics"
)

const (
	defaultMaxAttempts = 5
	maxBackoffExponent = 10
)

const jobColumns = "id, task, payload, job_key, priority, run_at, attempts, max_attempts, last_error, locked_at, locked_by, created_at, updated_at"

// Queue persists jobs in the shared SQLite database.
type Queue struct {
	db    *database.DB
	clock clock.Clock
}

// Option customizes a Queue.
type Option func(*Queue)

// WithClock overrides the clock used for run-at and lock timestamps.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) {
		q.clock = clock.OrReal(c)
	}
}

// New constructs a Queue over db.
func New(db *database.DB, opts ...Option) *Queue {
	q := &Queue{db: db, clock: clock.Real{}}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) now() time.Time {
	return q.clock.Now().UTC()
}

// AddJob enqueues task with payload. When opts.JobKey names an existing job
// the outcome follows opts.JobKeyMode (replace by default).
func (q *Queue) AddJob(ctx context.Context, task string, payload any, opts AddOptions) (*Job, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.JobKeyMode == "" {
		opts.JobKeyMode = ModeReplace
	}
	switch opts.JobKeyMode {
	case ModeReplace, ModePreserveRunAt, ModeUnsafeDedupe:
	default:
		return nil, fmt.Errorf("unsupported job key mode %q", opts.JobKeyMode)
	}
	now := q.now()
	runAt := opts.RunAt.UTC()
	if opts.RunAt.IsZero() {
		runAt = now
	}

	var (
		jobID   string
		outcome string
	)
	err = q.db.WithTx(ctx, func(tx *sql.Tx) error {
		jobID, outcome = "", "inserted"
		if opts.JobKey != "" {
			existing, err := scanJob(tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE job_key = ?", opts.JobKey))
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("lookup job key: %w", err)
			}
			if existing != nil {
				switch {
				case opts.JobKeyMode == ModeUnsafeDedupe:
					jobID, outcome = existing.ID, "deduplicated"
					return nil
				case existing.LockedAt != nil:
					if _, err := tx.ExecContext(ctx, "UPDATE jobs SET job_key = NULL, updated_at = ? WHERE id = ?", database.FormatTime(now), existing.ID); err != nil {
						return fmt.Errorf("detach running job: %w", err)
					}
				default:
					newRunAt := runAt
					if opts.JobKeyMode == ModePreserveRunAt {
						newRunAt = existing.RunAt
					}
					if _, err := tx.ExecContext(ctx,
						`UPDATE jobs SET task = ?, payload = ?, priority = ?, run_at = ?, attempts = 0,
                            max_attempts = ?, last_error = NULL, updated_at = ?
                         WHERE id = ?`,
						task, string(body), opts.Priority, database.FormatTime(newRunAt),
						opts.MaxAttempts, database.FormatTime(now), existing.ID,
					); err != nil {
						return fmt.Errorf("replace job: %w", err)
					}
					jobID, outcome = existing.ID, "replaced"
					return nil
				}
			}
		}
		jobID = uuid.NewString()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (id, task, payload, job_key, priority, run_at, attempts, max_attempts, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			jobID, task, string(body), database.NullableString(opts.JobKey), opts.Priority,
			database.FormatTime(runAt), opts.MaxAttempts, database.FormatTime(now), database.FormatTime(now),
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.JobsEnqueued.WithLabelValues(task, outcome).Inc()
	return q.GetJob(ctx, jobID)
}

// CancelJob removes the job registered under key. A running job cannot be
// stopped; it is detached from the key and will not be retried. It reports
// whether a job was found.
func (q *Queue) CancelJob(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	found := false
	err := q.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE job_key = ? AND locked_at IS NULL", key)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			found = true
			return nil
		}
		res, err = tx.ExecContext(ctx,
			"UPDATE jobs SET job_key = NULL, max_attempts = attempts, updated_at = ? WHERE job_key = ?",
			database.FormatTime(q.now()), key)
		if err != nil {
			return fmt.Errorf("detach running job: %w", err)
		}
		n, _ := res.RowsAffected()
		found = n > 0
		return nil
	})
	return found, err
}

// GetJob returns the job with id, or nil when absent.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := scanJob(q.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetJobByKey returns the job registered under key, or nil when absent.
func (q *Queue) GetJobByKey(ctx context.Context, key string) (*Job, error) {
	job, err := scanJob(q.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE job_key = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by key: %w", err)
	}
	return job, nil
}

// List returns jobs ordered by run-at time.
func (q *Queue) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	var (
		where []string
		args  []any
	)
	if filter.Task != "" {
		where = append(where, "task = ?")
		args = append(args, filter.Task)
	}
	if filter.FailedOnly {
		where = append(where, "locked_at IS NULL AND attempts >= max_attempts")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY run_at, priority, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Claim locks the next due job for one of tasks on behalf of workerID. It
// returns nil when nothing is due.
func (q *Queue) Claim(ctx context.Context, workerID string, tasks []string) (*Job, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	now := database.FormatTime(q.now())
	args := []any{now, workerID, now, now}
	for _, task := range tasks {
		args = append(args, task)
	}
	query := `UPDATE jobs SET attempts = attempts + 1, locked_at = ?, locked_by = ?, updated_at = ?
        WHERE locked_at IS NULL AND id = (
            SELECT id FROM jobs
            WHERE locked_at IS NULL AND run_at <= ? AND attempts < max_attempts
              AND task IN (` + database.Placeholders(len(tasks)) + `)
            ORDER BY priority, run_at, id
            LIMIT 1
        )
        RETURNING ` + jobColumns

	var job *Job
	err := database.RetryOnBusy(ctx, func() error {
		var scanErr error
		job, scanErr = scanJob(q.db.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Complete deletes a finished job.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	if _, err := q.db.ExecWithRetry(ctx, "DELETE FROM jobs WHERE id = ?", job.ID); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail records cause on job and releases its lock. Jobs with attempts left
// are rescheduled with exponential backoff.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) error {
	now := q.now()
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	runAt := now.Add(Backoff(job.Attempts))
	if _, err := q.db.ExecWithRetry(ctx,
		`UPDATE jobs SET last_error = ?, locked_at = NULL, locked_by = NULL,
            run_at = CASE WHEN attempts < max_attempts THEN ? ELSE run_at END, updated_at = ?
         WHERE id = ?`,
		message, database.FormatTime(runAt), database.FormatTime(now), job.ID,
	); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// Touch refreshes the lock of a running job so it is not reclaimed.
func (q *Queue) Touch(ctx context.Context, job *Job) error {
	if _, err := q.db.ExecWithRetry(ctx,
		"UPDATE jobs SET locked_at = ? WHERE id = ? AND locked_by = ?",
		database.FormatTime(q.now()), job.ID, job.LockedBy,
	); err != nil {
		return fmt.Errorf("touch job: %w", err)
	}
	return nil
}

// ReclaimStale releases locks older than timeout. It returns the number of
// jobs released.
func (q *Queue) ReclaimStale(ctx context.Context, timeout time.Duration) (int64, error) {
	if timeout <= 0 {
		return 0, nil
	}
	now := q.now()
	res, err := q.db.ExecWithRetry(ctx,
		`UPDATE jobs SET locked_at = NULL, locked_by = NULL,
            last_error = 'lock expired: worker stopped responding', updated_at = ?
         WHERE locked_at IS NOT NULL AND locked_at < ?`,
		database.FormatTime(now), database.FormatTime(now.Add(-timeout)),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed resets permanently failed jobs so they run again immediately.
// With no ids every failed job is reset.
func (q *Queue) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := database.FormatTime(q.now())
	query := `UPDATE jobs SET attempts = 0, last_error = NULL, run_at = ?, updated_at = ?
        WHERE locked_at IS NULL AND attempts >= max_attempts`
	args := []any{now, now}
	if len(ids) > 0 {
		query += " AND id IN (" + database.Placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := q.db.ExecWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// Backoff returns the retry delay after attempts failures.
func Backoff(attempts int) time.Duration {
	exp := min(max(attempts, 1), maxBackoffExponent)
	return time.Duration(math.Exp(float64(exp)) * float64(time.Second))
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job        Job
		payload    string
		jobKey     sql.NullString
		runAt      string
		lastError  sql.NullString
		lockedAt   sql.NullString
		lockedBy   sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Task,
		&payload,
		&jobKey,
		&job.Priority,
		&runAt,
		&job.Attempts,
		&job.MaxAttempts,
		&lastError,
		&lockedAt,
		&lockedBy,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Payload = json.RawMessage(payload)
	job.JobKey = jobKey.String
	job.LastError = lastError.String
	job.LockedBy = lockedBy.String
	job.LockedAt = database.NullTime(lockedAt)
	job.RunAt, _ = database.ParseTime(runAt)
	job.CreatedAt, _ = database.ParseTime(createdRaw)
	job.UpdatedAt, _ = database.ParseTime(updatedRaw)
	return &job, nil
}
