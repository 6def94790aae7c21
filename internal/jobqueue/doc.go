// Package jobqueue is a durable SQLite job queue with keyed, scheduled jobs.
//
// Jobs carry a task name, a JSON payload, a run-at time and an attempt
// budget. A job key names a logical job: adding a job under an existing key
// replaces the pending row instead of inserting a second one, so callers can
// reschedule freely. A job that is already running is detached from its key
// and a fresh row takes the key over.
//
// Workers claim the highest priority due job, which increments its attempt
// counter and stamps the lock. Successful jobs are deleted. Failed jobs keep
// their last error and are retried with exponential backoff until the
// attempt budget is spent, after which the row stays as a permanently failed
// record until an operator retries it. Locks left behind by a crashed worker
// are released after the lock timeout; the attempt they consumed still
// counts.
package jobqueue
