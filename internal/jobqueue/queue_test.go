package jobqueue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"frcvideos/internal/jobqueue"
	"frcvideos/internal/testsupport"
)

var epoch = time.Date(2023, 3, 4, 15, 0, 0, 0, time.UTC)

func newQueue(t *testing.T) (*jobqueue.Queue, *testsupport.StubClock) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDatabase(t, cfg)
	clk := testsupport.NewStubClock(epoch)
	return jobqueue.New(db, jobqueue.WithClock(clk)), clk
}

type renamePayload struct {
	FilePath string `json:"filePath"`
}

func TestAddJobReplaceKeepsSingleJobPerKey(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	first, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "a"}, jobqueue.AddOptions{
		JobKey:      "k1",
		MaxAttempts: 1,
		RunAt:       epoch.Add(5 * time.Minute),
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	second, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "b"}, jobqueue.AddOptions{
		JobKey:      "k1",
		MaxAttempts: 1,
		RunAt:       epoch.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("AddJob replace: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected replace in place, got ids %s and %s", first.ID, second.ID)
	}
	if !second.RunAt.Equal(epoch.Add(10 * time.Minute)) {
		t.Fatalf("expected run_at to be replaced, got %s", second.RunAt)
	}
	if string(second.Payload) != `{"filePath":"b"}` {
		t.Fatalf("expected payload replaced, got %s", second.Payload)
	}

	jobs, err := q.List(ctx, jobqueue.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected exactly one job, got %d", len(jobs))
	}
}

func TestAddJobPreserveRunAtAndDedupe(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()
	runAt := epoch.Add(time.Minute)

	if _, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "a"}, jobqueue.AddOptions{JobKey: "k", RunAt: runAt}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	preserved, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "b"}, jobqueue.AddOptions{
		JobKey:     "k",
		JobKeyMode: jobqueue.ModePreserveRunAt,
		RunAt:      epoch.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("AddJob preserve: %v", err)
	}
	if !preserved.RunAt.Equal(runAt) || string(preserved.Payload) != `{"filePath":"b"}` {
		t.Fatalf("unexpected preserve result: run_at=%s payload=%s", preserved.RunAt, preserved.Payload)
	}

	deduped, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "c"}, jobqueue.AddOptions{
		JobKey:     "k",
		JobKeyMode: jobqueue.ModeUnsafeDedupe,
	})
	if err != nil {
		t.Fatalf("AddJob dedupe: %v", err)
	}
	if string(deduped.Payload) != `{"filePath":"b"}` {
		t.Fatalf("expected dedupe to keep existing payload, got %s", deduped.Payload)
	}
}

func TestAddJobDetachesRunningJob(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	original, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "a"}, jobqueue.AddOptions{JobKey: "k", MaxAttempts: 1})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	claimed, err := q.Claim(ctx, "w1", []string{"rename"})
	if err != nil || claimed == nil {
		t.Fatalf("Claim: job=%v err=%v", claimed, err)
	}

	replacement, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "b"}, jobqueue.AddOptions{JobKey: "k", MaxAttempts: 1})
	if err != nil {
		t.Fatalf("AddJob while running: %v", err)
	}
	if replacement.ID == original.ID {
		t.Fatal("expected a fresh job while the original is running")
	}
	running, err := q.GetJob(ctx, original.ID)
	if err != nil || running == nil {
		t.Fatalf("GetJob original: job=%v err=%v", running, err)
	}
	if running.JobKey != "" {
		t.Fatalf("expected running job detached from key, got %q", running.JobKey)
	}
	byKey, err := q.GetJobByKey(ctx, "k")
	if err != nil || byKey == nil || byKey.ID != replacement.ID {
		t.Fatalf("expected key to point at replacement, got %v err=%v", byKey, err)
	}
}

func TestAddJobRejectsEmptyTask(t *testing.T) {
	q, _ := newQueue(t)
	if _, err := q.AddJob(context.Background(), "  ", nil, jobqueue.AddOptions{}); !errors.Is(err, jobqueue.ErrEmptyTask) {
		t.Fatalf("expected ErrEmptyTask, got %v", err)
	}
}

func TestCancelJob(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	if _, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "a"}, jobqueue.AddOptions{JobKey: "k"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	found, err := q.CancelJob(ctx, "k")
	if err != nil || !found {
		t.Fatalf("CancelJob: found=%v err=%v", found, err)
	}
	if job, _ := q.GetJobByKey(ctx, "k"); job != nil {
		t.Fatalf("expected job removed, got %+v", job)
	}
	found, err = q.CancelJob(ctx, "k")
	if err != nil || found {
		t.Fatalf("expected second cancel to find nothing, found=%v err=%v", found, err)
	}
}

func TestClaimHonorsRunAtAndPriority(t *testing.T) {
	q, clk := newQueue(t)
	ctx := context.Background()

	if _, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "later"}, jobqueue.AddOptions{RunAt: epoch.Add(time.Minute)}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	low, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "low"}, jobqueue.AddOptions{Priority: 5})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	high, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "high"}, jobqueue.AddOptions{Priority: -1})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	first, err := q.Claim(ctx, "w", []string{"rename"})
	if err != nil || first == nil || first.ID != high.ID {
		t.Fatalf("expected high priority job first, got %+v err=%v", first, err)
	}
	if first.Attempts != 1 || first.LockedAt == nil || first.LockedBy != "w" {
		t.Fatalf("expected claim to lock and count attempt, got %+v", first)
	}
	second, err := q.Claim(ctx, "w", []string{"rename"})
	if err != nil || second == nil || second.ID != low.ID {
		t.Fatalf("expected low priority job second, got %+v err=%v", second, err)
	}
	none, err := q.Claim(ctx, "w", []string{"rename"})
	if err != nil || none != nil {
		t.Fatalf("expected future job to stay unclaimed, got %+v err=%v", none, err)
	}
	if other, _ := q.Claim(ctx, "w", []string{"other"}); other != nil {
		t.Fatalf("expected no job for unrelated task, got %+v", other)
	}

	clk.Advance(time.Minute)
	later, err := q.Claim(ctx, "w", []string{"rename"})
	if err != nil || later == nil || string(later.Payload) != `{"filePath":"later"}` {
		t.Fatalf("expected scheduled job once due, got %+v err=%v", later, err)
	}
}

func TestFailSchedulesBackoffThenFailsPermanently(t *testing.T) {
	q, clk := newQueue(t)
	ctx := context.Background()

	job, err := q.AddJob(ctx, "rename", renamePayload{FilePath: "a"}, jobqueue.AddOptions{MaxAttempts: 2})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	claimed, _ := q.Claim(ctx, "w", []string{"rename"})
	if err := q.Fail(ctx, claimed, errors.New("boom")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	retried, _ := q.GetJob(ctx, job.ID)
	if retried.LockedAt != nil || retried.LastError != "boom" {
		t.Fatalf("expected unlocked job with error, got %+v", retried)
	}
	if !retried.RunAt.Equal(epoch.Add(jobqueue.Backoff(1))) {
		t.Fatalf("expected backoff run_at, got %s", retried.RunAt)
	}
	if state := retried.State(clk.Now()); state != jobqueue.StateScheduled {
		t.Fatalf("expected scheduled state, got %s", state)
	}

	clk.Advance(jobqueue.Backoff(1))
	claimed, _ = q.Claim(ctx, "w", []string{"rename"})
	if claimed == nil {
		t.Fatal("expected retry to be claimable after backoff")
	}
	if err := q.Fail(ctx, claimed, errors.New("boom again")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	failed, err := q.List(ctx, jobqueue.ListFilter{FailedOnly: true})
	if err != nil || len(failed) != 1 {
		t.Fatalf("expected one failed job, got %d err=%v", len(failed), err)
	}
	if failed[0].State(clk.Now()) != jobqueue.StateFailed {
		t.Fatalf("expected failed state, got %s", failed[0].State(clk.Now()))
	}
	clk.Advance(time.Hour)
	if again, _ := q.Claim(ctx, "w", []string{"rename"}); again != nil {
		t.Fatal("expected permanently failed job to stay unclaimed")
	}

	reset, err := q.RetryFailed(ctx, job.ID)
	if err != nil || reset != 1 {
		t.Fatalf("RetryFailed: reset=%d err=%v", reset, err)
	}
	if again, _ := q.Claim(ctx, "w", []string{"rename"}); again == nil || again.Attempts != 1 {
		t.Fatalf("expected retried job to be claimable with fresh attempts, got %+v", again)
	}
}

func TestCompleteDeletesJob(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	job, _ := q.AddJob(ctx, "rename", renamePayload{FilePath: "a"}, jobqueue.AddOptions{})
	claimed, _ := q.Claim(ctx, "w", []string{"rename"})
	if err := q.Complete(ctx, claimed); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got, _ := q.GetJob(ctx, job.ID); got != nil {
		t.Fatalf("expected completed job removed, got %+v", got)
	}
}

func TestReclaimStaleReleasesExpiredLocks(t *testing.T) {
	q, clk := newQueue(t)
	ctx := context.Background()

	job, _ := q.AddJob(ctx, "rename", renamePayload{FilePath: "a"}, jobqueue.AddOptions{MaxAttempts: 1})
	if claimed, _ := q.Claim(ctx, "w", []string{"rename"}); claimed == nil {
		t.Fatal("expected claim")
	}

	clk.Advance(30 * time.Second)
	if n, err := q.ReclaimStale(ctx, time.Minute); err != nil || n != 0 {
		t.Fatalf("expected fresh lock kept, n=%d err=%v", n, err)
	}
	clk.Advance(time.Minute)
	if n, err := q.ReclaimStale(ctx, time.Minute); err != nil || n != 1 {
		t.Fatalf("expected stale lock reclaimed, n=%d err=%v", n, err)
	}

	reclaimed, _ := q.GetJob(ctx, job.ID)
	if reclaimed.LockedAt != nil {
		t.Fatal("expected lock cleared")
	}
	// The consumed attempt is kept, so a single-attempt job is not rerun.
	if reclaimed.State(clk.Now()) != jobqueue.StateFailed {
		t.Fatalf("expected reclaimed single-attempt job to be failed, got %s", reclaimed.State(clk.Now()))
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	if jobqueue.Backoff(0) != jobqueue.Backoff(1) {
		t.Fatal("expected attempts below one to clamp")
	}
	if jobqueue.Backoff(2) <= jobqueue.Backoff(1) {
		t.Fatal("expected backoff to grow")
	}
	if jobqueue.Backoff(50) != jobqueue.Backoff(10) {
		t.Fatal("expected backoff to cap")
	}
}
