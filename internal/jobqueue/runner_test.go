package jobqueue_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"frcvideos/internal/jobqueue"
	"frcvideos/internal/logging"
	"frcvideos/internal/testsupport"
)

type strictPayload struct {
	EventKey string `json:"eventKey"`
	FilePath string `json:"filePath"`
}

func (p strictPayload) Validate() error {
	if p.EventKey == "" || p.FilePath == "" {
		return errors.New("eventKey and filePath are required")
	}
	return nil
}

func TestRunOnceCompletesSuccessfulJob(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()
	runner := jobqueue.NewRunner(q, logging.NewNop(), jobqueue.RunnerOptions{})

	var got strictPayload
	runner.Register("rename", jobqueue.Typed(func(_ context.Context, _ *jobqueue.Job, payload strictPayload) error {
		got = payload
		return nil
	}))

	job, err := q.AddJob(ctx, "rename", strictPayload{EventKey: "2023gadal", FilePath: "cam/a.mp4"}, jobqueue.AddOptions{MaxAttempts: 1})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	processed, err := runner.RunOnce(ctx)
	if err != nil || !processed {
		t.Fatalf("RunOnce: processed=%v err=%v", processed, err)
	}
	if got.FilePath != "cam/a.mp4" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if remaining, _ := q.GetJob(ctx, job.ID); remaining != nil {
		t.Fatalf("expected job deleted after success, got %+v", remaining)
	}
	if processed, _ := runner.RunOnce(ctx); processed {
		t.Fatal("expected empty queue")
	}
}

func TestRunOnceRecordsHandlerFailure(t *testing.T) {
	q, clk := newQueue(t)
	ctx := context.Background()
	runner := jobqueue.NewRunner(q, logging.NewNop(), jobqueue.RunnerOptions{})
	runner.Register("rename", func(context.Context, *jobqueue.Job) error {
		return errors.New("destination exists")
	})

	job, _ := q.AddJob(ctx, "rename", strictPayload{EventKey: "e", FilePath: "f"}, jobqueue.AddOptions{MaxAttempts: 1})
	if _, err := runner.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	failed, _ := q.GetJob(ctx, job.ID)
	if failed == nil || failed.LastError != "destination exists" || failed.State(clk.Now()) != jobqueue.StateFailed {
		t.Fatalf("expected permanently failed job, got %+v", failed)
	}
}

func TestRunOnceRecoversHandlerPanic(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()
	runner := jobqueue.NewRunner(q, logging.NewNop(), jobqueue.RunnerOptions{})
	runner.Register("rename", func(context.Context, *jobqueue.Job) error {
		panic("nil association")
	})

	job, _ := q.AddJob(ctx, "rename", strictPayload{EventKey: "e", FilePath: "f"}, jobqueue.AddOptions{MaxAttempts: 1})
	if _, err := runner.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	failed, _ := q.GetJob(ctx, job.ID)
	if failed == nil || !strings.Contains(failed.LastError, "panic") {
		t.Fatalf("expected panic recorded, got %+v", failed)
	}
}

func TestDecodePayloadIsStrict(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "valid", payload: `{"eventKey":"2023gadal","filePath":"cam/a.mp4"}`},
		{name: "unknown field", payload: `{"eventKey":"2023gadal","filePath":"cam/a.mp4","newFileName":"x"}`, wantErr: true},
		{name: "missing field", payload: `{"eventKey":"2023gadal"}`, wantErr: true},
		{name: "wrong type", payload: `{"eventKey":1,"filePath":"cam/a.mp4"}`, wantErr: true},
		{name: "trailing data", payload: `{"eventKey":"a","filePath":"b"} {}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &jobqueue.Job{Task: "rename", Payload: []byte(tt.payload)}
			_, err := jobqueue.DecodePayload[strictPayload](job)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, jobqueue.ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
			var kind interface{ ErrorKind() string }
			if !errors.As(err, &kind) || kind.ErrorKind() != "validation" {
				t.Fatalf("expected validation error kind, got %v", err)
			}
		})
	}
}

func TestTypedHandlerSkipsInvalidPayload(t *testing.T) {
	called := false
	handler := jobqueue.Typed(func(context.Context, *jobqueue.Job, strictPayload) error {
		called = true
		return nil
	})
	err := handler(context.Background(), &jobqueue.Job{Task: "rename", Payload: []byte(`{}`)})
	if !errors.Is(err, jobqueue.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload error, got %v", err)
	}
	if called {
		t.Fatal("handler must not run for an invalid payload")
	}
}

func TestRunnerStartProcessesNudgedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDatabase(t, cfg)
	q := jobqueue.New(db)
	runner := jobqueue.NewRunner(q, logging.NewNop(), jobqueue.RunnerOptions{
		Concurrency:  2,
		PollInterval: time.Hour,
		LockTimeout:  time.Minute,
	})

	done := make(chan string, 3)
	runner.Register("rename", jobqueue.Typed(func(_ context.Context, _ *jobqueue.Job, payload strictPayload) error {
		done <- payload.FilePath
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer runner.Stop()
	if err := runner.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	for i := range 3 {
		if _, err := q.AddJob(ctx, "rename", strictPayload{EventKey: "e", FilePath: fmt.Sprintf("f%d", i)}, jobqueue.AddOptions{}); err != nil {
			t.Fatalf("AddJob: %v", err)
		}
		runner.Nudge()
	}

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for len(seen) < 3 {
		select {
		case path := <-done:
			seen[path] = true
		case <-deadline:
			t.Fatalf("timed out; processed %v", seen)
		}
	}
}

func TestStartRequiresHandlers(t *testing.T) {
	q, _ := newQueue(t)
	runner := jobqueue.NewRunner(q, logging.NewNop(), jobqueue.RunnerOptions{})
	if err := runner.Start(context.Background()); err == nil {
		t.Fatal("expected Start without handlers to fail")
	}
}
