package autorename_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"frcvideos/internal/autorename"
	"frcvideos/internal/jobqueue"
	"frcvideos/internal/notifications"
)

// strongAssociation runs a pass that makes label/name STRONG for qm1 and
// returns its rename payload.
func strongAssociation(t *testing.T, h *harness) (*autorename.Association, autorename.RenamePayload) {
	t.Helper()
	h.addMatch("2023gadal_qm1", at(10, 0, 0))
	path := h.addVideo("field", "2023-03-04 10-00-05.mp4", 150)
	h.run()
	a := h.association(path)
	if a.Status != autorename.StatusStrong {
		t.Fatalf("expected strong association, got %s", a.Status)
	}
	return a, autorename.RenamePayload{
		EventKey:         a.EventKey,
		FilePath:         a.FilePath,
		Directory:        filepath.Join(h.videoDir, "field"),
		OriginalFileName: a.VideoFile,
	}
}

func TestExecuteRenamesAndMarksCompleted(t *testing.T) {
	h := newHarness(t)
	a, payload := strongAssociation(t, h)
	before := h.hub.Sequence()

	if err := h.executor.Execute(context.Background(), payload); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(payload.Directory, "Qualification 1.mp4")); err != nil {
		t.Fatalf("expected renamed file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(payload.Directory, a.VideoFile)); !os.IsNotExist(err) {
		t.Fatalf("expected source moved, stat err=%v", err)
	}
	if got := h.association(a.FilePath); !got.RenameCompleted {
		t.Fatal("expected renameCompleted")
	}
	if h.hub.Sequence() <= before {
		t.Fatal("expected association update broadcast")
	}
	if h.notifier.count(notifications.EventRenameCompleted) != 1 {
		t.Fatal("expected rename notification")
	}

	// Redelivery is a no-op.
	if err := h.executor.Execute(context.Background(), payload); err != nil {
		t.Fatalf("re-execute: %v", err)
	}
}

func TestExecuteRefusesExistingDestination(t *testing.T) {
	h := newHarness(t)
	a, payload := strongAssociation(t, h)
	occupied := filepath.Join(payload.Directory, "Qualification 1.mp4")
	if err := os.WriteFile(occupied, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write destination: %v", err)
	}
	before := h.hub.Sequence()

	err := h.executor.Execute(context.Background(), payload)
	if !errors.Is(err, autorename.ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	got := h.association(a.FilePath)
	if got.RenameCompleted || got.Status != autorename.StatusStrong {
		t.Fatalf("association changed after failed rename: %+v", got)
	}
	if got.StatusReason != autorename.ReasonRenameCollision {
		t.Fatalf("status reason = %q, want %q", got.StatusReason, autorename.ReasonRenameCollision)
	}
	if got.NewFileName != "Qualification 1.mp4" {
		t.Fatalf("new file name changed to %q", got.NewFileName)
	}
	if h.hub.Sequence() <= before {
		t.Fatal("expected the collision to be broadcast")
	}
	if data, _ := os.ReadFile(occupied); string(data) != "keep" {
		t.Fatal("destination was overwritten")
	}
	if _, err := os.Stat(filepath.Join(payload.Directory, a.VideoFile)); err != nil {
		t.Fatalf("source should remain: %v", err)
	}
	if h.notifier.count(notifications.EventRenameFailed) != 1 {
		t.Fatal("expected failure notification")
	}
}

func TestExecuteFailsLoudlyOnBrokenPreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	missing := autorename.RenamePayload{EventKey: eventKey, FilePath: "field/none.mp4", Directory: h.videoDir, OriginalFileName: "none.mp4"}
	if err := h.executor.Execute(ctx, missing); !errors.Is(err, autorename.ErrAssociationNotFound) {
		t.Fatalf("expected ErrAssociationNotFound, got %v", err)
	}

	path := h.addVideo("field", "2023-03-04 10-00-05.mp4", 150)
	h.run()
	unset := autorename.RenamePayload{EventKey: eventKey, FilePath: path, Directory: filepath.Join(h.videoDir, "field"), OriginalFileName: "2023-03-04 10-00-05.mp4"}
	if err := h.executor.Execute(ctx, unset); !errors.Is(err, autorename.ErrNewFileNameUnset) {
		t.Fatalf("expected ErrNewFileNameUnset, got %v", err)
	}
}

func TestRenamePayloadValidate(t *testing.T) {
	valid := autorename.RenamePayload{EventKey: "e", FilePath: "field/a.mp4", Directory: "/videos/field", OriginalFileName: "a.mp4"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	for name, mutate := range map[string]func(*autorename.RenamePayload){
		"event":     func(p *autorename.RenamePayload) { p.EventKey = "" },
		"file path": func(p *autorename.RenamePayload) { p.FilePath = " " },
		"directory": func(p *autorename.RenamePayload) { p.Directory = "" },
		"original":  func(p *autorename.RenamePayload) { p.OriginalFileName = "" },
		"traversal": func(p *autorename.RenamePayload) { p.OriginalFileName = "../a.mp4" },
	} {
		p := valid
		mutate(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestRenameJobRunsAfterDelayThroughQueue(t *testing.T) {
	h := newHarness(t)
	a, _ := strongAssociation(t, h)
	runner := jobqueue.NewRunner(h.queue, nil, jobqueue.RunnerOptions{})
	runner.Register(autorename.RenameTask, h.executor.Handler())
	ctx := context.Background()

	if ok, _ := runner.RunOnce(ctx); ok {
		t.Fatal("rename ran before its delay elapsed")
	}
	h.clock.Advance(5 * time.Minute)
	if ok, err := runner.RunOnce(ctx); err != nil || !ok {
		t.Fatalf("RunOnce: ok=%v err=%v", ok, err)
	}
	if got := h.association(a.FilePath); !got.RenameCompleted {
		t.Fatal("expected rename completed through queue")
	}
	if job := h.renameJob(a.FilePath); job != nil {
		t.Fatalf("completed job should be removed, got %+v", job)
	}
}

func TestRenameJobFailureIsTerminal(t *testing.T) {
	h := newHarness(t)
	a, payload := strongAssociation(t, h)
	if err := os.WriteFile(filepath.Join(payload.Directory, "Qualification 1.mp4"), nil, 0o644); err != nil {
		t.Fatalf("write destination: %v", err)
	}
	runner := jobqueue.NewRunner(h.queue, nil, jobqueue.RunnerOptions{})
	runner.Register(autorename.RenameTask, h.executor.Handler())
	h.clock.Advance(5 * time.Minute)
	if _, err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	job := h.renameJob(a.FilePath)
	if job == nil || job.State(h.clock.Now()) != jobqueue.StateFailed {
		t.Fatalf("expected permanently failed job, got %+v", job)
	}
	h.clock.Advance(time.Hour)
	if ok, _ := runner.RunOnce(context.Background()); ok {
		t.Fatal("failed rename must not be retried automatically")
	}
}
