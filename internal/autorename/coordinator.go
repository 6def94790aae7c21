package autorename

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"frcvideos/internal/fileutil"
	"frcvideos/internal/jobqueue"
	"frcvideos/internal/logging"
	"frcvideos/internal/metrics"
	"frcvideos/internal/notifications"
)

// RenameTask is the queue task name of rename jobs.
const RenameTask = "autoRenameFile"

// JobQueue is the durable queue contract the coordinator relies on.
type JobQueue interface {
	AddJob(ctx context.Context, task string, payload any, opts jobqueue.AddOptions) (*jobqueue.Job, error)
	CancelJob(ctx context.Context, key string) (bool, error)
}

// Broadcaster is notified whenever an association changes.
type Broadcaster interface {
	NotifyAssociationUpdated(eventKey, filePath string)
}

// RenamePayload is the rename job body. The target name is deliberately
// absent; the executor reads the association's current newFileName.
type RenamePayload struct {
	EventKey         string `json:"eventKey"`
	FilePath         string `json:"filePath"`
	Directory        string `json:"directory"`
	OriginalFileName string `json:"originalFileName"`
}

// Validate rejects payloads missing any field or naming a file outside
// Directory.
func (p RenamePayload) Validate() error {
	switch {
	case strings.TrimSpace(p.EventKey) == "":
		return errors.New("eventKey is required")
	case strings.TrimSpace(p.FilePath) == "":
		return errors.New("filePath is required")
	case strings.TrimSpace(p.Directory) == "":
		return errors.New("directory is required")
	case strings.TrimSpace(p.OriginalFileName) == "":
		return errors.New("originalFileName is required")
	case filepath.Base(p.OriginalFileName) != p.OriginalFileName:
		return fmt.Errorf("originalFileName %q must be a bare file name", p.OriginalFileName)
	}
	return nil
}

func (p RenamePayload) key() Key {
	return Key{EventKey: p.EventKey, FilePath: p.FilePath}
}

// Coordinator schedules one rename job per association.
type Coordinator struct {
	queue JobQueue
}

// NewCoordinator constructs a Coordinator submitting to queue.
func NewCoordinator(queue JobQueue) *Coordinator {
	return &Coordinator{queue: queue}
}

// ScheduleRename enqueues the rename of a, replacing any pending job for the
// same association. directory is the absolute folder holding the file.
func (c *Coordinator) ScheduleRename(ctx context.Context, a *Association, directory string, renameAfter time.Time, priority int) (*jobqueue.Job, error) {
	payload := RenamePayload{
		EventKey:         a.EventKey,
		FilePath:         a.FilePath,
		Directory:        directory,
		OriginalFileName: a.VideoFile,
	}
	if err := payload.Validate(); err != nil {
		return nil, wrapValidation(fmt.Errorf("rename payload: %w", err))
	}
	job, err := c.queue.AddJob(ctx, RenameTask, payload, jobqueue.AddOptions{
		MaxAttempts: 1,
		JobKey:      a.Key().JobKey(),
		JobKeyMode:  jobqueue.ModeReplace,
		RunAt:       renameAfter,
		Priority:    priority,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule rename for %s: %w", a.Key(), err)
	}
	return job, nil
}

// CancelRename removes the pending rename job of key, reporting whether one
// existed.
func (c *Coordinator) CancelRename(ctx context.Context, key Key) (bool, error) {
	found, err := c.queue.CancelJob(ctx, key.JobKey())
	if err != nil {
		return false, fmt.Errorf("cancel rename for %s: %w", key, err)
	}
	return found, nil
}

// Executor performs rename jobs.
type Executor struct {
	store       *Store
	broadcaster Broadcaster
	notifier    notifications.Service
	logger      *slog.Logger
}

// NewExecutor constructs an Executor. A nil notifier or broadcaster is
// ignored.
func NewExecutor(store *Store, broadcaster Broadcaster, notifier notifications.Service, logger *slog.Logger) *Executor {
	return &Executor{
		store:       store,
		broadcaster: broadcaster,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "autorename-executor"),
	}
}

// Handler adapts the executor to the job runner.
func (e *Executor) Handler() jobqueue.Handler {
	return jobqueue.Typed(func(ctx context.Context, _ *jobqueue.Job, payload RenamePayload) error {
		return e.Execute(ctx, payload)
	})
}

// Execute renames the association's file to its current newFileName. A
// completed association is a no-op so redelivery is harmless. A destination
// collision is recorded as the association's status reason; the association
// stays STRONG and unrenamed.
func (e *Executor) Execute(ctx context.Context, payload RenamePayload) error {
	logger := e.logger.With(
		logging.String(logging.FieldEventKey, payload.EventKey),
		logging.String(logging.FieldFilePath, payload.FilePath),
	)
	err := e.execute(ctx, payload, logger)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errAlreadyRenamed):
		metrics.RenameJobs.WithLabelValues("skipped").Inc()
		return nil
	}
	metrics.RenameJobs.WithLabelValues("failure").Inc()
	if errors.Is(err, ErrDestinationExists) {
		e.recordFailure(ctx, logger, payload.key(), ReasonRenameCollision)
	}
	logging.ErrorWithContext(logger, "rename failed", "rename_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "resolve the conflict, then override the association or retry the job"),
	)
	if e.notifier != nil {
		if notifyErr := e.notifier.Publish(ctx, notifications.EventRenameFailed, notifications.Payload{
			"filePath": payload.FilePath,
			"error":    err.Error(),
		}); notifyErr != nil {
			logger.Warn("rename failure notification failed", logging.Error(notifyErr))
		}
	}
	return err
}

var errAlreadyRenamed = errors.New("already renamed")

func (e *Executor) recordFailure(ctx context.Context, logger *slog.Logger, key Key, reason string) {
	changed, err := e.store.RecordRenameFailure(ctx, key, reason)
	if err != nil {
		logging.WarnWithContext(logger, "rename failure not recorded on association", "rename_failure_unrecorded",
			logging.Error(err),
			logging.String(logging.FieldImpact, "association keeps its previous status reason"),
		)
		return
	}
	if changed && e.broadcaster != nil {
		e.broadcaster.NotifyAssociationUpdated(key.EventKey, key.FilePath)
	}
}

func (e *Executor) execute(ctx context.Context, payload RenamePayload, logger *slog.Logger) error {
	a, err := e.store.Get(ctx, payload.key())
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("%w: %s", ErrAssociationNotFound, payload.key())
	}
	if a.RenameCompleted {
		logger.Info("rename already completed; skipping",
			logging.String(logging.FieldEventType, "rename_skipped"),
			logging.String("new_file_name", a.NewFileName),
		)
		return errAlreadyRenamed
	}
	if a.NewFileName == "" {
		return fmt.Errorf("%w: %s", ErrNewFileNameUnset, payload.key())
	}

	source := filepath.Join(payload.Directory, payload.OriginalFileName)
	destination := filepath.Join(payload.Directory, a.NewFileName)
	if _, err := os.Lstat(destination); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, destination)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat destination: %w", err)
	}
	if err := fileutil.RenameNoClobber(source, destination); err != nil {
		if errors.Is(err, fileutil.ErrDestinationExists) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, destination)
		}
		return fmt.Errorf("rename %s: %w", source, err)
	}
	if err := e.store.MarkRenameCompleted(ctx, a.Key()); err != nil {
		return fmt.Errorf("file renamed to %s but association not updated: %w", destination, err)
	}

	metrics.RenameJobs.WithLabelValues("success").Inc()
	logger.Info("renamed match video",
		logging.String(logging.FieldEventType, "rename_completed"),
		logging.String(logging.FieldMatchKey, a.MatchKey),
		logging.String("source", source),
		logging.String("destination", destination),
	)
	if e.broadcaster != nil {
		e.broadcaster.NotifyAssociationUpdated(a.EventKey, a.FilePath)
	}
	if e.notifier != nil {
		if err := e.notifier.Publish(ctx, notifications.EventRenameCompleted, notifications.Payload{
			"videoFile":   a.VideoFile,
			"newFileName": a.NewFileName,
			"videoLabel":  a.VideoLabel,
		}); err != nil {
			logger.Warn("rename notification failed", logging.Error(err))
		}
	}
	return nil
}
