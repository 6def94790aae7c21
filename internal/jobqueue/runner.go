package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"frcvideos/internal/logging"
	"frcvideos/internal/metrics"
)

// Handler executes one job. A nil return completes the job.
type Handler func(ctx context.Context, job *Job) error

// RunnerOptions configures worker behavior.
type RunnerOptions struct {
	Concurrency        int
	PollInterval       time.Duration
	LockTimeout        time.Duration
	ErrorRetryInterval time.Duration
}

// Runner polls the queue with a fixed pool of workers.
type Runner struct {
	queue    *Queue
	logger   *slog.Logger
	opts     RunnerOptions
	workerID string

	mu       sync.Mutex
	handlers map[string]Handler
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	wake     chan struct{}
}

// NewRunner constructs a Runner for q.
func NewRunner(q *Queue, logger *slog.Logger, opts RunnerOptions) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ErrorRetryInterval <= 0 {
		opts.ErrorRetryInterval = 10 * time.Second
	}
	return &Runner{
		queue:    q,
		logger:   logging.NewComponentLogger(logger, "jobqueue"),
		opts:     opts,
		workerID: "worker-" + uuid.NewString(),
		handlers: make(map[string]Handler),
		wake:     make(chan struct{}, 1),
	}
}

// Register binds handler to task. Registering after Start has no effect on
// running workers' task list until restart.
func (r *Runner) Register(task string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[task] = handler
}

// Tasks lists registered task names.
func (r *Runner) Tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]string, 0, len(r.handlers))
	for task := range r.handlers {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	return tasks
}

// Nudge wakes an idle worker so a freshly added job is picked up before the
// next poll.
func (r *Runner) Nudge() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Start launches the workers and the stale lock reaper.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("job runner already running")
	}
	if len(r.handlers) == 0 {
		return errors.New("no job handlers registered")
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	tasks := make([]string, 0, len(r.handlers))
	for task := range r.handlers {
		tasks = append(tasks, task)
	}
	r.wg.Add(r.opts.Concurrency + 1)
	for i := 0; i < r.opts.Concurrency; i++ {
		workerID := fmt.Sprintf("%s-%d", r.workerID, i)
		go r.runWorker(runCtx, workerID, tasks)
	}
	go r.runReaper(runCtx)

	r.logger.Info("job runner started",
		logging.Int("concurrency", r.opts.Concurrency),
		logging.Any("tasks", tasks),
		logging.String(logging.FieldEventType, "job_runner_started"),
	)
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

// Running reports whether workers are active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// RunOnce claims and executes a single due job. It reports whether a job was
// processed.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	job, err := r.queue.Claim(ctx, r.workerID, r.Tasks())
	if err != nil || job == nil {
		return false, err
	}
	r.execute(ctx, job)
	return true, nil
}

func (r *Runner) runWorker(ctx context.Context, workerID string, tasks []string) {
	defer r.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := r.queue.Claim(ctx, workerID, tasks)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("failed to claim job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_claim_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			r.sleep(ctx, r.opts.ErrorRetryInterval)
			continue
		}
		if job == nil {
			r.sleep(ctx, r.opts.PollInterval)
			continue
		}
		r.execute(ctx, job)
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-r.wake:
	case <-timer.C:
	}
}

func (r *Runner) execute(ctx context.Context, job *Job) {
	logger := r.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldTask, job.Task),
		logging.Int("attempt", job.Attempts),
		logging.Int("max_attempts", job.MaxAttempts),
	)
	r.mu.Lock()
	handler := r.handlers[job.Task]
	r.mu.Unlock()

	// Jobs finish against a context detached from shutdown so a rename is
	// never abandoned between the filesystem move and the database update.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stopHeartbeat := r.startHeartbeat(jobCtx, job, logger)

	start := time.Now()
	var err error
	if handler == nil {
		err = fmt.Errorf("%w: %s", ErrUnknownTask, job.Task)
	} else {
		err = r.invoke(jobCtx, handler, job)
	}
	stopHeartbeat()

	if err == nil {
		if completeErr := r.queue.Complete(jobCtx, job); completeErr != nil {
			logger.Error("failed to mark job complete", logging.Error(completeErr),
				logging.String(logging.FieldEventType, "job_complete_failed"))
		}
		metrics.JobsProcessed.WithLabelValues(job.Task, "success").Inc()
		logger.Info("job completed",
			logging.Duration("duration", time.Since(start)),
			logging.String(logging.FieldEventType, "job_completed"),
		)
		return
	}

	if failErr := r.queue.Fail(jobCtx, job, err); failErr != nil {
		logger.Error("failed to record job failure", logging.Error(failErr),
			logging.String(logging.FieldEventType, "job_fail_record_failed"))
	}
	metrics.JobsProcessed.WithLabelValues(job.Task, "failure").Inc()
	if job.Attempts >= job.MaxAttempts {
		logging.ErrorWithContext(logger, "job failed permanently", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect with 'frcvideos jobs list --failed' and retry with 'frcvideos jobs retry'"),
		)
		return
	}
	logging.WarnWithContext(logger, "job failed; will retry", "job_retry_scheduled",
		logging.Error(err),
		logging.Duration("retry_in", Backoff(job.Attempts)),
		logging.String(logging.FieldImpact, "job delayed until next attempt"),
	)
}

func (r *Runner) invoke(ctx context.Context, handler Handler, job *Job) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("job handler panic: %v", recovered)
		}
	}()
	return handler(ctx, job)
}

func (r *Runner) startHeartbeat(ctx context.Context, job *Job, logger *slog.Logger) func() {
	interval := r.opts.LockTimeout / 3
	if interval <= 0 {
		return func() {}
	}
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := r.queue.Touch(hbCtx, job); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("job heartbeat failed", logging.Error(err))
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) runReaper(ctx context.Context) {
	defer r.wg.Done()
	if r.opts.LockTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(r.opts.LockTimeout / 2)
	defer ticker.Stop()
	for {
		reclaimed, err := r.queue.ReclaimStale(ctx, r.opts.LockTimeout)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			r.logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
		case reclaimed > 0:
			r.logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed),
				logging.String(logging.FieldEventType, "job_reclaimed"))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
