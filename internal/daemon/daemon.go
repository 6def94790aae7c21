package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"frcvideos/internal/api"
	"frcvideos/internal/autorename"
	"frcvideos/internal/broadcast"
	"frcvideos/internal/clock"
	"frcvideos/internal/daemonctl"
	"frcvideos/internal/config"
	"frcvideos/internal/database"
	"frcvideos/internal/deps"
	"frcvideos/internal/jobqueue"
	"frcvideos/internal/logging"
	"frcvideos/internal/matchlist"
	"frcvideos/internal/settings"
)

// Components are the wired services the daemon runs. Matches and Events are
// optional.
type Components struct {
	DB       *database.DB
	Store    *autorename.Store
	Queue    *jobqueue.Queue
	Runner   *jobqueue.Runner
	Matcher  *autorename.Matcher
	Settings *settings.Provider
	Matches  *matchlist.Service
	Events   *broadcast.Hub
	Clock    clock.Clock
}

// Daemon runs the scan loop and job workers and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	comps    Components
	clock    clock.Clock
	lockPath string
	lock     *flock.Flock
	api      *apiServer

	depsMu       sync.RWMutex
	dependencies []deps.Status

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon around already wired components.
func New(cfg *config.Config, comps Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || comps.DB == nil || comps.Store == nil || comps.Queue == nil || comps.Runner == nil || comps.Matcher == nil || comps.Settings == nil {
		return nil, errors.New("daemon requires config, database, store, queue, runner, matcher and settings")
	}
	lockPath := daemonctl.LockPath(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		comps:    comps,
		clock:    clock.OrReal(comps.Clock),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then launches the job workers, the scan
// loop and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another frcvideos daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.comps.Runner.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start job runner: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.comps.Runner.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.wg.Add(1)
	go d.scanLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("frcvideos daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Duration("scan_interval", d.cfg.ScanInterval()),
	)
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.comps.Runner.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance until the file is removed"),
		)
	}
	d.running.Store(false)
	d.logger.Info("frcvideos daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the database.
func (d *Daemon) Close() error {
	d.Stop()
	return d.comps.DB.Close()
}

// APIAddress reports the bound API listener address, or "" when the API is
// disabled or not yet listening.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// SetDependencies records the dependency snapshot reported by Status.
func (d *Daemon) SetDependencies(statuses []deps.Status) {
	d.depsMu.Lock()
	d.dependencies = append([]deps.Status(nil), statuses...)
	d.depsMu.Unlock()
}

func (d *Daemon) scanLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := d.cfg.ScanInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d.runPass(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runPass runs one scheduled pass. Overlaps with triggered passes are
// expected and skipped quietly.
func (d *Daemon) runPass(ctx context.Context) {
	_, err := d.comps.Matcher.Run(ctx, autorename.RunOptions{})
	switch {
	case err == nil:
	case errors.Is(err, autorename.ErrPassInProgress):
		d.logger.Debug("scheduled pass skipped; another pass is running")
	case ctx.Err() != nil:
	default:
		d.logger.Debug("scheduled pass ended with error", logging.Error(err))
	}
}

// RefreshMatches drops cached match lists for the active event.
func (d *Daemon) RefreshMatches(ctx context.Context) {
	if d.comps.Matches == nil {
		return
	}
	eventKey := d.cfg.Event.Key
	if resolved, err := d.comps.Settings.AutoRename(ctx); err == nil && resolved.EventKey != "" {
		eventKey = resolved.EventKey
	}
	d.comps.Matches.Invalidate(eventKey)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		DatabasePath:      d.comps.DB.Path(),
		LockFilePath:      d.lockPath,
		EventKey:          d.cfg.Event.Key,
		AssociationCounts: map[string]int{},
		JobCounts:         map[string]int{},
	}

	if resolved, err := d.comps.Settings.AutoRename(ctx); err == nil {
		status.EventKey = resolved.EventKey
		status.AutoRenameEnabled = resolved.Enabled
	} else {
		d.logger.Debug("status settings unavailable", logging.Error(err))
	}

	if status.EventKey != "" {
		statuses, err := d.comps.Store.Statuses(ctx, status.EventKey)
		if err != nil {
			d.logger.Debug("status association counts unavailable", logging.Error(err))
		}
		for _, st := range statuses {
			status.AssociationCounts[string(st)]++
		}
	}

	jobs, err := d.comps.Queue.List(ctx, jobqueue.ListFilter{})
	if err != nil {
		d.logger.Debug("status job counts unavailable", logging.Error(err))
	}
	now := d.clock.Now()
	for _, job := range jobs {
		status.JobCounts[string(job.State(now))]++
	}

	if last, ok := d.comps.Matcher.LastPass(); ok {
		summary := api.FromPassSummary(last)
		status.LastPass = &summary
	}

	d.depsMu.RLock()
	status.Dependencies = make([]api.DependencyStatus, len(d.dependencies))
	for i, dep := range d.dependencies {
		status.Dependencies[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	d.depsMu.RUnlock()
	return status
}
