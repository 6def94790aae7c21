// Package daemonrun assembles the frcvideos daemon process: logging, the
// database, every auto-rename component and the daemon lifecycle.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"frcvideos/internal/autorename"
	"frcvideos/internal/broadcast"
	"frcvideos/internal/config"
	"frcvideos/internal/daemon"
	"frcvideos/internal/daemonctl"
	"frcvideos/internal/database"
	"frcvideos/internal/jobqueue"
	"frcvideos/internal/logging"
	"frcvideos/internal/matchlist"
	"frcvideos/internal/media/ffprobe"
	"frcvideos/internal/notifications"
	"frcvideos/internal/preflight"
	"frcvideos/internal/settings"
)

const (
	eventHubCapacity = 1024
	currentLogName   = "frcvideos.log"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the frcvideos daemon and blocks until the context is cancelled
// or the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("frcvideos-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		FilePath:    logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update frcvideos.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "frcvideos-*.log", logPath)

	pidPath := daemonctl.PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	db, err := database.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open database failed", "database_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check data_dir permissions and free space"),
		)
		return err
	}

	d, err := Assemble(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	logDependencySnapshot(signalCtx, logger, cfg, d)

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other instance or free api_bind"),
			logging.String(logging.FieldImpact, "no recordings will be matched or renamed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("frcvideos daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// Assemble wires every component on top of db and returns an unstarted
// daemon.
func Assemble(cfg *config.Config, db *database.DB, logger *slog.Logger) (*daemon.Daemon, error) {
	return daemon.New(cfg, Components(cfg, db, logger), logger)
}

// Components wires the auto-rename services on top of db. The CLI uses it
// to run passes and overrides without a daemon.
func Components(cfg *config.Config, db *database.DB, logger *slog.Logger) daemon.Components {
	tba, err := matchlist.NewClient(cfg.TBA.APIKey, cfg.TBA.BaseURL,
		matchlist.WithTimeout(time.Duration(cfg.TBA.RequestTimeoutSecs)*time.Second))
	if err != nil {
		// Passes fail until a key is configured; the API still serves.
		logging.WarnWithContext(logger, "match list client unavailable", "tba_client_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set tba.api_key or TBA_API_KEY"),
			logging.String(logging.FieldImpact, "matching passes fail until The Blue Alliance is configured"),
		)
	}
	var fetcher matchlist.Fetcher = unavailableFetcher{err: err}
	if tba != nil {
		fetcher = tba
	}
	matches := matchlist.NewService(fetcher, time.Duration(cfg.TBA.CacheTTLSecs)*time.Second, logger)

	store := autorename.NewStore(db, nil)
	queue := jobqueue.New(db)
	provider := settings.NewProvider(settings.NewStore(db, nil), cfg)
	hub := broadcast.NewHub(eventHubCapacity)
	notifier := notifications.NewService(cfg)

	runner := jobqueue.NewRunner(queue, logger, jobqueue.RunnerOptions{
		Concurrency:  cfg.Jobs.Concurrency,
		PollInterval: time.Duration(cfg.Jobs.PollIntervalSecs) * time.Second,
		LockTimeout:  time.Duration(cfg.Jobs.LockTimeoutSecs) * time.Second,
	})
	runner.Register(autorename.RenameTask, autorename.NewExecutor(store, hub, notifier, logger).Handler())

	matcher := autorename.NewMatcher(autorename.Dependencies{
		Store:       store,
		Queue:       queue,
		Settings:    provider,
		Matches:     matches,
		Prober:      ffprobe.Prober{Binary: cfg.FFprobeBinary(), MaxFileSize: cfg.AutoRename.MaxProbeFileSizeBytes},
		Broadcaster: hub,
		Notifier:    notifier,
		Logger:      logger,
		LockPath:    PassLockPath(cfg),
	})

	return daemon.Components{
		DB:       db,
		Store:    store,
		Queue:    queue,
		Runner:   runner,
		Matcher:  matcher,
		Settings: provider,
		Matches:  matches,
		Events:   hub,
	}
}

// PassLockPath is the advisory lock shared by daemon and CLI passes.
func PassLockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "autorename-pass.lock")
}

// CurrentLogPath points at the most recent daemon run's log.
func CurrentLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, currentLogName)
}

type unavailableFetcher struct {
	err error
}

func (f unavailableFetcher) EventMatches(context.Context, string) ([]matchlist.TBAMatch, error) {
	return nil, f.err
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config, d *daemon.Daemon) {
	statuses := preflight.CheckSystemDeps(cfg)
	d.SetDependencies(statuses)
	for _, status := range statuses {
		logger.Info("dependency snapshot",
			logging.String(logging.FieldEventType, "dependency_snapshot"),
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.Bool("available", status.Available),
		)
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String(logging.FieldEventKey, cfg.Event.Key),
		logging.String("video_dir", cfg.Paths.VideoDir),
		logging.Bool("tba_key_present", strings.TrimSpace(cfg.TBA.APIKey) != ""),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("auto_rename_enabled", cfg.AutoRename.Enabled),
	)
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "matching passes may fail until resolved"),
		)
	}
}
