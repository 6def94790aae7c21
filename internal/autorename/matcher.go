package autorename

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"frcvideos/internal/clock"
	"frcvideos/internal/fileutil"
	"frcvideos/internal/logging"
	"frcvideos/internal/match"
	"frcvideos/internal/metrics"
	"frcvideos/internal/notifications"
)

const (
	decisionClassification = "auto_rename_classification"
	listDepth              = 2
	overrideLockRetry      = 100 * time.Millisecond
)

// SettingsProvider resolves the tunables of a pass.
type SettingsProvider interface {
	AutoRename(ctx context.Context) (Settings, error)
}

// MatchSource returns the scored matches of an event.
type MatchSource interface {
	Matches(ctx context.Context, eventKey string, playoffs match.PlayoffsType) ([]match.Match, error)
}

// DurationProber reads a recording's length in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Dependencies are the collaborators of a Matcher. Broadcaster, Notifier,
// Logger and Clock are optional.
type Dependencies struct {
	Store       *Store
	Queue       JobQueue
	Settings    SettingsProvider
	Matches     MatchSource
	Prober      DurationProber
	Broadcaster Broadcaster
	Notifier    notifications.Service
	Logger      *slog.Logger
	Clock       clock.Clock
	// LockPath is the advisory lock file serializing passes across
	// processes. Empty disables cross-process locking.
	LockPath string
}

// RunOptions adjusts a single pass.
type RunOptions struct {
	// Force runs the pass even when auto-rename is disabled.
	Force bool
}

// PassSummary reports what a matching pass did.
type PassSummary struct {
	RunID           string        `json:"runId"`
	EventKey        string        `json:"eventKey,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	Duration        time.Duration `json:"duration"`
	Skipped         bool          `json:"skipped,omitempty"`
	SkipReason      string        `json:"skipReason,omitempty"`
	FilesSeen       int           `json:"filesSeen"`
	NewAssociations int           `json:"newAssociations"`
	Processed       int           `json:"processed"`
	Strong          int           `json:"strong"`
	Weak            int           `json:"weak"`
	Unmatched       int           `json:"unmatched"`
	Failed          int           `json:"failed"`
	Downgraded      int           `json:"downgraded"`
	Errors          int           `json:"errors"`
}

// Matcher runs association passes and operator overrides.
type Matcher struct {
	store       *Store
	guard       *Guard
	coordinator *Coordinator
	settings    SettingsProvider
	matches     MatchSource
	prober      DurationProber
	broadcaster Broadcaster
	notifier    notifications.Service
	logger      *slog.Logger
	clock       clock.Clock
	lockPath    string

	mu       sync.Mutex
	lastMu   sync.RWMutex
	lastPass *PassSummary
}

// NewMatcher constructs a Matcher from deps.
func NewMatcher(deps Dependencies) *Matcher {
	return &Matcher{
		store:       deps.Store,
		guard:       NewGuard(deps.Store),
		coordinator: NewCoordinator(deps.Queue),
		settings:    deps.Settings,
		matches:     deps.Matches,
		prober:      deps.Prober,
		broadcaster: deps.Broadcaster,
		notifier:    deps.Notifier,
		logger:      logging.NewComponentLogger(deps.Logger, "autorename"),
		clock:       clock.OrReal(deps.Clock),
		lockPath:    deps.LockPath,
	}
}

// LastPass returns the summary of the most recent completed pass.
func (m *Matcher) LastPass() (PassSummary, bool) {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	if m.lastPass == nil {
		return PassSummary{}, false
	}
	return *m.lastPass, true
}

// Run executes one matching pass. Overlapping passes fail with
// ErrPassInProgress.
func (m *Matcher) Run(ctx context.Context, opts RunOptions) (PassSummary, error) {
	if !m.mu.TryLock() {
		metrics.MatchingPasses.WithLabelValues("skipped").Inc()
		return PassSummary{}, ErrPassInProgress
	}
	defer m.mu.Unlock()

	unlock, err := m.lockFile(ctx, false)
	if err != nil {
		if errors.Is(err, ErrPassInProgress) {
			metrics.MatchingPasses.WithLabelValues("skipped").Inc()
		}
		return PassSummary{}, err
	}
	defer unlock()

	summary := PassSummary{RunID: uuid.NewString(), StartedAt: m.clock.Now()}
	ctx = logging.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, m.logger)
	start := time.Now()

	err = m.run(ctx, logger, opts, &summary)
	summary.Duration = time.Since(start)
	metrics.MatchingPassDuration.Observe(summary.Duration.Seconds())

	switch {
	case err != nil:
		metrics.MatchingPasses.WithLabelValues("error").Inc()
		logging.ErrorWithContext(logger, "matching pass failed", "matching_pass_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check video_dir, event settings and The Blue Alliance access"),
		)
	case summary.Skipped:
		metrics.MatchingPasses.WithLabelValues("skipped").Inc()
		logger.Debug("matching pass skipped", logging.String("reason", summary.SkipReason))
	default:
		metrics.MatchingPasses.WithLabelValues("ok").Inc()
		logger.Info("matching pass completed",
			logging.String(logging.FieldEventType, "matching_pass_completed"),
			logging.String(logging.FieldEventKey, summary.EventKey),
			logging.Int("files_seen", summary.FilesSeen),
			logging.Int("new_associations", summary.NewAssociations),
			logging.Int("processed", summary.Processed),
			logging.Int("strong", summary.Strong),
			logging.Int("weak", summary.Weak),
			logging.Int("failed", summary.Failed),
			logging.Int("errors", summary.Errors),
			logging.Duration("duration", summary.Duration),
		)
	}

	m.lastMu.Lock()
	recorded := summary
	m.lastPass = &recorded
	m.lastMu.Unlock()
	return summary, err
}

// lockFile takes the cross-process pass lock. With wait set it retries until
// ctx is done.
func (m *Matcher) lockFile(ctx context.Context, wait bool) (func(), error) {
	if m.lockPath == "" {
		return func() {}, nil
	}
	lock := flock.New(m.lockPath)
	var (
		locked bool
		err    error
	)
	if wait {
		locked, err = lock.TryLockContext(ctx, overrideLockRetry)
	} else {
		locked, err = lock.TryLock()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrPassInProgress
		}
		return nil, fmt.Errorf("acquire pass lock: %w", err)
	}
	if !locked {
		return nil, ErrPassInProgress
	}
	return func() { _ = lock.Unlock() }, nil
}

func (m *Matcher) run(ctx context.Context, logger *slog.Logger, opts RunOptions, summary *PassSummary) error {
	settings, err := m.settings.AutoRename(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	summary.EventKey = settings.EventKey
	if !settings.Enabled && !opts.Force {
		summary.Skipped, summary.SkipReason = true, "auto rename disabled"
		return nil
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	patterns, err := CompileDatePatterns(settings.FileNamePatterns)
	if err != nil {
		return err
	}

	if err := m.observeFiles(ctx, logger, settings, patterns, summary); err != nil {
		return err
	}

	matches, err := m.matches.Matches(ctx, settings.EventKey, settings.PlayoffsType)
	if err != nil {
		// Without a match list every association would burn an attempt, so
		// classification waits for the next pass.
		return fmt.Errorf("fetch matches for %s: %w", settings.EventKey, err)
	}

	unmatched, err := m.store.ListUnmatched(ctx, settings.EventKey)
	if err != nil {
		return err
	}
	for _, a := range unmatched {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.Processed++
		if err := m.process(ctx, logger, settings, matches, a, summary); err != nil {
			summary.Errors++
			logging.WarnWithContext(logger, "association processing failed; will retry next pass", "association_process_failed",
				logging.String(logging.FieldFilePath, a.FilePath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "association stays unmatched until the next pass"),
			)
		}
	}
	return nil
}

// observeFiles records an association for every new {label}/{file} entry.
func (m *Matcher) observeFiles(ctx context.Context, logger *slog.Logger, settings Settings, patterns []*DatePattern, summary *PassSummary) error {
	files, err := fileutil.List(settings.VideoDir, "*", listDepth)
	if err != nil {
		return err
	}
	statuses, err := m.store.Statuses(ctx, settings.EventKey)
	if err != nil {
		return err
	}
	targets, err := m.store.RenameTargets(ctx)
	if err != nil {
		return err
	}

	for _, rel := range files {
		rel = filepath.ToSlash(rel)
		label, file, ok := strings.Cut(rel, "/")
		if !ok || strings.Contains(file, "/") {
			continue
		}
		summary.FilesSeen++
		if _, known := statuses[rel]; known {
			continue
		}
		if _, isTarget := targets[renameTargetKey(label, file)]; isTarget {
			continue
		}

		a := &Association{
			EventKey:               settings.EventKey,
			FilePath:               rel,
			VideoFile:              file,
			VideoLabel:             label,
			Status:                 StatusUnmatched,
			MaxAssociationAttempts: settings.MaxAssociationAttempts,
		}
		ts, parsed := ParseVideoTimestamp(file, patterns, settings.location())
		if parsed {
			a.VideoTimestamp = &ts
		} else {
			a.Status = StatusFailed
			a.StatusReason = ReasonUnparseableDate
		}
		created, err := m.store.Insert(ctx, a)
		if err != nil {
			summary.Errors++
			logging.WarnWithContext(logger, "failed to record new video", "association_insert_failed",
				logging.String(logging.FieldFilePath, rel),
				logging.Error(err),
			)
			continue
		}
		if !created {
			continue
		}
		summary.NewAssociations++
		m.notifyUpdated(a)
		if !parsed {
			summary.Failed++
			metrics.Classifications.WithLabelValues(string(StatusFailed)).Inc()
			logger.Info("association failed",
				logging.Args(append(logging.DecisionAttrs(decisionClassification, string(StatusFailed), ReasonUnparseableDate),
					logging.String(logging.FieldFilePath, rel),
					logging.String("patterns", strings.Join(settings.FileNamePatterns, ",")),
				)...)...,
			)
			m.notifyFailed(ctx, logger, a)
		}
	}
	return nil
}

func (m *Matcher) process(ctx context.Context, logger *slog.Logger, settings Settings, matches []match.Match, a *Association, summary *PassSummary) error {
	logger = logger.With(
		logging.String(logging.FieldFilePath, a.FilePath),
		logging.String(logging.FieldVideoLabel, a.VideoLabel),
	)
	a.MaxAssociationAttempts = settings.MaxAssociationAttempts

	candidate, diff, found := NearestMatch(matches, *a.VideoTimestamp)
	classification := Classification{Status: StatusUnmatched, Reason: "no scored matches"}
	if found {
		duration := m.probe(ctx, logger, settings, a)
		classification = Classify(settings.thresholds(), diff, duration)
		diffSecs := DiffSeconds(diff)
		a.VideoDurationSecs = duration
		a.VideoDurationAbnormal = classification.VideoDurationAbnormal
		a.StartTimeDiffSecs = &diffSecs
		a.StartTimeDiffAbnormal = classification.StartTimeDiffAbnormal
	}

	var advance bool
	if classification.Status != StatusUnmatched {
		check, err := m.guard.Check(ctx, a.EventKey, a.VideoLabel, candidate.Key)
		if err != nil {
			return err
		}
		a.OrderingIssueMatchKey, a.OrderingIssueMatchName = "", ""
		if check.Issue {
			a.OrderingIssueMatchKey = check.Stored.String()
			a.OrderingIssueMatchName = check.StoredName
			if classification.Status == StatusStrong {
				classification.Status = StatusWeak
				classification.Reason = ReasonOrderingConflict
				summary.Downgraded++
				metrics.OrderingDowngrades.Inc()
			}
		}
		advance = classification.Status == StatusStrong
	}

	switch classification.Status {
	case StatusStrong:
		if err := m.promote(ctx, settings, a, candidate.Key, classification.Reason); err != nil {
			return err
		}
		summary.Strong++
	case StatusWeak:
		a.Status = StatusWeak
		a.StatusReason = classification.Reason
		a.MatchKey, a.MatchName = candidate.Key.String(), candidate.Key.Name()
		if err := m.store.Update(ctx, a); err != nil {
			return err
		}
		summary.Weak++
	default:
		a.AssociationAttempts++
		if a.AssociationAttempts >= a.MaxAssociationAttempts {
			a.AssociationAttempts = a.MaxAssociationAttempts
			a.Status = StatusFailed
			a.StatusReason = ReasonMaxAttempts
			classification.Status = StatusFailed
			classification.Reason = ReasonMaxAttempts
		}
		if err := m.store.Update(ctx, a); err != nil {
			return err
		}
		if a.Status == StatusFailed {
			summary.Failed++
			m.notifyFailed(ctx, logger, a)
		} else {
			summary.Unmatched++
		}
	}

	if advance {
		if err := m.store.SetHighWaterMark(ctx, a.EventKey, a.VideoLabel, candidate.Key.String(), candidate.Key.Name()); err != nil {
			return err
		}
	}

	metrics.Classifications.WithLabelValues(string(classification.Status)).Inc()
	attrs := logging.DecisionAttrs(decisionClassification, string(classification.Status), classification.Reason)
	attrs = append(attrs,
		logging.Int("association_attempts", a.AssociationAttempts),
		logging.Bool("video_duration_abnormal", a.VideoDurationAbnormal),
		logging.Bool("start_time_diff_abnormal", a.StartTimeDiffAbnormal),
	)
	if found {
		attrs = append(attrs,
			logging.String(logging.FieldMatchKey, candidate.Key.String()),
			logging.Int64("start_time_diff_secs", DiffSeconds(diff)),
		)
	}
	if a.OrderingIssueMatchKey != "" {
		attrs = append(attrs, logging.String("ordering_issue_match_key", a.OrderingIssueMatchKey))
	}
	logger.Info("association classified", logging.Args(attrs...)...)
	m.notifyUpdated(a)
	return nil
}

// promote marks a STRONG and schedules its rename. The job is scheduled
// before the record changes so a queue failure leaves the association
// unmatched for the next pass.
func (m *Matcher) promote(ctx context.Context, settings Settings, a *Association, key match.MatchKey, reason string) error {
	newName := key.VideoFileName(path.Ext(a.VideoFile))
	renameAfter := m.clock.Now().Add(settings.RenameDelay())
	staged := *a
	staged.NewFileName = newName
	job, err := m.coordinator.ScheduleRename(ctx, &staged, m.fileDirectory(settings, a), renameAfter, 0)
	if err != nil {
		return err
	}
	a.Status = StatusStrong
	a.StatusReason = reason
	a.MatchKey, a.MatchName = key.String(), key.Name()
	a.NewFileName = newName
	a.RenameJobID = job.ID
	a.RenameAfter = &renameAfter
	return m.store.Update(ctx, a)
}

func (m *Matcher) fileDirectory(settings Settings, a *Association) string {
	return filepath.Dir(filepath.Join(settings.VideoDir, filepath.FromSlash(a.FilePath)))
}

func (m *Matcher) probe(ctx context.Context, logger *slog.Logger, settings Settings, a *Association) *float64 {
	if m.prober == nil {
		return nil
	}
	full := filepath.Join(settings.VideoDir, filepath.FromSlash(a.FilePath))
	seconds, err := m.prober.Duration(ctx, full)
	if err != nil {
		logger.Debug("video duration unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "duration_probe_unavailable"),
		)
		return nil
	}
	return &seconds
}

func (m *Matcher) notifyUpdated(a *Association) {
	if m.broadcaster != nil {
		m.broadcaster.NotifyAssociationUpdated(a.EventKey, a.FilePath)
	}
}

func (m *Matcher) notifyFailed(ctx context.Context, logger *slog.Logger, a *Association) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, notifications.EventAssociationFailed, notifications.Payload{
		"filePath": a.FilePath,
		"reason":   a.StatusReason,
	}); err != nil {
		logger.Warn("association failure notification failed", logging.Error(err))
	}
}
