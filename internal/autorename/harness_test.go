package autorename_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"frcvideos/internal/autorename"
	"frcvideos/internal/broadcast"
	"frcvideos/internal/jobqueue"
	"frcvideos/internal/match"
	"frcvideos/internal/notifications"
	"frcvideos/internal/testsupport"
)

const eventKey = "2023gadal"

var (
	matchDay = time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC)
	passTime = matchDay.Add(18 * time.Hour)
)

func at(hour, minute, second int) time.Time {
	return matchDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

type settingsStub struct {
	mu       sync.Mutex
	settings autorename.Settings
}

func (s *settingsStub) AutoRename(context.Context) (autorename.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

type matchesStub struct {
	matches []match.Match
	err     error
	calls   int
}

func (m *matchesStub) Matches(context.Context, string, match.PlayoffsType) ([]match.Match, error) {
	m.calls++
	return m.matches, m.err
}

type proberStub map[string]float64

func (p proberStub) Duration(_ context.Context, path string) (float64, error) {
	if d, ok := p[filepath.Base(path)]; ok {
		return d, nil
	}
	return 0, errors.New("probe unavailable")
}

type notifierStub struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *notifierStub) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *notifierStub) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e == event {
			total++
		}
	}
	return total
}

type harness struct {
	t        *testing.T
	videoDir string
	store    *autorename.Store
	queue    *jobqueue.Queue
	clock    *testsupport.StubClock
	settings *settingsStub
	matches  *matchesStub
	prober   proberStub
	hub      *broadcast.Hub
	notifier *notifierStub
	matcher  *autorename.Matcher
	executor *autorename.Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDatabase(t, cfg)
	clk := testsupport.NewStubClock(passTime)

	h := &harness{
		t:        t,
		videoDir: cfg.Paths.VideoDir,
		store:    autorename.NewStore(db, clk),
		queue:    jobqueue.New(db, jobqueue.WithClock(clk)),
		clock:    clk,
		settings: &settingsStub{settings: autorename.Settings{
			Enabled:                      true,
			EventKey:                     eventKey,
			PlayoffsType:                 match.DoubleElimination,
			VideoDir:                     cfg.Paths.VideoDir,
			Location:                     time.UTC,
			MaxStartTimeDiffSecStrong:    60,
			MaxStartTimeDiffSecWeak:      300,
			MinExpectedVideoDurationSecs: 90,
			MaxExpectedVideoDurationSecs: 600,
			FileNamePatterns:             []string{"yyyy-MM-dd HH-mm-ss"},
			RenameJobDelaySecs:           300,
			MaxAssociationAttempts:       3,
		}},
		matches:  &matchesStub{},
		prober:   proberStub{},
		hub:      broadcast.NewHub(64),
		notifier: &notifierStub{},
	}
	h.matcher = autorename.NewMatcher(autorename.Dependencies{
		Store:       h.store,
		Queue:       h.queue,
		Settings:    h.settings,
		Matches:     h.matches,
		Prober:      h.prober,
		Broadcaster: h.hub,
		Notifier:    h.notifier,
		Clock:       clk,
		LockPath:    filepath.Join(cfg.Paths.DataDir, "autorename-pass.lock"),
	})
	h.executor = autorename.NewExecutor(h.store, h.hub, h.notifier, nil)
	return h
}

func (h *harness) configure(fn func(*autorename.Settings)) {
	h.settings.mu.Lock()
	defer h.settings.mu.Unlock()
	fn(&h.settings.settings)
}

func (h *harness) addMatch(key string, start time.Time) {
	h.t.Helper()
	parsed, err := match.ParseKey(key, match.DoubleElimination)
	if err != nil {
		h.t.Fatalf("parse %s: %v", key, err)
	}
	h.matches.matches = append(h.matches.matches, match.Match{Key: parsed, StartTime: start})
}

// addVideo writes label/name under the video dir with the given probed
// duration; a negative duration leaves the probe unavailable.
func (h *harness) addVideo(label, name string, duration float64) string {
	h.t.Helper()
	rel := testsupport.WriteRecording(h.t, h.videoDir, label+"/"+name, 16)
	if duration >= 0 {
		h.prober[name] = duration
	}
	return rel
}

func (h *harness) run() autorename.PassSummary {
	h.t.Helper()
	summary, err := h.matcher.Run(context.Background(), autorename.RunOptions{})
	if err != nil {
		h.t.Fatalf("Run: %v", err)
	}
	return summary
}

func (h *harness) association(filePath string) *autorename.Association {
	h.t.Helper()
	a, err := h.store.Get(context.Background(), autorename.Key{EventKey: eventKey, FilePath: filePath})
	if err != nil {
		h.t.Fatalf("Get %s: %v", filePath, err)
	}
	if a == nil {
		h.t.Fatalf("association %s not found", filePath)
	}
	return a
}

func (h *harness) renameJob(filePath string) *jobqueue.Job {
	h.t.Helper()
	job, err := h.queue.GetJobByKey(context.Background(), autorename.Key{EventKey: eventKey, FilePath: filePath}.JobKey())
	if err != nil {
		h.t.Fatalf("GetJobByKey: %v", err)
	}
	return job
}

func (h *harness) highWaterMark(label string) string {
	h.t.Helper()
	meta, err := h.store.Metadata(context.Background(), eventKey, label)
	if err != nil {
		h.t.Fatalf("Metadata: %v", err)
	}
	if meta == nil {
		return ""
	}
	return meta.LastStrongAssociationMatchKey
}
