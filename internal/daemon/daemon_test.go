package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"frcvideos/internal/api"
	"frcvideos/internal/autorename"
	"frcvideos/internal/broadcast"
	"frcvideos/internal/config"
	"frcvideos/internal/daemon"
	"frcvideos/internal/deps"
	"frcvideos/internal/jobqueue"
	"frcvideos/internal/logging"
	"frcvideos/internal/matchlist"
	"frcvideos/internal/settings"
	"frcvideos/internal/testsupport"
)

type fetcherStub struct {
	matches []matchlist.TBAMatch
}

func (f fetcherStub) EventMatches(context.Context, string) ([]matchlist.TBAMatch, error) {
	return f.matches, nil
}

type proberStub float64

func (p proberStub) Duration(context.Context, string) (float64, error) {
	return float64(p), nil
}

type fixture struct {
	cfg    *config.Config
	store  *autorename.Store
	daemon *daemon.Daemon
}

func newDaemon(t *testing.T, cfg *config.Config) fixture {
	t.Helper()
	logger := logging.NewNop()
	db := testsupport.MustOpenDatabase(t, cfg)
	store := autorename.NewStore(db, nil)
	queue := jobqueue.New(db)
	runner := jobqueue.NewRunner(queue, logger, jobqueue.RunnerOptions{PollInterval: 50 * time.Millisecond})
	provider := settings.NewProvider(settings.NewStore(db, nil), cfg)
	actual := time.Date(2023, 3, 4, 10, 0, 0, 0, time.UTC).Unix()
	matches := matchlist.NewService(fetcherStub{matches: []matchlist.TBAMatch{{
		Key:         "2023gadal_qm1",
		EventKey:    "2023gadal",
		CompLevel:   "qm",
		SetNumber:   1,
		MatchNumber: 1,
		ActualTime:  &actual,
	}}}, time.Minute, logger)
	hub := broadcast.NewHub(64)
	matcher := autorename.NewMatcher(autorename.Dependencies{
		Store:       store,
		Queue:       queue,
		Settings:    provider,
		Matches:     matches,
		Prober:      proberStub(150),
		Broadcaster: hub,
		Logger:      logger,
		LockPath:    filepath.Join(cfg.Paths.DataDir, "autorename-pass.lock"),
	})
	runner.Register(autorename.RenameTask, autorename.NewExecutor(store, hub, nil, logger).Handler())

	d, err := daemon.New(cfg, daemon.Components{
		DB:       db,
		Store:    store,
		Queue:    queue,
		Runner:   runner,
		Matcher:  matcher,
		Settings: provider,
		Matches:  matches,
		Events:   hub,
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return fixture{cfg: cfg, store: store, daemon: d}
}

func writeRecording(t *testing.T, cfg *config.Config, rel string) {
	t.Helper()
	testsupport.WriteRecording(t, cfg.Paths.VideoDir, rel, 1024)
}

func TestNewRequiresComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, daemon.Components{}, nil); err == nil {
		t.Fatal("expected error for missing components")
	}
}

func TestDaemonStartStop(t *testing.T) {
	f := newDaemon(t, testsupport.NewConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := f.daemon.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), status.PID)
	}
	if filepath.Base(status.LockFilePath) != "frcvideos.lock" {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	if err := f.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	f.daemon.Stop()
	if f.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if f.daemon.APIAddress() != "" {
		t.Fatal("expected api listener to be closed")
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	ctx := context.Background()
	if err := first.daemon.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	secondCfg := *cfg
	secondCfg.Paths.APIBind = ""
	second := newDaemon(t, &secondCfg)
	err := second.daemon.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestDaemonScanLoopClassifiesRecordings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeRecording(t, cfg, "Field 1/2023-03-04 10-00-05.mp4")
	f := newDaemon(t, cfg)
	f.daemon.SetDependencies(deps.CheckBinaries([]deps.Requirement{{Name: "Missing", Command: "clearly-not-present-binary"}}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	key := autorename.Key{EventKey: "2023gadal", FilePath: "Field 1/2023-03-04 10-00-05.mp4"}
	deadline := time.Now().Add(5 * time.Second)
	var a *autorename.Association
	for time.Now().Before(deadline) {
		got, err := f.store.Get(ctx, key)
		if err == nil && got != nil && got.Status == autorename.StatusStrong {
			a = got
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if a == nil {
		t.Fatal("scan loop never produced a strong association")
	}
	if a.NewFileName != "Qualification 1.mp4" {
		t.Fatalf("unexpected new file name %q", a.NewFileName)
	}

	status := f.daemon.Status(ctx)
	if status.AssociationCounts[string(autorename.StatusStrong)] != 1 {
		t.Fatalf("unexpected association counts %v", status.AssociationCounts)
	}
	if status.JobCounts[string(jobqueue.StateScheduled)] != 1 {
		t.Fatalf("unexpected job counts %v", status.JobCounts)
	}
	if status.LastPass == nil || status.LastPass.Strong != 1 {
		t.Fatalf("expected last pass with one strong association, got %+v", status.LastPass)
	}
	if len(status.Dependencies) != 1 || status.Dependencies[0].Available {
		t.Fatalf("unexpected dependency snapshot %+v", status.Dependencies)
	}
}

func TestDaemonServesAPI(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = "secret"
	f := newDaemon(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	addr := f.daemon.APIAddress()
	if addr == "" {
		t.Fatal("expected api listener address")
	}
	client, err := api.NewClient(addr, "secret")
	if err != nil {
		t.Fatalf("api.NewClient: %v", err)
	}
	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("client.Status: %v", err)
	}
	if !status.Running || status.EventKey != "2023gadal" || !status.AutoRenameEnabled {
		t.Fatalf("unexpected status %+v", status)
	}

	wrong, err := api.NewClient(addr, "wrong")
	if err != nil {
		t.Fatalf("api.NewClient: %v", err)
	}
	if _, err := wrong.Status(ctx); err == nil {
		t.Fatal("expected unauthorized client to fail")
	}
}
