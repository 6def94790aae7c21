package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"frcvideos/internal/daemonctl"
	"frcvideos/internal/testsupport"
)

func holdLock(t *testing.T, path string) *flock.Flock {
	t.Helper()
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })
	return lock
}

func TestRunningFollowsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	running, err := daemonctl.Running(cfg)
	if err != nil || running {
		t.Fatalf("Running without holder = %v, %v", running, err)
	}

	lock := holdLock(t, daemonctl.LockPath(cfg))
	running, err = daemonctl.Running(cfg)
	if err != nil || !running {
		t.Fatalf("Running with holder = %v, %v", running, err)
	}

	_ = lock.Unlock()
	running, err = daemonctl.Running(cfg)
	if err != nil || running {
		t.Fatalf("Running after release = %v, %v", running, err)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemonctl.Stop(context.Background(), cfg, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopRefusesOwnProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	holdLock(t, daemonctl.LockPath(cfg))
	if err := os.WriteFile(daemonctl.PIDPath(cfg), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.Stop(context.Background(), cfg, time.Second); err == nil {
		t.Fatal("expected refusal to signal the test process")
	}
}

func TestReadPIDRejectsGarbage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.WriteFile(daemonctl.PIDPath(cfg), []byte("not-a-pid"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.ReadPID(daemonctl.PIDPath(cfg)); err == nil {
		t.Fatal("expected malformed pid error")
	}
}

func TestStopEscalatesWhenLockStaysHeld(t *testing.T) {
	sleepPath, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	cfg := testsupport.NewConfig(t)
	holdLock(t, daemonctl.LockPath(cfg))

	child := exec.Command(sleepPath, "30")
	if err := child.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}
	t.Cleanup(func() {
		_ = child.Process.Kill()
		_ = child.Wait()
	})
	if err := os.WriteFile(daemonctl.PIDPath(cfg), []byte(strconv.Itoa(child.Process.Pid)), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}

	result, err := daemonctl.Stop(context.Background(), cfg, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !result.ForcedKill || result.PID != child.Process.Pid {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(daemonctl.PIDPath(cfg)); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err = %v", err)
	}
}
