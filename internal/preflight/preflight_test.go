package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"frcvideos/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func tbaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("X-TBA-Auth-Key") != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckTBA_OK(t *testing.T) {
	srv := tbaServer(t)
	result := CheckTBA(context.Background(), srv.URL+"/", "good-key")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckTBA_BadKey(t *testing.T) {
	srv := tbaServer(t)
	result := CheckTBA(context.Background(), srv.URL, "bad-key")
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if result.Detail != "auth failed (invalid api key)" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckTBA_MissingValues(t *testing.T) {
	if result := CheckTBA(context.Background(), "", "key"); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
	if result := CheckTBA(context.Background(), "http://localhost", " "); result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsEveryCheck(t *testing.T) {
	srv := tbaServer(t)
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.VideoDir = t.TempDir()
	cfg.Event.Key = "2023gadal"
	cfg.TBA.BaseURL = srv.URL
	cfg.TBA.APIKey = "good-key"
	cfg.AutoRename.FFprobeBinary = "clearly-not-present-ffprobe"

	results := RunAll(context.Background(), &cfg)
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Data directory", "Video directory", "Event", "The Blue Alliance"} {
		r, ok := byName[name]
		if !ok {
			t.Fatalf("missing check %q in %+v", name, results)
		}
		if !r.Passed {
			t.Errorf("check %q failed: %s", name, r.Detail)
		}
	}
	ffprobe, ok := byName["FFprobe"]
	if !ok || ffprobe.Passed {
		t.Fatalf("expected failing ffprobe check, got %+v", ffprobe)
	}
	if failed := Failed(results); len(failed) != 1 || failed[0].Name != "FFprobe" {
		t.Fatalf("expected only ffprobe to fail, got %+v", failed)
	}
}

func TestRunAll_FlagsMissingEventAndVideoDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.VideoDir = ""
	cfg.Event.Key = ""
	cfg.TBA.APIKey = ""

	failed := Failed(RunAll(context.Background(), &cfg))
	names := make(map[string]bool, len(failed))
	for _, r := range failed {
		names[r.Name] = true
	}
	for _, name := range []string{"Video directory", "Event", "The Blue Alliance"} {
		if !names[name] {
			t.Errorf("expected %q to fail, got %+v", name, failed)
		}
	}
}
