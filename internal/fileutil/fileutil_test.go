package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListTwoLevels(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "top.mp4"))
	touch(t, filepath.Join(root, "field", "2023-03-18 10-00-00.mp4"))
	touch(t, filepath.Join(root, "field", ".partial.mp4"))
	touch(t, filepath.Join(root, "stands", "b.mkv"))
	touch(t, filepath.Join(root, "stands", "deep", "c.mp4"))
	touch(t, filepath.Join(root, ".trash", "d.mp4"))

	got, err := List(root, "*", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{
		filepath.Join("field", "2023-03-18 10-00-00.mp4"),
		filepath.Join("stands", "b.mkv"),
		"top.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}

	mp4, err := List(root, "*.mp4", 2)
	if err != nil {
		t.Fatalf("List mp4: %v", err)
	}
	if len(mp4) != 2 {
		t.Fatalf("expected 2 mp4 files, got %v", mp4)
	}
}

func TestListRejectsBadPatternAndMissingRoot(t *testing.T) {
	if _, err := List(t.TempDir(), "[", 2); err == nil {
		t.Fatal("expected pattern error")
	}
	if _, err := List(filepath.Join(t.TempDir(), "missing"), "*", 2); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestRenameNoClobber(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.mp4")
	dst := filepath.Join(dir, "Qualification 1.mp4")
	touch(t, src)

	if err := RenameNoClobber(src, dst); err != nil {
		t.Fatalf("RenameNoClobber: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, err=%v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "raw.mp4" {
		t.Fatalf("unexpected destination content %q err=%v", data, err)
	}
}

func TestRenameNoClobberRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.mp4")
	dst := filepath.Join(dir, "Qualification 1.mp4")
	touch(t, src)
	touch(t, dst)

	err := RenameNoClobber(src, dst)
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "Qualification 1.mp4" {
		t.Fatalf("destination was overwritten: %q", data)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source should remain: %v", err)
	}
}
