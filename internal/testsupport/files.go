package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteRecording creates a placeholder recording at videoDir/rel and
// returns rel. The content is size filler bytes, at least one.
func WriteRecording(t testing.TB, videoDir, rel string, size int) string {
	t.Helper()

	path := filepath.Join(videoDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, max(size, 1)), 0o644); err != nil {
		t.Fatalf("write recording %s: %v", rel, err)
	}
	return rel
}
