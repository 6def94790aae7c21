package ffprobe_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"frcvideos/internal/media/ffprobe"
)

func writeStub(t *testing.T, output string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" + output + "\nJSON\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func writeVideo(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

func TestDurationSecondsFallsBackToVideoStream(t *testing.T) {
	result := ffprobe.Result{
		Streams: []ffprobe.Stream{
			{CodecType: "audio", Duration: "500"},
			{CodecType: "video", Duration: "181.5"},
		},
	}
	if got := result.DurationSeconds(); got != 181.5 {
		t.Fatalf("expected 181.5, got %v", got)
	}
	result.Format.Duration = "bad"
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected NaN for malformed duration")
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream")
	}
}

func TestProberDuration(t *testing.T) {
	binary := writeStub(t, `{"format":{"duration":"152.250000"},"streams":[{"codec_type":"video"}]}`)
	prober := ffprobe.Prober{Binary: binary, MaxFileSize: 1 << 20}

	duration, err := prober.Duration(context.Background(), writeVideo(t, 16))
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if duration != 152.25 {
		t.Fatalf("expected 152.25, got %v", duration)
	}
}

func TestProberSkipsLargeFiles(t *testing.T) {
	prober := ffprobe.Prober{Binary: "/nonexistent/ffprobe", MaxFileSize: 8}
	_, err := prober.Duration(context.Background(), writeVideo(t, 16))
	if !errors.Is(err, ffprobe.ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestProberRejectsAudioOnlyFiles(t *testing.T) {
	binary := writeStub(t, `{"format":{"duration":"152.0"},"streams":[{"codec_type":"audio"}]}`)
	prober := ffprobe.Prober{Binary: binary}
	if _, err := prober.Duration(context.Background(), writeVideo(t, 4)); !errors.Is(err, ffprobe.ErrNoVideoStream) {
		t.Fatalf("expected ErrNoVideoStream, got %v", err)
	}
}

func TestProberReportsMissingDuration(t *testing.T) {
	binary := writeStub(t, `{"format":{},"streams":[{"codec_type":"video"}]}`)
	prober := ffprobe.Prober{Binary: binary}
	if _, err := prober.Duration(context.Background(), writeVideo(t, 4)); err == nil {
		t.Fatal("expected error when no duration is reported")
	}
}

func TestProberMissingFile(t *testing.T) {
	prober := ffprobe.Prober{Binary: "ffprobe"}
	if _, err := prober.Duration(context.Background(), filepath.Join(t.TempDir(), "gone.mp4")); err == nil {
		t.Fatal("expected stat error")
	}
}
