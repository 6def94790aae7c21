package settings_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"frcvideos/internal/match"
	"frcvideos/internal/settings"
	"frcvideos/internal/testsupport"
)

func newProvider(t *testing.T) (*settings.Store, *settings.Provider) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDatabase(t, cfg)
	store := settings.NewStore(db, testsupport.NewStubClock(time.Date(2023, 3, 4, 9, 0, 0, 0, time.UTC)))
	return store, settings.NewProvider(store, cfg)
}

func TestSetNormalizesValues(t *testing.T) {
	store, _ := newProvider(t)
	ctx := context.Background()
	tests := []struct {
		key   settings.Key
		value string
		want  string
	}{
		{settings.KeyAutoRenameEnabled, " TRUE ", "true"},
		{settings.KeyMaxStartTimeDiffSecStrong, "045", "45"},
		{settings.KeyFileNamePatterns, " yyyy-MM-dd HH-mm-ss , ,'cam' yyyyMMdd_HHmmss", "yyyy-MM-dd HH-mm-ss,'cam' yyyyMMdd_HHmmss"},
		{settings.KeyEventKey, "2023GADAL", "2023gadal"},
		{settings.KeyPlayoffsType, "Best of 3", "best_of_3"},
	}
	for _, tt := range tests {
		got, err := store.Set(ctx, tt.key, tt.value)
		if err != nil {
			t.Fatalf("Set(%s): %v", tt.key, err)
		}
		if got != tt.want {
			t.Fatalf("Set(%s) = %q, want %q", tt.key, got, tt.want)
		}
		stored, ok, err := store.Get(ctx, tt.key)
		if err != nil || !ok || stored != tt.want {
			t.Fatalf("Get(%s) = %q ok=%v err=%v", tt.key, stored, ok, err)
		}
	}
}

func TestSetRejectsMalformedValues(t *testing.T) {
	store, _ := newProvider(t)
	tests := map[settings.Key]string{
		settings.KeyAutoRenameEnabled:       "sometimes",
		settings.KeyMaxStartTimeDiffSecWeak: "-1",
		settings.KeyRenameJobDelaySecs:      "5m",
		settings.KeyFileNamePatterns:        " , ",
		settings.KeyEventKey:                "gadal",
		settings.KeyPlayoffsType:            "round robin",
		settings.KeyVideoSearchDirectory:    "",
		"autoRenameSomethingElse":           "1",
	}
	for key, value := range tests {
		_, err := store.Set(context.Background(), key, value)
		if !errors.Is(err, settings.ErrValidation) {
			t.Errorf("Set(%s, %q): expected validation error, got %v", key, value, err)
		}
	}
}

func TestUnsetAndList(t *testing.T) {
	store, _ := newProvider(t)
	ctx := context.Background()
	if _, err := store.Set(ctx, settings.KeyEventKey, "2023gadal"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := store.Set(ctx, settings.KeyAutoRenameEnabled, "false"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entries, err := store.List(ctx)
	if err != nil || len(entries) != 2 || entries[0].Key != settings.KeyAutoRenameEnabled {
		t.Fatalf("List = %+v err=%v", entries, err)
	}
	removed, err := store.Unset(ctx, settings.KeyEventKey)
	if err != nil || !removed {
		t.Fatalf("Unset: removed=%v err=%v", removed, err)
	}
	removed, err = store.Unset(ctx, settings.KeyEventKey)
	if err != nil || removed {
		t.Fatalf("second Unset: removed=%v err=%v", removed, err)
	}
	if _, ok, _ := store.Get(ctx, settings.KeyEventKey); ok {
		t.Fatal("expected key removed")
	}
}

func TestParseKeyIgnoresCase(t *testing.T) {
	key, err := settings.ParseKey("EVENTKEY")
	if err != nil || key != settings.KeyEventKey {
		t.Fatalf("ParseKey = %q err=%v", key, err)
	}
	if _, err := settings.ParseKey("nope"); !errors.Is(err, settings.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProviderLayersOverridesOnConfig(t *testing.T) {
	store, provider := newProvider(t)
	ctx := context.Background()

	base, err := provider.AutoRename(ctx)
	if err != nil {
		t.Fatalf("AutoRename: %v", err)
	}
	if base.EventKey != "2023gadal" || !base.Enabled || base.PlayoffsType != match.DoubleElimination {
		t.Fatalf("unexpected config defaults %+v", base)
	}
	if base.MaxAssociationAttempts < 1 || base.Location != time.UTC {
		t.Fatalf("expected attempts and location from config, got %+v", base)
	}

	videoDir := filepath.Join(t.TempDir(), "videos")
	for key, value := range map[settings.Key]string{
		settings.KeyEventKey:                  "2024casj",
		settings.KeyPlayoffsType:              "best_of_3",
		settings.KeyMaxStartTimeDiffSecStrong: "30",
		settings.KeyFileNamePatterns:          "yyyyMMdd,yyyy-MM-dd",
		settings.KeyVideoSearchDirectory:      videoDir,
		settings.KeyAutoRenameEnabled:         "false",
	} {
		if _, err := store.Set(ctx, key, value); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}
	got, err := provider.AutoRename(ctx)
	if err != nil {
		t.Fatalf("AutoRename: %v", err)
	}
	if got.EventKey != "2024casj" || got.PlayoffsType != match.BestOf3 || got.MaxStartTimeDiffSecStrong != 30 ||
		len(got.FileNamePatterns) != 2 || got.VideoDir != videoDir || got.Enabled {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.MaxStartTimeDiffSecWeak != base.MaxStartTimeDiffSecWeak {
		t.Fatalf("unset key should keep config value, got %d", got.MaxStartTimeDiffSecWeak)
	}

	effective, err := provider.Effective(ctx)
	if err != nil {
		t.Fatalf("Effective: %v", err)
	}
	sources := map[settings.Key]settings.Source{}
	for _, r := range effective {
		sources[r.Key] = r.Source
	}
	if sources[settings.KeyEventKey] != settings.SourceOverride || sources[settings.KeyMaxStartTimeDiffSecWeak] != settings.SourceConfig {
		t.Fatalf("unexpected sources %v", sources)
	}
	if len(effective) != len(settings.Keys()) {
		t.Fatalf("expected every key listed, got %d", len(effective))
	}
}

func TestProviderReportsCorruptStoredValue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDatabase(t, cfg)
	provider := settings.NewProvider(settings.NewStore(db, nil), cfg)
	if _, err := db.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		string(settings.KeyMaxStartTimeDiffSecWeak), "lots", "2023-03-04T00:00:00.000000000Z"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := provider.AutoRename(context.Background())
	if !errors.Is(err, settings.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if want := string(settings.KeyMaxStartTimeDiffSecWeak); !strings.Contains(err.Error(), want) {
		t.Fatalf("error %v should name %s", err, want)
	}
}
