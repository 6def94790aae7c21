package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"frcvideos/internal/database"
)

func TestOpenPathAppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "frcvideos.db")

	db, err := database.OpenPath(ctx, path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	versions, err := db.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001_initial" {
		t.Fatalf("unexpected migrations %v", versions)
	}
	for _, table := range []string{"auto_rename_associations", "auto_rename_metadata", "settings", "jobs"} {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
			t.Fatalf("query table %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := database.OpenPath(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	again, err := reopened.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations after reopen: %v", err)
	}
	if len(again) != len(versions) {
		t.Fatalf("expected %d migrations after reopen, got %d", len(versions), len(again))
	}
}

func TestOpenPathRejectsUnknownMigration(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "frcvideos.db")
	db, err := database.OpenPath(ctx, path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ('999_future')"); err != nil {
		t.Fatalf("insert future migration: %v", err)
	}
	db.Close()

	if _, err := database.OpenPath(ctx, path); !errors.Is(err, database.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRetryOnBusyRetriesBusyErrors(t *testing.T) {
	calls := 0
	err := database.RetryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (SQLITE_BUSY)")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryOnBusy: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := database.RetryOnBusy(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single failing call, got calls=%d err=%v", calls, err)
	}
}

func TestTimeHelpersRoundTrip(t *testing.T) {
	now := time.Date(2023, 3, 18, 14, 2, 3, 500, time.FixedZone("EDT", -4*3600))
	parsed, err := database.ParseTime(database.FormatTime(now))
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !parsed.Equal(now) {
		t.Fatalf("expected %v, got %v", now, parsed)
	}
	if _, err := database.ParseTime(""); err == nil {
		t.Fatal("expected error for empty timestamp")
	}
	if got := database.Placeholders(3); got != "?,?,?" {
		t.Fatalf("unexpected placeholders %q", got)
	}
	if database.NullableString("") != nil {
		t.Fatal("expected NULL for empty string")
	}
}
