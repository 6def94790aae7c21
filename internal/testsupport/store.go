package testsupport

import (
	"testing"

	"frcvideos/internal/config"
	"frcvideos/internal/database"
)

// MustOpenDatabase opens the application database for tests and registers
// cleanup.
func MustOpenDatabase(t testing.TB, cfg *config.Config) *database.DB {
	t.Helper()

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
