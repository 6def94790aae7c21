// Package settings stores runtime overrides of the auto-rename configuration
// and resolves them into matcher settings.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"frcvideos/internal/clock"
	"frcvideos/internal/database"
)

// Entry is one stored override.
type Entry struct {
	Key       Key       `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists overrides in the settings table.
type Store struct {
	db    *database.DB
	clock clock.Clock
}

// NewStore constructs a Store on db.
func NewStore(db *database.DB, c clock.Clock) *Store {
	return &Store{db: db, clock: clock.OrReal(c)}
}

// Get returns the stored value of key; ok is false when no override exists.
func (s *Store) Get(ctx context.Context, key Key) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set validates and stores value for key, returning the normalized value.
func (s *Store) Set(ctx context.Context, key Key, value string) (string, error) {
	normalized, err := normalize(key, value)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecWithRetry(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(key), normalized, database.FormatTime(s.clock.Now()))
	if err != nil {
		return "", fmt.Errorf("set setting %s: %w", key, err)
	}
	return normalized, nil
}

// Unset removes the override of key. It reports whether one existed.
func (s *Store) Unset(ctx context.Context, key Key) (bool, error) {
	res, err := s.db.ExecWithRetry(ctx, "DELETE FROM settings WHERE key = ?", string(key))
	if err != nil {
		return false, fmt.Errorf("unset setting %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// List returns every stored override ordered by key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value, updated_at FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			key     string
			updated string
		)
		if err := rows.Scan(&key, &entry.Value, &updated); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		entry.Key = Key(key)
		if t, err := database.ParseTime(updated); err == nil {
			entry.UpdatedAt = t
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) snapshot(ctx context.Context) (map[Key]string, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[Key]string, len(entries))
	for _, entry := range entries {
		values[entry.Key] = entry.Value
	}
	return values, nil
}
