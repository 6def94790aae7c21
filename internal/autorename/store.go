package autorename

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"frcvideos/internal/clock"
	"frcvideos/internal/database"
)

const associationColumns = `event_key, file_path, video_file, video_label, status, status_reason,
    video_timestamp, match_key, match_name, association_attempts, max_association_attempts,
    video_duration_secs, video_duration_abnormal, start_time_diff_secs, start_time_diff_abnormal,
    ordering_issue_match_key, ordering_issue_match_name, new_file_name, rename_job_id,
    rename_after, rename_completed, created_at, updated_at`

// Store persists associations and per-label metadata.
type Store struct {
	db    *database.DB
	clock clock.Clock
}

// NewStore constructs a Store over db. A nil clock uses the system clock.
func NewStore(db *database.DB, c clock.Clock) *Store {
	return &Store{db: db, clock: clock.OrReal(c)}
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	EventKey string
	Status   Status
	Label    string
	Limit    int
}

// Insert records a newly observed file. An existing row for the same key is
// left untouched; the return value reports whether a row was created.
func (s *Store) Insert(ctx context.Context, a *Association) (bool, error) {
	now := s.now()
	if a.Status == "" {
		a.Status = StatusUnmatched
	}
	res, err := s.db.ExecWithRetry(ctx,
		`INSERT INTO auto_rename_associations (
            event_key, file_path, video_file, video_label, status, status_reason,
            video_timestamp, association_attempts, max_association_attempts, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (event_key, file_path) DO NOTHING`,
		a.EventKey, a.FilePath, a.VideoFile, a.VideoLabel, string(a.Status),
		database.NullableString(a.StatusReason), database.NullableTime(a.VideoTimestamp),
		a.AssociationAttempts, a.MaxAssociationAttempts,
		database.FormatTime(now), database.FormatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("insert association: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		a.CreatedAt, a.UpdatedAt = now, now
	}
	return n > 0, nil
}

// Get returns the association for key, or nil when absent.
func (s *Store) Get(ctx context.Context, key Key) (*Association, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+associationColumns+" FROM auto_rename_associations WHERE event_key = ? AND file_path = ?",
		key.EventKey, key.FilePath)
	a, err := scanAssociation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get association: %w", err)
	}
	return a, nil
}

// List returns associations ordered by recording time.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Association, error) {
	var (
		where []string
		args  []any
	)
	if filter.EventKey != "" {
		where = append(where, "event_key = ?")
		args = append(args, filter.EventKey)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Label != "" {
		where = append(where, "video_label = ?")
		args = append(args, filter.Label)
	}
	query := "SELECT " + associationColumns + " FROM auto_rename_associations"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_key, video_timestamp IS NULL, video_timestamp, file_path"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return s.query(ctx, query, args...)
}

// ListUnmatched returns the event's UNMATCHED associations oldest recording
// first. Ties fall back to file path so the order is stable.
func (s *Store) ListUnmatched(ctx context.Context, eventKey string) ([]*Association, error) {
	return s.query(ctx,
		"SELECT "+associationColumns+` FROM auto_rename_associations
         WHERE event_key = ? AND status = ? AND video_timestamp IS NOT NULL
         ORDER BY video_timestamp, file_path`,
		eventKey, string(StatusUnmatched))
}

// Statuses maps each of the event's file paths to its association status.
func (s *Store) Statuses(ctx context.Context, eventKey string) (map[string]Status, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT file_path, status FROM auto_rename_associations WHERE event_key = ?", eventKey)
	if err != nil {
		return nil, fmt.Errorf("list association statuses: %w", err)
	}
	defer rows.Close()
	statuses := make(map[string]Status)
	for rows.Next() {
		var path, status string
		if err := rows.Scan(&path, &status); err != nil {
			return nil, fmt.Errorf("scan association status: %w", err)
		}
		statuses[path] = Status(status)
	}
	return statuses, rows.Err()
}

// RenameTargets returns the set of label/newFileName paths written, or about
// to be written, by rename jobs.
func (s *Store) RenameTargets(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT video_label, new_file_name FROM auto_rename_associations WHERE new_file_name IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("list rename targets: %w", err)
	}
	defer rows.Close()
	targets := make(map[string]struct{})
	for rows.Next() {
		var label, name string
		if err := rows.Scan(&label, &name); err != nil {
			return nil, fmt.Errorf("scan rename target: %w", err)
		}
		targets[renameTargetKey(label, name)] = struct{}{}
	}
	return targets, rows.Err()
}

func renameTargetKey(label, name string) string {
	return label + "/" + name
}

// Update writes every mutable field of a.
func (s *Store) Update(ctx context.Context, a *Association) error {
	now := s.now()
	res, err := s.db.ExecWithRetry(ctx,
		`UPDATE auto_rename_associations SET
            status = ?, status_reason = ?, video_timestamp = ?, match_key = ?, match_name = ?,
            association_attempts = ?, max_association_attempts = ?,
            video_duration_secs = ?, video_duration_abnormal = ?,
            start_time_diff_secs = ?, start_time_diff_abnormal = ?,
            ordering_issue_match_key = ?, ordering_issue_match_name = ?,
            new_file_name = ?, rename_job_id = ?, rename_after = ?, rename_completed = ?,
            updated_at = ?
         WHERE event_key = ? AND file_path = ?`,
		string(a.Status), database.NullableString(a.StatusReason), database.NullableTime(a.VideoTimestamp),
		database.NullableString(a.MatchKey), database.NullableString(a.MatchName),
		a.AssociationAttempts, a.MaxAssociationAttempts,
		database.NullableFloat(a.VideoDurationSecs), database.BoolToInt(a.VideoDurationAbnormal),
		database.NullableInt(a.StartTimeDiffSecs), database.BoolToInt(a.StartTimeDiffAbnormal),
		database.NullableString(a.OrderingIssueMatchKey), database.NullableString(a.OrderingIssueMatchName),
		database.NullableString(a.NewFileName), database.NullableString(a.RenameJobID),
		database.NullableTime(a.RenameAfter), database.BoolToInt(a.RenameCompleted),
		database.FormatTime(now),
		a.EventKey, a.FilePath,
	)
	if err != nil {
		return fmt.Errorf("update association: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrAssociationNotFound, a.Key())
	}
	a.UpdatedAt = now
	return nil
}

// MarkRenameCompleted flags a STRONG association as renamed.
func (s *Store) MarkRenameCompleted(ctx context.Context, key Key) error {
	res, err := s.db.ExecWithRetry(ctx,
		`UPDATE auto_rename_associations SET rename_completed = 1, updated_at = ?
         WHERE event_key = ? AND file_path = ? AND status = ?`,
		database.FormatTime(s.now()), key.EventKey, key.FilePath, string(StatusStrong))
	if err != nil {
		return fmt.Errorf("mark rename completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s is not a strong association", ErrAssociationNotFound, key)
	}
	return nil
}

// RecordRenameFailure sets the status reason of a pending STRONG rename.
// Status and rename completion are left as they are. It reports whether a
// row changed.
func (s *Store) RecordRenameFailure(ctx context.Context, key Key, reason string) (bool, error) {
	res, err := s.db.ExecWithRetry(ctx,
		`UPDATE auto_rename_associations SET status_reason = ?, updated_at = ?
         WHERE event_key = ? AND file_path = ? AND status = ? AND rename_completed = 0`,
		reason, database.FormatTime(s.now()), key.EventKey, key.FilePath, string(StatusStrong))
	if err != nil {
		return false, fmt.Errorf("record rename failure: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Metadata returns the label's high-water-mark, or nil when none is stored.
func (s *Store) Metadata(ctx context.Context, eventKey, label string) (*Metadata, error) {
	var (
		meta      Metadata
		matchKey  sql.NullString
		matchName sql.NullString
		updated   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT event_key, video_label, last_strong_association_match_key,
                last_strong_association_match_name, updated_at
         FROM auto_rename_metadata WHERE event_key = ? AND video_label = ?`,
		eventKey, label,
	).Scan(&meta.EventKey, &meta.VideoLabel, &matchKey, &matchName, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auto rename metadata: %w", err)
	}
	meta.LastStrongAssociationMatchKey = matchKey.String
	meta.LastStrongAssociationMatchName = matchName.String
	meta.UpdatedAt, _ = database.ParseTime(updated)
	return &meta, nil
}

// ListMetadata returns every label's high-water-mark for eventKey.
func (s *Store) ListMetadata(ctx context.Context, eventKey string) ([]*Metadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_key, video_label, last_strong_association_match_key,
                last_strong_association_match_name, updated_at
         FROM auto_rename_metadata WHERE event_key = ? ORDER BY video_label`, eventKey)
	if err != nil {
		return nil, fmt.Errorf("list auto rename metadata: %w", err)
	}
	defer rows.Close()
	var out []*Metadata
	for rows.Next() {
		var (
			meta      Metadata
			matchKey  sql.NullString
			matchName sql.NullString
			updated   string
		)
		if err := rows.Scan(&meta.EventKey, &meta.VideoLabel, &matchKey, &matchName, &updated); err != nil {
			return nil, fmt.Errorf("scan auto rename metadata: %w", err)
		}
		meta.LastStrongAssociationMatchKey = matchKey.String
		meta.LastStrongAssociationMatchName = matchName.String
		meta.UpdatedAt, _ = database.ParseTime(updated)
		out = append(out, &meta)
	}
	return out, rows.Err()
}

// SetHighWaterMark records matchKey as the label's last strong match. The
// caller is responsible for only moving it forward.
func (s *Store) SetHighWaterMark(ctx context.Context, eventKey, label, matchKey, matchName string) error {
	if _, err := s.db.ExecWithRetry(ctx,
		`INSERT INTO auto_rename_metadata (event_key, video_label, last_strong_association_match_key,
            last_strong_association_match_name, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (event_key, video_label) DO UPDATE SET
            last_strong_association_match_key = excluded.last_strong_association_match_key,
            last_strong_association_match_name = excluded.last_strong_association_match_name,
            updated_at = excluded.updated_at`,
		eventKey, label, matchKey, matchName, database.FormatTime(s.now()),
	); err != nil {
		return fmt.Errorf("set high water mark: %w", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Association, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list associations: %w", err)
	}
	defer rows.Close()
	var out []*Association
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssociation(scanner interface{ Scan(dest ...any) error }) (*Association, error) {
	var (
		a                  Association
		status             string
		statusReason       sql.NullString
		videoTimestamp     sql.NullString
		matchKey           sql.NullString
		matchName          sql.NullString
		duration           sql.NullFloat64
		durationAbnormal   int
		diff               sql.NullInt64
		diffAbnormal       int
		orderingIssueKey   sql.NullString
		orderingIssueName  sql.NullString
		newFileName        sql.NullString
		renameJobID        sql.NullString
		renameAfter        sql.NullString
		renameCompleted    int
		createdRaw, update string
	)
	if err := scanner.Scan(
		&a.EventKey,
		&a.FilePath,
		&a.VideoFile,
		&a.VideoLabel,
		&status,
		&statusReason,
		&videoTimestamp,
		&matchKey,
		&matchName,
		&a.AssociationAttempts,
		&a.MaxAssociationAttempts,
		&duration,
		&durationAbnormal,
		&diff,
		&diffAbnormal,
		&orderingIssueKey,
		&orderingIssueName,
		&newFileName,
		&renameJobID,
		&renameAfter,
		&renameCompleted,
		&createdRaw,
		&update,
	); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.StatusReason = statusReason.String
	a.VideoTimestamp = database.NullTime(videoTimestamp)
	a.MatchKey = matchKey.String
	a.MatchName = matchName.String
	if duration.Valid {
		v := duration.Float64
		a.VideoDurationSecs = &v
	}
	a.VideoDurationAbnormal = durationAbnormal != 0
	if diff.Valid {
		v := diff.Int64
		a.StartTimeDiffSecs = &v
	}
	a.StartTimeDiffAbnormal = diffAbnormal != 0
	a.OrderingIssueMatchKey = orderingIssueKey.String
	a.OrderingIssueMatchName = orderingIssueName.String
	a.NewFileName = newFileName.String
	a.RenameJobID = renameJobID.String
	a.RenameAfter = database.NullTime(renameAfter)
	a.RenameCompleted = renameCompleted != 0
	a.CreatedAt, _ = database.ParseTime(createdRaw)
	a.UpdatedAt, _ = database.ParseTime(update)
	return &a, nil
}
