package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CalendarSync links a converted event to the calendar event created for it.
type CalendarSync struct {
	EventID         string
	CalendarEventID string
	SyncedAt        time.Time
}

// InsertCalendarSync records that eventID was pushed as calendarEventID.
func (r *Repository) InsertCalendarSync(ctx context.Context, eventID, calendarEventID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO calendar_sync (event_id, calendar_event_id, synced_at) VALUES (?, ?, ?)`,
		eventID, calendarEventID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert calendar sync: %w", err)
	}
	return nil
}

// GetCalendarSync returns the record for eventID, or nil.
func (r *Repository) GetCalendarSync(ctx context.Context, eventID string) (*CalendarSync, error) {
	var rec CalendarSync
	err := r.db.QueryRowContext(ctx,
		`SELECT event_id, calendar_event_id, synced_at FROM calendar_sync WHERE event_id = ?`, eventID).
		Scan(&rec.EventID, &rec.CalendarEventID, &rec.SyncedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get calendar sync: %w", err)
	}
	return &rec, nil
}

// DriveSync tracks one exported file backed up to Drive.
type DriveSync struct {
	DriveFileID  string
	LocalPath    string
	LastSyncedAt time.Time
	Direction    string
}

// InsertDriveSync records a new upload.
func (r *Repository) InsertDriveSync(ctx context.Context, driveFileID, localPath string, syncedAt time.Time, direction string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO drive_sync (drive_file_id, local_path, last_synced_at, direction) VALUES (?, ?, ?, ?)`,
		driveFileID, localPath, syncedAt.UTC(), direction)
	if err != nil {
		return fmt.Errorf("failed to insert drive sync: %w", err)
	}
	return nil
}

// UpdateDriveSync bumps the sync time of an uploaded file.
func (r *Repository) UpdateDriveSync(ctx context.Context, driveFileID string, syncedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE drive_sync SET last_synced_at = ? WHERE drive_file_id = ?`,
		syncedAt.UTC(), driveFileID)
	if err != nil {
		return fmt.Errorf("failed to update drive sync: %w", err)
	}
	return nil
}

// GetDriveSyncByLocalPath returns the record for localPath, or nil.
func (r *Repository) GetDriveSyncByLocalPath(ctx context.Context, localPath string) (*DriveSync, error) {
	var rec DriveSync
	err := r.db.QueryRowContext(ctx,
		`SELECT drive_file_id, local_path, last_synced_at, direction FROM drive_sync WHERE local_path = ?`, localPath).
		Scan(&rec.DriveFileID, &rec.LocalPath, &rec.LastSyncedAt, &rec.Direction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get drive sync: %w", err)
	}
	return &rec, nil
}

// DriveWatch records a Drive photo that was turned into a capture.
type DriveWatch struct {
	DriveFileID   string
	FileName      string
	CaptureItemID string
	ProcessedAt   time.Time
}

// InsertDriveWatch marks driveFileID as imported.
func (r *Repository) InsertDriveWatch(ctx context.Context, driveFileID, fileName, captureItemID string, processedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO drive_watch (drive_file_id, file_name, capture_item_id, processed_at) VALUES (?, ?, ?, ?)`,
		driveFileID, fileName, captureItemID, processedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert drive watch: %w", err)
	}
	return nil
}

// GetDriveWatchByFileID returns the record for driveFileID, or nil.
func (r *Repository) GetDriveWatchByFileID(ctx context.Context, driveFileID string) (*DriveWatch, error) {
	var (
		rec    DriveWatch
		itemID sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT drive_file_id, file_name, capture_item_id, processed_at FROM drive_watch WHERE drive_file_id = ?`, driveFileID).
		Scan(&rec.DriveFileID, &rec.FileName, &itemID, &rec.ProcessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get drive watch: %w", err)
	}
	rec.CaptureItemID = itemID.String
	return &rec, nil
}

// MarkEmailSeen records messageID for owner. It reports false when the
// message had already been recorded.
func (r *Repository) MarkEmailSeen(ctx context.Context, ownerID, messageID, captureItemID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO email_seen (owner_id, message_id, capture_item_id) VALUES (?, ?, ?)`,
		ownerID, messageID, captureItemID)
	if err != nil {
		return false, fmt.Errorf("failed to mark email seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// EmailSeen reports whether messageID was already captured for owner.
func (r *Repository) EmailSeen(ctx context.Context, ownerID, messageID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_seen WHERE owner_id = ? AND message_id = ?`, ownerID, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check email seen: %w", err)
	}
	return n > 0, nil
}
